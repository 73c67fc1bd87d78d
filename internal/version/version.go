/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version carries the build version.
package version

// Version is the current version of RBC Radio.
// This is set at build time via ldflags:
//
//	-X github.com/rbctelevision/rbcradio/internal/version.Version=X.Y.Z
var Version = "0.1.0-dev"
