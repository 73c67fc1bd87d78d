/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"

	"github.com/rbctelevision/rbcradio/internal/logbuffer"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the process logger for environment.
func Setup(environment string) zerolog.Logger {
	return New(os.Stdout, environment, nil)
}

// SetupWithBuffer also captures every line into buf for the admin log viewer.
func SetupWithBuffer(environment string, buf *logbuffer.Buffer) zerolog.Logger {
	var tee io.Writer
	if buf != nil {
		tee = logbuffer.NewWriter(buf, nil)
	}
	return New(os.Stdout, environment, tee)
}

// New builds a logger writing to out and installs it as the global logger.
// Production emits JSON lines for log shippers; other environments get the
// console format. tee, when set, always receives raw JSON.
func New(out io.Writer, environment string, tee io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if environment == "development" {
		level = zerolog.DebugLevel
	}

	w := out
	if environment != "production" {
		w = zerolog.ConsoleWriter{Out: out}
	}
	if tee != nil {
		w = zerolog.MultiLevelWriter(w, tee)
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Str("service", "rbcradio").Logger()
	log.Logger = logger
	return logger
}
