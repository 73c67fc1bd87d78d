/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"github.com/rbctelevision/rbcradio/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	return database.AutoMigrate(
		&models.User{},
		&models.UserRole{},
		&models.RequestLog{},
		&models.BannedIP{},
		&models.Announcement{},
	)
}
