/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package db opens the moderation database on any of the supported backends.
package db

import (
	"fmt"
	"time"

	"github.com/rbctelevision/rbcradio/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// pool sizes the connection pool per backend.
type pool struct {
	maxOpen, maxIdle int
}

func dialectorFor(backend config.DatabaseBackend, dsn string) (gorm.Dialector, pool, error) {
	switch backend {
	case config.DatabasePostgres:
		return postgres.Open(dsn), pool{maxOpen: 20, maxIdle: 5}, nil
	case config.DatabaseMySQL:
		return mysql.Open(dsn), pool{maxOpen: 20, maxIdle: 5}, nil
	case config.DatabaseSQLite:
		// One writer; also keeps ":memory:" on a single shared database.
		return sqlite.Open(dsn), pool{maxOpen: 1, maxIdle: 1}, nil
	default:
		return nil, pool{}, fmt.Errorf("unknown database backend: %q", backend)
	}
}

// Connect opens the configured backend with query metrics attached.
// Unique violations surface as gorm.ErrDuplicatedKey on every backend.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dialector, p, err := dialectorFor(cfg.DBBackend, cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Warn
	if cfg.Environment == "development" {
		logLevel = logger.Info
	}

	database, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBBackend, err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetMaxIdleConns(p.maxIdle)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := RegisterCallbacks(database); err != nil {
		return nil, fmt.Errorf("register db callbacks: %w", err)
	}
	return database, nil
}

// Close releases the underlying pool.
func Close(database *gorm.DB) error {
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
