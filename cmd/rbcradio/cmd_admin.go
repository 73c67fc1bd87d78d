/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/rbctelevision/rbcradio/internal/auth"
	"github.com/rbctelevision/rbcradio/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE:  runMigrate,
}

var setupAdminCmd = &cobra.Command{
	Use:   "setup-admin",
	Short: "Create the configured admin accounts",
	Long: `Create every account listed in RBC_ADMIN_SEEDS or RBC_ADMIN_SEED_FILE
and grant it the admin role. Accounts that already exist are left untouched.

This is the offline equivalent of the setup-admin relay function and does
not need the setup key.

Examples:
  # Seed from a YAML file
  RBC_ADMIN_SEED_FILE=/etc/rbcradio/admins.yaml rbcradio setup-admin
`,
	RunE: runSetupAdmin,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(setupAdminCmd)
}

// initDatabase connects and migrates.
func initDatabase() (*gorm.DB, error) {
	database, err := db.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		_ = db.Close(database)
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return database, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	database, err := initDatabase()
	if err != nil {
		return err
	}
	defer db.Close(database)

	logger.Info().Str("backend", string(cfg.DBBackend)).Msg("database migrated")
	return nil
}

func runSetupAdmin(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if len(cfg.AdminSeeds) == 0 {
		return fmt.Errorf("no admin seeds configured: set RBC_ADMIN_SEEDS or RBC_ADMIN_SEED_FILE")
	}

	database, err := initDatabase()
	if err != nil {
		return err
	}
	defer db.Close(database)

	results := auth.SeedAdmins(context.Background(), database, cfg.AdminSeeds, logger)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tSTATUS\tERROR")
	failed := 0
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Email, r.Status, r.Error)
		if r.Status == auth.SeedError || r.Status == auth.SeedRoleFailed {
			failed++
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d admin accounts were not fully set up", failed, len(results))
	}
	return nil
}
