// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/taibuivan/crawlgate/internal/platform/config"
	"github.com/taibuivan/crawlgate/internal/platform/migration"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadPostgresConfig()
			if err != nil {
				return err
			}
			return migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadPostgresConfig()
			if err != nil {
				return err
			}
			return migration.RunDown(cfg.DatabaseURL, cfg.MigrationPath, steps, log)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadPostgresConfig()
			if err != nil {
				return err
			}

			version, dirty, err := migration.Version(cfg.DatabaseURL, cfg.MigrationPath, log)
			if err != nil {
				return err
			}
			log.Info("migration_version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
			return nil
		},
	})

	return cmd
}

// loadPostgresConfig loads the configuration and rejects the embedded store,
// which applies its schema on open.
func loadPostgresConfig() (*config.Config, *slog.Logger, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.StoreDriver != config.DriverPostgres {
		return nil, nil, errors.New("migrations only apply to STORE_DRIVER=postgres")
	}
	return cfg, log, nil
}
