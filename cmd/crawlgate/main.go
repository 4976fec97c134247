// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command crawlgate runs the crawler ingestion gateway and its maintenance
// tasks.
//
// # Commands
//
//   - serve: start the HTTP API (default store: PostgreSQL).
//   - migrate up|down|version: manage the PostgreSQL schema.
//   - apikey: generate a crawler API key and its bcrypt hash.
//   - token: mint a bearer token for a crawler.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/taibuivan/crawlgate/internal/platform/config"
	"github.com/taibuivan/crawlgate/internal/platform/constants"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           constants.AppName,
		Short:         "Ingestion gateway between web crawlers and the story site",
		Version:       constants.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (ENV_NAME: value pairs)")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(apiKeyCmd())
	root.AddCommand(tokenCmd())

	return root
}

// newLogger builds the process logger. JSON on stdout, tagged with the app name.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String(constants.FieldApp, constants.AppName))
	slog.SetDefault(log)
	return log
}

// loadConfig reads the layered configuration and sets up logging from it.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, newLogger(false), err
	}

	log := newLogger(cfg.Debug)
	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("store", cfg.StoreDriver),
		slog.String("port", cfg.ServerPort),
	)
	return cfg, log, nil
}
