// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taibuivan/crawlgate/internal/api"
	"github.com/taibuivan/crawlgate/internal/cache"
	"github.com/taibuivan/crawlgate/internal/ingest"
	"github.com/taibuivan/crawlgate/internal/media"
	"github.com/taibuivan/crawlgate/internal/platform/config"
	"github.com/taibuivan/crawlgate/internal/platform/constants"
	"github.com/taibuivan/crawlgate/internal/platform/migration"
	pgstore "github.com/taibuivan/crawlgate/internal/platform/postgres"
	redisstore "github.com/taibuivan/crawlgate/internal/platform/redis"
	"github.com/taibuivan/crawlgate/internal/platform/sec"
	"github.com/taibuivan/crawlgate/internal/platform/sqlite"
)

func serveCmd() *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the crawler API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(skipMigrations)
		},
	}

	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending PostgreSQL migrations at startup")
	return cmd
}

/*
runServe wires every component and blocks until SIGINT/SIGTERM.

Startup sequence:

 1. Load configuration and initialise structured logging.
 2. Open the content store (PostgreSQL with migrations, or SQLite).
 3. Connect to Redis when configured (index cache + purge channel).
 4. Register the purge webhook and the cover uploader.
 5. Wire the ingestion service and HTTP handlers.
 6. Start the HTTP server with graceful shutdown.
*/
func runServe(skipMigrations bool) error {

	// ── 1. Configuration & Logger ─────────────────────────────────────────
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// Root context for startup. A 30s deadline catches misconfiguration
	// quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 2. Content Store ──────────────────────────────────────────────────
	repository, storeName, closeStore, err := openStore(startupCtx, cfg, log, skipMigrations)
	if err != nil {
		return err
	}
	defer closeStore()

	// ── 3. Redis (optional) ───────────────────────────────────────────────
	broadcaster := cache.NewBroadcaster(log)
	options := []ingest.Option{
		ingest.WithInvalidator(broadcaster),
		ingest.WithLocation(cfg.Location()),
	}

	var checkCache func(context.Context) error
	if cfg.RedisURL != "" {
		rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer func() {
			log.Info("closing_redis_client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis_close_failed", slog.Any("error", cerr))
			}
		}()

		broadcaster.Register(cache.NewRedisSink(rdb, constants.RedisPrefixChapterIndex, constants.RedisChannelInvalidate))
		options = append(options, ingest.WithIndexCache(
			cache.NewIndexCache[*ingest.ChapterIndex](rdb, constants.RedisPrefixChapterIndex, cfg.StatusCacheTTL, log),
		))
		checkCache = func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) }
	}

	// ── 4. Downstream Purge & Covers ──────────────────────────────────────
	var webhook *cache.Webhook
	if cfg.PurgeWebhookURL != "" {
		webhook = cache.NewWebhook(cfg.PurgeWebhookURL, cfg.PurgeWebhookSecret, log)
		broadcaster.Register(webhook)
	}

	var uploader media.Uploader
	if cfg.CoverStorageEnabled() {
		s3Uploader, err := media.NewS3Uploader(media.S3Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("configure cover storage: %w", err)
		}
		uploader = s3Uploader
	}
	options = append(options, ingest.WithCovers(media.NewAttacher(uploader, cfg.CoverMaxBytes, log)))

	log.Info("cache_sinks_registered", slog.Int("sinks", broadcaster.Len()))

	// ── 5. Domain Wiring ──────────────────────────────────────────────────
	service := ingest.NewService(repository, log, options...)

	credentials, err := buildCredentials(cfg)
	if err != nil {
		return err
	}

	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		StoreName:  storeName,
		CheckStore: service.Ping,
		CheckCache: checkCache,
	}, log)

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	server := api.NewServer(serverCtx, cfg, log, credentials, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Ingest:    ingest.NewHandler(service),
	})

	// ── 6. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	var runErr error
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case runErr = <-serverErr:
		log.Error("server_startup_failed", slog.Any("error", runErr))
	}

	log.Info("shutting_down_server", slog.Duration("timeout", constants.ShutdownTimeout))
	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		log.Error("shutdown_failed", slog.Any("error", err))
		runErr = errors.Join(runErr, err)
	}

	// Let in-flight purge notifications finish before the process exits.
	if webhook != nil {
		webhook.Wait()
	}

	if runErr == nil {
		log.Info("server_stopped_cleanly")
	}
	return runErr
}

// openStore opens the configured content store and returns its repository,
// its readiness label and a close function.
func openStore(startupCtx context.Context, cfg *config.Config, log *slog.Logger, skipMigrations bool) (ingest.Repository, string, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err := sqlite.Open(startupCtx, cfg.SQLitePath, ingest.SQLiteSchema, log)
		if err != nil {
			return nil, "", nil, fmt.Errorf("open sqlite: %w", err)
		}
		closeStore := func() {
			log.Info("closing_sqlite")
			if err := db.Close(); err != nil {
				log.Error("sqlite_close_failed", slog.Any("error", err))
			}
		}
		return ingest.NewSQLiteRepository(db), config.DriverSQLite, closeStore, nil

	default:
		if !skipMigrations {
			if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log); err != nil {
				return nil, "", nil, fmt.Errorf("run migrations: %w", err)
			}
		}

		pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, "", nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closeStore := func() {
			log.Info("closing_postgres_pool")
			pool.Close()
		}
		return ingest.NewPostgresRepository(pool), config.DriverPostgres, closeStore, nil
	}
}

// buildCredentials turns the configured secrets into verifiers. Unset
// secrets leave their credential type disabled.
func buildCredentials(cfg *config.Config) (api.Credentials, error) {
	var keys sec.AnyOf
	if cfg.APIKey != "" {
		keys = append(keys, sec.NewStaticKey(cfg.APIKey))
	}
	if cfg.APIKeyHash != "" {
		keys = append(keys, sec.NewHashedKey(cfg.APIKeyHash))
	}

	credentials := api.Credentials{}
	if len(keys) > 0 {
		credentials.Keys = keys
	}

	if cfg.TokenSecret != "" {
		tokens, err := sec.NewTokenService(cfg.TokenSecret, constants.TokenIssuer, constants.TokenAudience)
		if err != nil {
			return api.Credentials{}, fmt.Errorf("configure crawler tokens: %w", err)
		}
		credentials.Tokens = tokens
	}

	return credentials, nil
}
