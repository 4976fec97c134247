// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load("")
	if err != nil {
	    log.Fatal(err)
	}

Sources, lowest precedence first:

  - .env file in the working directory (optional, via godotenv).
  - YAML file passed with --config, a flat map of ENV_NAME: value pairs.
  - The process environment.

Once loaded, configuration is read-only and passed to components through
their constructors. No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported content store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// # Configuration Schema

// Config holds all runtime configuration for the Crawlgate server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Content store selection
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Embedded database (SQLite)
	SQLitePath string `env:"SQLITE_PATH" envDefault:"./data/crawlgate.db"`

	// Key-Value Cache (Redis). Empty disables the read cache and pub/sub purges.
	RedisURL       string        `env:"REDIS_URL"`
	StatusCacheTTL time.Duration `env:"STATUS_CACHE_TTL" envDefault:"10m"`

	// Crawler credentials. At least one of the three must be set.
	APIKey      string `env:"CRAWLER_API_KEY"`
	APIKeyHash  string `env:"CRAWLER_API_KEY_HASH"`
	TokenSecret string `env:"CRAWLER_TOKEN_SECRET"`

	// SiteTimezone is the IANA zone used for publish schedules.
	SiteTimezone string `env:"SITE_TIMEZONE" envDefault:"UTC"`

	// Downstream purge webhook (front-end cache)
	PurgeWebhookURL    string `env:"PURGE_WEBHOOK_URL"`
	PurgeWebhookSecret string `env:"PURGE_WEBHOOK_SECRET"`

	// Object Storage (Cloudflare R2 / S3-compatible) for story covers
	S3Bucket        string `env:"S3_BUCKET"`
	S3Region        string `env:"S3_REGION"   envDefault:"auto"`
	S3Endpoint      string `env:"S3_ENDPOINT"`
	S3AccessKey     string `env:"S3_ACCESS_KEY"`
	S3SecretKey     string `env:"S3_SECRET_KEY"`
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`
	CoverMaxBytes   int64  `env:"COVER_MAX_BYTES" envDefault:"10485760"`

	// Per-crawler request budget
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS"   envDefault:"50"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"100"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load builds a [Config] from the layered sources described in the package doc.
//
// An empty path skips the YAML layer. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	environment := map[string]string{}

	// 1. Optional dotenv file for local development
	if dotenv, err := godotenv.Read(); err == nil {
		mergeInto(environment, dotenv)
	}

	// 2. Optional YAML file
	if path != "" {
		fileValues, err := readYAML(path)
		if err != nil {
			return nil, err
		}
		mergeInto(environment, fileValues)
	}

	// 3. Process environment always wins
	mergeInto(environment, environFromOS())

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environment}); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field requirements that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required when STORE_DRIVER=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	if c.APIKey == "" && c.APIKeyHash == "" && c.TokenSecret == "" {
		errs = append(errs, errors.New("one of CRAWLER_API_KEY, CRAWLER_API_KEY_HASH or CRAWLER_TOKEN_SECRET is required"))
	}

	if _, err := time.LoadLocation(c.SiteTimezone); err != nil {
		errs = append(errs, fmt.Errorf("SITE_TIMEZONE: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Location returns the parsed site time zone. Validate guarantees it parses.
func (c *Config) Location() *time.Location {
	location, err := time.LoadLocation(c.SiteTimezone)
	if err != nil {
		return time.UTC
	}
	return location
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowedOrigins returns the comma-separated EXTRA_ORIGINS as a slice.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// CoverStorageEnabled reports whether covers are re-hosted in object storage.
func (c *Config) CoverStorageEnabled() bool {
	return c.S3Bucket != ""
}

// # Source Helpers

// readYAML loads a flat ENV_NAME: value document.
func readYAML(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var document map[string]any
	if err := yaml.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	values := make(map[string]string, len(document))
	for key, value := range document {
		if value == nil {
			continue
		}
		values[strings.ToUpper(key)] = fmt.Sprint(value)
	}
	return values, nil
}

func environFromOS() map[string]string {
	values := map[string]string{}
	for _, pair := range os.Environ() {
		if key, value, ok := strings.Cut(pair, "="); ok {
			values[key] = value
		}
	}
	return values
}

func mergeInto(dst, src map[string]string) {
	for key, value := range src {
		dst[key] = value
	}
}
