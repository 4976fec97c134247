// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package sqlite opens the embedded content store used by single-node and
local setups.

The database runs in WAL mode behind a single connection, so every write
transaction is serialised by the pool itself. That is what makes the chapter
list read-modify-write safe without row locks.
*/
package sqlite

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	// Pure-Go SQLite driver, registers "sqlite".
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// pragmas are applied to every connection the driver opens.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(ON)",
}

/*
Open opens (or creates) the database at path and applies the given schema.

Parameters:
  - context: Context for the initial ping and schema statements.
  - path: File path, or [MemoryPath].
  - schema: Idempotent DDL (CREATE ... IF NOT EXISTS).
  - logger: Structured logger for connection events.

Returns:
  - *sqlx.DB: A handle limited to one open connection.
  - error: Open, ping or schema failures.
*/
func Open(context stdctx.Context, path, schema string, logger *slog.Logger) (*sqlx.DB, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: failed to create directory for %s: %w", path, err)
		}
	}

	db, err := sqlx.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	if schema != "" {
		if _, err := db.ExecContext(context, schema); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: failed to apply schema: %w", err)
		}
	}

	logger.Info("sqlite_opened", slog.String("path", path))
	return db, nil
}

func dsn(path string) string {
	params := make([]string, 0, len(pragmas)+1)
	for _, pragma := range pragmas {
		params = append(params, "_pragma="+pragma)
	}
	params = append(params, "_txlock=immediate")
	return path + "?" + strings.Join(params, "&")
}
