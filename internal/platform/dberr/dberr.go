// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between driver-level errors from either
// content store and the sentinels the domain layer understands.
package dberr

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// IsNoRows reports whether err is the "no rows" error of pgx or database/sql.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// Wrap maps "no rows" to notFound and decorates every other error with the
// store name and the failed action, e.g. "postgres: failed to create chapter: ...".
//
// A nil err returns nil.
func Wrap(err error, store, action string, notFound error) error {
	if err == nil {
		return nil
	}

	if notFound != nil && IsNoRows(err) {
		return notFound
	}

	return fmt.Errorf("%s: failed to %s: %w", store, action, err)
}
