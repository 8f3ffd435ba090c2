// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package database opens the SQLite database and applies the schema.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// DB wraps the sql handle so callers get a single place to close.
type DB struct {
	*sql.DB
}

// New opens (creating if needed) the database at path, applies pragmas and the
// schema, and verifies connectivity. The open is retried a few times to ride
// out transient SQLITE_BUSY from a previous process still releasing the WAL.
func New(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc sqlite is single-writer; keep the pool small
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	err = retry.Do(
		func() error {
			_, err := db.Exec(schema)
			return err
		},
		retry.Attempts(3),
		retry.Delay(250*time.Millisecond),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n).Msg("Retrying schema apply")
		}),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	api_key_encrypted TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT 1,
	conditions TEXT NOT NULL DEFAULT '[]',
	combinator TEXT NOT NULL DEFAULT 'and',
	action TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_rules_user_enabled ON rules(user_id, enabled);

CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	item_id INTEGER NOT NULL,
	state TEXT NOT NULL,
	progress REAL NOT NULL DEFAULT 0,
	download_rate INTEGER NOT NULL DEFAULT 0,
	upload_rate INTEGER NOT NULL DEFAULT 0,
	seeds INTEGER NOT NULL DEFAULT 0,
	peers INTEGER NOT NULL DEFAULT 0,
	ratio REAL NOT NULL DEFAULT 0,
	raw_payload TEXT,
	payload_digest INTEGER NOT NULL DEFAULT 0,
	captured_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_snapshots_user_item ON snapshots(user_id, item_id, captured_at);
CREATE INDEX IF NOT EXISTS idx_snapshots_captured ON snapshots(captured_at);

CREATE TABLE IF NOT EXISTS rule_executions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	rule_id INTEGER NOT NULL REFERENCES rules(id) ON DELETE CASCADE,
	user_id INTEGER NOT NULL,
	items_processed INTEGER NOT NULL DEFAULT 0,
	succeeded BOOLEAN NOT NULL DEFAULT 1,
	error_message TEXT,
	executed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_rule_executions_user ON rule_executions(user_id, executed_at);
`
