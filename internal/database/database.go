// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

// Package database implements the review store on DuckDB.
//
// The store owns the canonical Review rows and is the only place a
// review's status can change after creation. All pipeline mutations go
// through ApplyOutcome, a conditional update that serializes concurrent
// writers without any in-process locking.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/innsight/innsight/internal/logging"
)

// Config holds store settings.
type Config struct {
	// Path is the DuckDB database file. ":memory:" gives an ephemeral store.
	Path string

	// MaxMemory caps DuckDB memory usage (e.g. "1GB").
	MaxMemory string

	// Threads limits DuckDB worker threads. 0 = use runtime.NumCPU().
	Threads int
}

// DefaultConfig returns production defaults for the store.
func DefaultConfig() Config {
	return Config{
		Path:      "/data/innsight.duckdb",
		MaxMemory: "1GB",
		Threads:   0,
	}
}

// DB wraps the DuckDB connection with the review store operations.
type DB struct {
	conn *sql.DB

	// now is the clock used for updated_at stamps; overridable in tests.
	now func() time.Time
}

// New opens the store and creates the schema if missing.
func New(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path required")
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	// Disable auto-install/auto-load of extensions to avoid network access
	// during open; the schema uses only core DuckDB types.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, threads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// DuckDB uses optimistic concurrency; concurrent UPDATEs on the same
	// row abort with a transaction conflict instead of blocking. A single
	// connection serializes writers, so ApplyOutcome's conditional update
	// decides races by row state rather than by conflict errors.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	db := &DB{conn: conn, now: func() time.Time { return time.Now().UTC() }}
	if err := db.initialize(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Review store opened")
	return db, nil
}

// initialize creates the schema if missing.
func (db *DB) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS hotels (
			id         VARCHAR PRIMARY KEY,
			name       VARCHAR NOT NULL,
			city       VARCHAR,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reviews (
			id                  VARCHAR PRIMARY KEY,
			hotel_id            VARCHAR NOT NULL,
			title               VARCHAR,
			content             VARCHAR NOT NULL,
			rating              INTEGER NOT NULL,
			status              VARCHAR NOT NULL,
			sentiment_score     DOUBLE,
			sentiment_label     VARCHAR,
			processing_attempts INTEGER NOT NULL DEFAULT 0,
			error_message       VARCHAR,
			created_at          TIMESTAMP NOT NULL,
			updated_at          TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_hotel ON reviews (hotel_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_status ON reviews (status)`,
	}

	for _, stmt := range stmts {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
