// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

// Package database provides the embedded DuckDB store for TripSync: users,
// trips and membership, chat messages with their mutable substate, the
// activity log, and the shared lists.
//
// Chat-message substate updates use an optimistic-concurrency version column;
// see UpdateChatMessageState.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/tripsync/internal/config"
	"github.com/tomtom215/tripsync/internal/logging"
)

// Sentinel errors returned by store operations.
var (
	// ErrNotFound indicates the requested row does not exist (or, for chat
	// messages, was soft-deleted).
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates a compare-and-swap update lost the race:
	// the row's version moved on between read and write.
	ErrVersionConflict = errors.New("version conflict")
)

// DB wraps the DuckDB connection and exposes typed CRUD accessors.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens (or creates) the database and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	if dbDir := filepath.Dir(cfg.Path); dbDir != "" && dbDir != "." && cfg.Path != ":memory:" {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	connStr := fmt.Sprintf(
		"%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory,
	)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// DuckDB is embedded; a small pool avoids write contention.
	conn.SetMaxOpenConns(numThreads)
	conn.SetMaxIdleConns(2)

	db := &DB{conn: conn, cfg: cfg}
	if err := db.initSchema(); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logging.Error().Err(closeErr).Msg("error closing database after failed init")
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// NewInMemory opens an in-memory database for tests.
func NewInMemory() (*DB, error) {
	return New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
}

// Conn returns the underlying SQL connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection is usable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}
