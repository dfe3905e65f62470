// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

// Package localstore implements the local durable store: one SQLite table
// per entity type plus sidecar tables for the pending mutation log and the
// per-table sync watermarks. The store is the single source of truth for
// everything the application reads; remote state only ever arrives here
// through the sync manager's pull phase.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("localstore: not found")

// Store wraps the SQLite database holding all local state.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	// Serialize write transactions to avoid SQLITE_BUSY under concurrent
	// facade writes and sync-manager pulls.
	writeMu sync.Mutex
}

// Open opens (or creates) the store at path and ensures the schema exists.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return newStore(db, logger, false)
}

// OpenMemory opens a fresh in-memory store, used by tests and ephemeral runs.
func OpenMemory(logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	// A pooled second connection would see its own empty :memory: database.
	db.SetMaxOpenConns(1)
	return newStore(db, logger, true)
}

func newStore(db *sql.DB, logger *slog.Logger, memory bool) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger}
	if !memory {
		if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := s.initializeSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initializeSchema() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS members (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			phone              TEXT NOT NULL DEFAULT '',
			age                INTEGER NOT NULL DEFAULT 0,
			height             REAL NOT NULL DEFAULT 0,
			weight             REAL NOT NULL DEFAULT 0,
			gender             TEXT NOT NULL DEFAULT '',
			courses            TEXT NOT NULL DEFAULT '[]',
			diet_plans         TEXT NOT NULL DEFAULT '[]',
			course_groups      TEXT NOT NULL DEFAULT '[]',
			diet_plan_groups   TEXT NOT NULL DEFAULT '[]',
			subscription_start TEXT,
			subscription_end   TEXT,
			created_at         TEXT NOT NULL,
			updated_at         TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_members_name ON members(name)`,
		`CREATE INDEX IF NOT EXISTS idx_members_created_at ON members(created_at)`,

		`CREATE TABLE IF NOT EXISTS courses (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_courses_name ON courses(name)`,

		`CREATE TABLE IF NOT EXISTS diet_plans (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_diet_plans_name ON diet_plans(name)`,

		`CREATE TABLE IF NOT EXISTS products (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			quantity   INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
			price      REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_name ON products(name)`,

		`CREATE TABLE IF NOT EXISTS sales (
			id           TEXT PRIMARY KEY,
			buyer_name   TEXT NOT NULL,
			product_id   TEXT NOT NULL,
			product_name TEXT NOT NULL,
			quantity     INTEGER NOT NULL,
			unit_price   REAL NOT NULL,
			total_price  REAL NOT NULL,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales(created_at)`,

		// Single-row process-wide login state.
		`CREATE TABLE IF NOT EXISTS auth_state (
			id            INTEGER PRIMARY KEY CHECK (id = 1),
			authenticated INTEGER NOT NULL DEFAULT 0,
			login_time    TEXT
		)`,

		// Durable mutation log, coalesced to one unsynced row per
		// (table, operation, entity).
		`CREATE TABLE IF NOT EXISTS sync_pending (
			id         TEXT PRIMARY KEY,
			table_name TEXT NOT NULL,
			op         TEXT NOT NULL CHECK (op IN ('CREATE','UPDATE','DELETE')),
			entity_id  TEXT NOT NULL,
			payload    TEXT,
			queued_at  TEXT NOT NULL,
			synced     INTEGER NOT NULL DEFAULT 0,
			attempts   INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_pending_coalesce
			ON sync_pending(table_name, op, entity_id) WHERE synced = 0`,
		`CREATE INDEX IF NOT EXISTS idx_sync_pending_queued_at ON sync_pending(queued_at)`,

		// Per-table last-sync watermarks and other small durable values.
		`CREATE TABLE IF NOT EXISTS sync_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, ddl := range tables {
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("create local table: %w", err)
		}
	}
	return nil
}

// withTx runs fn inside a write transaction. Rolls back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Timestamps are stored as RFC 3339 UTC text with a fixed-width
// nanosecond fraction so text order equals time order. A variable-width
// fraction would break that: "00Z" sorts after "00.5Z".
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	// RFC3339Nano parsing accepts any fraction width, covering both the
	// fixed-width layout and values written before it was introduced.
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func fmtTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: fmtTime(*t), Valid: true}
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
