// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

// Package remotepg is the thin client for the hosted Postgres backend. It
// moves flat wire records in and out of the remote tables and knows nothing
// about the local entity shapes: all field renaming and value encoding is
// the sync manager's job.
package remotepg

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is one flat remote row: snake_case column names mapped to scalar
// values (strings, numbers, nil).
type Record map[string]any

// Client wraps a pgx connection pool for the remote database.
type Client struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect builds a client for the given DSN. The pool connects lazily, so
// this succeeds even while the backend is unreachable; Probe tells the two
// situations apart.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse remote DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create remote pool: %w", err)
	}
	return &Client{pool: pool, logger: logger}, nil
}

// NewClient wraps an existing pool, mainly for tests and embedding.
func NewClient(pool *pgxpool.Pool, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{pool: pool, logger: logger}
}

// Close releases the connection pool.
func (c *Client) Close() {
	c.pool.Close()
}

// Probe reports whether the remote is reachable right now. It is a cheap
// query, used to distinguish "offline" from "misconfigured backend".
func (c *Client) Probe(ctx context.Context) bool {
	if err := c.pool.Ping(ctx); err != nil {
		c.logger.Debug("remote probe failed", "error", err)
		return false
	}
	var one int
	if err := c.pool.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		c.logger.Debug("remote probe query failed", "error", err)
		return false
	}
	return true
}

// GetAll fetches every row of a remote table as wire records.
func (c *Client) GetAll(ctx context.Context, table string) ([]Record, error) {
	rows, err := c.pool.Query(ctx, `SELECT * FROM `+table)
	if err != nil {
		return nil, fmt.Errorf("select all from %s: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var records []Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row from %s: %w", table, err)
		}
		rec := make(Record, len(fields))
		for i, fd := range fields {
			rec[fd.Name] = values[i]
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows from %s: %w", table, err)
	}
	return records, nil
}

// Delete removes a row by id. Deleting an absent row is not an error.
func (c *Client) Delete(ctx context.Context, table string, id string) error {
	if _, err := c.pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return nil
}

// Upsert inserts the row or replaces an existing one with the same id.
// This is the single write entry point for rows: racing upserts and
// replays of already-delivered writes converge on the latest payload.
func (c *Client) Upsert(ctx context.Context, table string, rec Record) error {
	cols, args := columnsAndArgs(rec)
	sets := make([]string, 0, len(cols))
	for _, col := range cols {
		if col == "id" {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s`,
		table, strings.Join(cols, ", "), placeholders(len(cols), 1), strings.Join(sets, ", "))
	if _, err := c.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert into %s: %w", table, err)
	}
	return nil
}

// columnsAndArgs flattens a record into a deterministic column order.
func columnsAndArgs(rec Record) ([]string, []any) {
	cols := make([]string, 0, len(rec))
	for col := range rec {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	args := make([]any, len(cols))
	for i, col := range cols {
		args[i] = rec[col]
	}
	return cols, args
}

func placeholders(n, start int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}
