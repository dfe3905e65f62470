// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

package remotepg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// EnsureSchema creates the remote tables this client writes to, if they do
// not exist yet. Column encodings follow the wire contract: snake_case
// names, ISO-8601 timestamp text, Postgres array-literal text for flat id
// lists and JSON text for nested group structures. All translation happens
// on the client side; these tables store what arrives.
func (c *Client) EnsureSchema(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS gym_members (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL DEFAULT '',
			phone              TEXT NOT NULL DEFAULT '',
			age                INTEGER NOT NULL DEFAULT 0,
			height             DOUBLE PRECISION NOT NULL DEFAULT 0,
			weight             DOUBLE PRECISION NOT NULL DEFAULT 0,
			gender             TEXT NOT NULL DEFAULT '',
			courses            TEXT NOT NULL DEFAULT '{}',
			diet_plans         TEXT NOT NULL DEFAULT '{}',
			courses_groups     TEXT NOT NULL DEFAULT '[]',
			diet_plans_groups  TEXT NOT NULL DEFAULT '[]',
			subscription_start TEXT,
			subscription_end   TEXT,
			created_at         TEXT,
			updated_at         TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS gym_courses (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			created_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS gym_diet_plans (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			created_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS gym_products (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			quantity   INTEGER NOT NULL DEFAULT 0,
			price      DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TEXT,
			updated_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS gym_sales (
			id           TEXT PRIMARY KEY,
			buyer_name   TEXT NOT NULL DEFAULT '',
			product_id   TEXT NOT NULL DEFAULT '',
			product_name TEXT NOT NULL DEFAULT '',
			quantity     INTEGER NOT NULL DEFAULT 0,
			unit_price   DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_price  DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at   TEXT,
			updated_at   TEXT
		)`,
	}

	err := pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		for _, ddl := range migrations {
			if _, err := tx.Exec(ctx, ddl); err != nil {
				return fmt.Errorf("remote schema migration: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.logger.Debug("remote schema ensured")
	return nil
}
