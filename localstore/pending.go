// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gymdesk/gymsync/model"
)

// UpsertPendingOp appends op to the durable mutation log, coalescing with
// any existing unsynced entry for the same (table, operation, entity):
// the older entry keeps its queue position but takes the new payload, and
// its attempt counter and error are reset. Returns the stored entry id.
func (s *Store) UpsertPendingOp(ctx context.Context, op *model.PendingOp) (string, error) {
	id := op.ID
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var existingID string
		err := tx.QueryRow(`SELECT id FROM sync_pending
			WHERE table_name = ? AND op = ? AND entity_id = ? AND synced = 0`,
			string(op.Table), string(op.Op), op.EntityID).Scan(&existingID)
		if err == nil {
			_, err = tx.Exec(`UPDATE sync_pending
				SET payload = ?, attempts = 0, last_error = '' WHERE id = ?`,
				payloadText(op.Payload), existingID)
			if err != nil {
				return fmt.Errorf("coalesce pending op: %w", err)
			}
			id = existingID
			return nil
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("look up pending op: %w", err)
		}

		if id == "" {
			id = model.NewID()
		}
		queuedAt := op.QueuedAt
		if queuedAt.IsZero() {
			queuedAt = time.Now().UTC()
		}
		_, err = tx.Exec(`INSERT INTO sync_pending
			(id, table_name, op, entity_id, payload, queued_at, synced, attempts, last_error)
			VALUES (?, ?, ?, ?, ?, ?, 0, 0, '')`,
			id, string(op.Table), string(op.Op), op.EntityID,
			payloadText(op.Payload), fmtTime(queuedAt))
		if err != nil {
			return fmt.Errorf("insert pending op: %w", err)
		}
		return nil
	})
	return id, err
}

// PendingOps returns log entries ordered by enqueue time, oldest first.
func (s *Store) PendingOps(ctx context.Context, unsyncedOnly bool) ([]model.PendingOp, error) {
	query := `SELECT id, table_name, op, entity_id, payload, queued_at, synced, attempts, last_error
		FROM sync_pending`
	if unsyncedOnly {
		query += ` WHERE synced = 0`
	}
	query += ` ORDER BY queued_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query pending ops: %w", err)
	}
	defer rows.Close()

	var ops []model.PendingOp
	for rows.Next() {
		var op model.PendingOp
		var table, kind string
		var payload sql.NullString
		var queuedAt string
		var synced int
		err := rows.Scan(&op.ID, &table, &kind, &op.EntityID, &payload,
			&queuedAt, &synced, &op.Attempts, &op.LastError)
		if err != nil {
			return nil, err
		}
		op.Table = model.EntityType(table)
		op.Op = model.OpKind(kind)
		if payload.Valid && payload.String != "" {
			op.Payload = json.RawMessage(payload.String)
		}
		if op.QueuedAt, err = parseTime(queuedAt); err != nil {
			return nil, err
		}
		op.Synced = synced != 0
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// MarkOpSynced flags a log entry as delivered and clears its error.
// The row is only retired when its payload still matches the delivered
// one: a coalesced write that replaced the payload mid-flight stays
// unsynced and goes out on the next flush.
func (s *Store) MarkOpSynced(ctx context.Context, id string, payload json.RawMessage) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE sync_pending SET synced = 1, last_error = ''
			WHERE id = ? AND payload IS ?`, id, payloadText(payload))
		if err != nil {
			return fmt.Errorf("mark op %s synced: %w", id, err)
		}
		return nil
	})
}

// RecordOpFailure increments the attempt counter and stores the error.
func (s *Store) RecordOpFailure(ctx context.Context, id string, lastError string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE sync_pending
			SET attempts = attempts + 1, last_error = ? WHERE id = ?`, lastError, id)
		if err != nil {
			return fmt.Errorf("record op %s failure: %w", id, err)
		}
		return nil
	})
}

// DropOp retires a log entry that exhausted its retries. The row is taken
// out of the unsynced set but keeps its attempt count and final error, so
// it stays visible to diagnostics until the sweep collects it. Like
// MarkOpSynced, payload matching spares an entry coalesced mid-flight.
func (s *Store) DropOp(ctx context.Context, id string, payload json.RawMessage, lastError string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE sync_pending
			SET synced = 1, attempts = attempts + 1, last_error = ?
			WHERE id = ? AND payload IS ?`, lastError, id, payloadText(payload))
		if err != nil {
			return fmt.Errorf("drop op %s: %w", id, err)
		}
		return nil
	})
}

// SweepPendingOps deletes synced entries queued before syncedBefore and
// unsynced entries queued before unsyncedBefore. Returns rows removed.
func (s *Store) SweepPendingOps(ctx context.Context, syncedBefore, unsyncedBefore time.Time) (int, error) {
	removed := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM sync_pending
			WHERE (synced = 1 AND queued_at < ?) OR (synced = 0 AND queued_at < ?)`,
			fmtTime(syncedBefore), fmtTime(unsyncedBefore))
		if err != nil {
			return fmt.Errorf("sweep pending ops: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			removed = int(n)
		}
		return nil
	})
	return removed, err
}

// LastSync returns the stored pull watermark for a table, if any.
func (s *Store) LastSync(ctx context.Context, table model.EntityType) (time.Time, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM sync_meta WHERE key = ?`, lastSyncKey(table)).Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read last sync for %s: %w", table, err)
	}
	t, err := parseTime(value)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// SetLastSync records the pull watermark for a table.
func (s *Store) SetLastSync(ctx context.Context, table model.EntityType, t time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT OR REPLACE INTO sync_meta (key, value) VALUES (?, ?)`,
			lastSyncKey(table), fmtTime(t))
		if err != nil {
			return fmt.Errorf("store last sync for %s: %w", table, err)
		}
		return nil
	})
}

func lastSyncKey(table model.EntityType) string {
	return "last_sync:" + string(table)
}

func payloadText(payload json.RawMessage) sql.NullString {
	if len(payload) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(payload), Valid: true}
}
