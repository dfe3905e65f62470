// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gymdesk/gymsync/localstore"
	"github.com/gymdesk/gymsync/model"
	"github.com/gymdesk/gymsync/remotepg"
)

// RetryPolicy bounds how long the queue keeps trying a failing operation
// and how long entries linger before the sweep collects them. Operations
// that exhaust MaxAttempts are dropped, not retried forever: at-least-once
// delivery with dedup-by-latest-write is the contract, and a persistently
// malformed payload must not block the queue indefinitely.
type RetryPolicy struct {
	MaxAttempts    int
	SyncedMaxAge   time.Duration
	UnsyncedMaxAge time.Duration
}

// DefaultRetryPolicy returns the standard three-strikes policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		SyncedMaxAge:   time.Hour,
		UnsyncedMaxAge: 6 * time.Hour,
	}
}

// Queue is the durable, ordered log of pending remote operations. Entries
// persist in the local store's sync_pending table, so they survive restarts
// independently of whether the entity write itself reached the remote.
type Queue struct {
	store  *localstore.Store
	policy RetryPolicy
	online func() bool
	logger *slog.Logger

	flushing int32
}

// NewQueue builds a mutation queue over the local store. online reports
// current connectivity; a nil func means "always assume online".
func NewQueue(store *localstore.Store, policy RetryPolicy, online func() bool, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	return &Queue{store: store, policy: policy, online: online, logger: logger}
}

// Enqueue appends a remote operation to the log. Repeated writes for the
// same (table, operation, entity) collapse into a single entry holding the
// latest payload, with the attempt counter reset.
func (q *Queue) Enqueue(ctx context.Context, table model.EntityType, op model.OpKind, entityID string, payload json.RawMessage) error {
	id, err := q.store.UpsertPendingOp(ctx, &model.PendingOp{
		Table:    table,
		Op:       op,
		EntityID: entityID,
		Payload:  payload,
		QueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("enqueue %s %s/%s: %w", op, table, entityID, err)
	}
	q.logger.Debug("queued remote operation",
		"op", string(op), "table", string(table), "entity", entityID, "id", id)
	return nil
}

// Flush drains the unsynced entries, oldest first, against the remote.
// It is a no-op while offline, while another flush is running, or when the
// log is empty. Entries keep their causal order per entity because
// coalescing preserves the original queue position.
func (q *Queue) Flush(ctx context.Context, remote Remote) error {
	if q.online != nil && !q.online() {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&q.flushing, 0, 1) {
		return nil
	}
	defer atomic.StoreInt32(&q.flushing, 0)

	ops, err := q.store.PendingOps(ctx, true)
	if err != nil {
		return fmt.Errorf("load pending ops: %w", err)
	}
	if len(ops) == 0 {
		return nil
	}
	q.logger.Debug("flushing mutation queue", "pending", len(ops))

	for i := range ops {
		op := &ops[i]
		if malformed(op) {
			q.logger.Warn("discarding malformed queue entry",
				"id", op.ID, "table", string(op.Table), "op", string(op.Op))
			if err := q.store.MarkOpSynced(ctx, op.ID, op.Payload); err != nil {
				return err
			}
			continue
		}

		if err := q.apply(ctx, remote, op); err != nil {
			if op.Attempts+1 >= q.policy.MaxAttempts {
				q.logger.Warn("dropping queue entry after repeated failures",
					"id", op.ID, "table", string(op.Table), "op", string(op.Op),
					"entity", op.EntityID, "attempts", op.Attempts+1, "error", err)
				if derr := q.store.DropOp(ctx, op.ID, op.Payload, err.Error()); derr != nil {
					return derr
				}
			} else {
				q.logger.Debug("queue entry failed, will retry",
					"id", op.ID, "attempts", op.Attempts+1, "error", err)
				if ferr := q.store.RecordOpFailure(ctx, op.ID, err.Error()); ferr != nil {
					return ferr
				}
			}
			continue
		}

		if err := q.store.MarkOpSynced(ctx, op.ID, op.Payload); err != nil {
			return err
		}
	}
	return nil
}

// apply replays one queued operation against the remote. CREATE and
// UPDATE both go through the upsert: the remote row may already exist
// (a queued create replayed after an earlier flush partially landed, or
// a save of an entity the remote knows), and a plain insert would fail
// on the duplicate key and eventually drop the write.
func (q *Queue) apply(ctx context.Context, remote Remote, op *model.PendingOp) error {
	table := remotepg.TableFor(op.Table)

	if op.Op == model.OpDelete {
		return remote.Delete(ctx, table, op.EntityID)
	}

	var rec remotepg.Record
	if err := json.Unmarshal(op.Payload, &rec); err != nil {
		return fmt.Errorf("decode queued payload: %w", err)
	}
	return remote.Upsert(ctx, table, rec)
}

func malformed(op *model.PendingOp) bool {
	if remotepg.TableFor(op.Table) == "" || op.EntityID == "" {
		return true
	}
	switch op.Op {
	case model.OpCreate, model.OpUpdate:
		return len(op.Payload) == 0
	case model.OpDelete:
		return false
	default:
		return true
	}
}

// Sweep removes synced entries older than the policy's SyncedMaxAge and
// unsynced entries older than UnsyncedMaxAge, bounding storage growth
// independent of sync success.
func (q *Queue) Sweep(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	removed, err := q.store.SweepPendingOps(ctx,
		now.Add(-q.policy.SyncedMaxAge), now.Add(-q.policy.UnsyncedMaxAge))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		q.logger.Debug("swept mutation queue", "removed", removed)
	}
	return removed, nil
}

// Failure describes one diagnosable queue entry.
type Failure struct {
	Op       model.OpKind     `json:"operation"`
	Table    model.EntityType `json:"table"`
	Attempts int              `json:"attempts"`
	Error    string           `json:"error"`
}

// Status is a point-in-time snapshot of the queue.
type Status struct {
	Total      int       `json:"total"`
	Unsynced   int       `json:"unsynced"`
	Synced     int       `json:"synced"`
	Failed     int       `json:"failed"`
	WithErrors int       `json:"withErrors"`
	Failures   []Failure `json:"failures,omitempty"`
}

const maxReportedFailures = 10

// QueueStatus exposes counts and a short failure list for diagnostics.
func (q *Queue) QueueStatus(ctx context.Context) (Status, error) {
	ops, err := q.store.PendingOps(ctx, false)
	if err != nil {
		return Status{}, err
	}
	var st Status
	st.Total = len(ops)
	for i := range ops {
		op := &ops[i]
		if op.Synced {
			st.Synced++
		} else {
			st.Unsynced++
		}
		if op.Attempts > 0 {
			st.Failed++
		}
		if op.LastError != "" {
			st.WithErrors++
			if len(st.Failures) < maxReportedFailures {
				st.Failures = append(st.Failures, Failure{
					Op:       op.Op,
					Table:    op.Table,
					Attempts: op.Attempts,
					Error:    op.LastError,
				})
			}
		}
	}
	return st, nil
}
