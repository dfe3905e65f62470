// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gymdesk/gymsync/localstore"
	"github.com/gymdesk/gymsync/model"
	"github.com/gymdesk/gymsync/remotepg"
)

// Remote is the backend surface the sync machinery needs. remotepg.Client
// implements it; tests substitute fakes. All writes funnel through the
// idempotent Upsert so direct pushes and queue replays converge on the
// same row regardless of ordering.
type Remote interface {
	Probe(ctx context.Context) bool
	EnsureSchema(ctx context.Context) error
	GetAll(ctx context.Context, table string) ([]remotepg.Record, error)
	Upsert(ctx context.Context, table string, rec remotepg.Record) error
	Delete(ctx context.Context, table string, id string) error
}

// Config holds sync manager timing.
type Config struct {
	SyncInterval  time.Duration // periodic full-sync cadence
	SweepInterval time.Duration // queue sweep cadence
}

// DefaultConfig returns timing suitable for an interactive deployment.
func DefaultConfig() Config {
	return Config{
		SyncInterval:  30 * time.Second,
		SweepInterval: 10 * time.Minute,
	}
}

// Manager orchestrates synchronization: a periodic full cycle that pulls
// remote rows into the local store (last-write-wins by updated_at) and
// drains the mutation queue, plus on-demand pushes for single entities.
type Manager struct {
	local   *localstore.Store
	remote  Remote
	queue   *Queue
	tracker *Tracker
	cfg     Config
	logger  *slog.Logger

	// In-progress flag: a full-sync cycle never overlaps itself. An
	// on-demand push may still interleave; the remote's upsert-by-id
	// semantics keep that race idempotent.
	syncing int32

	schemaReady int32
	unsubscribe func()
}

// NewManager wires a sync manager over its collaborators.
func NewManager(local *localstore.Store, remote Remote, queue *Queue, tracker *Tracker, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultConfig().SyncInterval
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	return &Manager{
		local:   local,
		remote:  remote,
		queue:   queue,
		tracker: tracker,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start launches the periodic sync and sweep loops and hooks the
// connectivity tracker so a reconnect immediately drains the queue.
func (m *Manager) Start(ctx context.Context) {
	m.unsubscribe = m.tracker.Subscribe(func(online bool) {
		if !online {
			return
		}
		go func() {
			if err := m.queue.Flush(ctx, m.remote); err != nil {
				m.logger.Warn("flush after reconnect failed", "error", err)
			}
		}()
	})

	go m.syncLoop(ctx)
	go m.sweepLoop(ctx)
}

// Stop detaches the tracker subscription. In-flight cycles run to
// completion; the loops themselves stop with their context.
func (m *Manager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m *Manager) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.SyncAll(ctx); err != nil {
				m.logger.Warn("periodic sync failed", "error", err)
			}
		}
	}
}

func (m *Manager) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.queue.Sweep(ctx); err != nil {
				m.logger.Warn("queue sweep failed", "error", err)
			}
		}
	}
}

// SyncAll runs one full sync cycle: probe, then pull each table and flush
// the queue. A cycle already in progress makes this call a silent no-op.
// Being unreachable is expected and silent; per-table pull errors are
// logged and do not abort the remaining tables.
func (m *Manager) SyncAll(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&m.syncing, 0, 1) {
		return nil
	}
	defer atomic.StoreInt32(&m.syncing, 0)

	online := m.remote.Probe(ctx)
	m.tracker.SetOnline(online)
	if !online {
		return nil
	}

	if atomic.LoadInt32(&m.schemaReady) == 0 {
		if err := m.remote.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure remote schema: %w", err)
		}
		atomic.StoreInt32(&m.schemaReady, 1)
	}

	for _, entity := range model.SyncableEntities {
		if err := m.pullTable(ctx, entity); err != nil {
			m.logger.Warn("pull failed", "table", string(entity), "error", err)
		} else if err := m.local.SetLastSync(ctx, entity, time.Now().UTC()); err != nil {
			m.logger.Warn("store last-sync watermark failed", "table", string(entity), "error", err)
		}
	}
	if err := m.queue.Flush(ctx, m.remote); err != nil {
		m.logger.Warn("queue flush failed", "error", err)
	}
	return nil
}

// ForceSyncNow triggers an immediate full cycle outside the periodic
// timer. Used after bulk import.
func (m *Manager) ForceSyncNow(ctx context.Context) error {
	return m.SyncAll(ctx)
}

// Syncing reports whether a full cycle is currently running.
func (m *Manager) Syncing() bool {
	return atomic.LoadInt32(&m.syncing) == 1
}

// SyncStatus aggregates the manager's view for diagnostics surfaces.
type SyncStatus struct {
	Syncing  bool                 `json:"syncing"`
	Online   bool                 `json:"online"`
	LastSync map[string]time.Time `json:"lastSync"`
	Queue    Status               `json:"queue"`
}

// Status returns the current sync snapshot.
func (m *Manager) Status(ctx context.Context) (SyncStatus, error) {
	st := SyncStatus{
		Syncing:  m.Syncing(),
		Online:   m.tracker.Online(),
		LastSync: make(map[string]time.Time),
	}
	for _, entity := range model.SyncableEntities {
		if t, ok, err := m.local.LastSync(ctx, entity); err == nil && ok {
			st.LastSync[string(entity)] = t
		}
	}
	qs, err := m.queue.QueueStatus(ctx)
	if err != nil {
		return st, err
	}
	st.Queue = qs
	return st, nil
}

// pullTable merges all remote rows of one table into the local store.
// A local record is overwritten only when it is missing or strictly older
// than the remote row; equal timestamps keep the local value. Pull never
// deletes local records absent from the remote; deletions only propagate
// through explicit queued DELETE operations.
func (m *Manager) pullTable(ctx context.Context, entity model.EntityType) error {
	records, err := m.remote.GetAll(ctx, remotepg.TableFor(entity))
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := m.mergeRecord(ctx, entity, rec); err != nil {
			m.logger.Warn("skipping remote row",
				"table", string(entity), "error", err)
		}
	}
	return nil
}

func (m *Manager) mergeRecord(ctx context.Context, entity model.EntityType, rec remotepg.Record) error {
	switch entity {
	case model.EntityMembers:
		remote, err := MemberFromWire(rec)
		if err != nil {
			return err
		}
		local, err := m.local.MemberByID(ctx, remote.ID)
		if err != nil && !errors.Is(err, localstore.ErrNotFound) {
			return err
		}
		if local != nil && !remote.UpdatedAt.After(local.UpdatedAt) {
			return nil
		}
		return m.local.PutMember(ctx, remote)

	case model.EntityCourses:
		remote, err := CourseFromWire(rec)
		if err != nil {
			return err
		}
		local, err := m.local.CourseByID(ctx, remote.ID)
		if err != nil && !errors.Is(err, localstore.ErrNotFound) {
			return err
		}
		if local != nil && !remote.CreatedAt.After(local.CreatedAt) {
			return nil
		}
		return m.local.PutCourse(ctx, remote)

	case model.EntityDietPlans:
		remote, err := DietPlanFromWire(rec)
		if err != nil {
			return err
		}
		local, err := m.local.DietPlanByID(ctx, remote.ID)
		if err != nil && !errors.Is(err, localstore.ErrNotFound) {
			return err
		}
		if local != nil && !remote.CreatedAt.After(local.CreatedAt) {
			return nil
		}
		return m.local.PutDietPlan(ctx, remote)

	case model.EntityProducts:
		remote, err := ProductFromWire(rec)
		if err != nil {
			return err
		}
		local, err := m.local.ProductByID(ctx, remote.ID)
		if err != nil && !errors.Is(err, localstore.ErrNotFound) {
			return err
		}
		if local != nil && !remote.UpdatedAt.After(local.UpdatedAt) {
			return nil
		}
		return m.local.PutProduct(ctx, remote)

	case model.EntitySales:
		remote, err := SaleFromWire(rec)
		if err != nil {
			return err
		}
		local, err := m.local.SaleByID(ctx, remote.ID)
		if err != nil && !errors.Is(err, localstore.ErrNotFound) {
			return err
		}
		if local != nil && !remote.UpdatedAt.After(local.UpdatedAt) {
			return nil
		}
		return m.local.PutSale(ctx, remote)

	default:
		return fmt.Errorf("unknown entity type %q", entity)
	}
}

// SyncMember pushes one member to the remote, or queues it.
func (m *Manager) SyncMember(ctx context.Context, member *model.Member, op model.OpKind) error {
	return m.push(ctx, model.EntityMembers, member.ID, MemberToWire(member), op)
}

// SyncCourse pushes one course to the remote, or queues it.
func (m *Manager) SyncCourse(ctx context.Context, course *model.Course, op model.OpKind) error {
	return m.push(ctx, model.EntityCourses, course.ID, CourseToWire(course), op)
}

// SyncDietPlan pushes one diet plan to the remote, or queues it.
func (m *Manager) SyncDietPlan(ctx context.Context, plan *model.DietPlan, op model.OpKind) error {
	return m.push(ctx, model.EntityDietPlans, plan.ID, DietPlanToWire(plan), op)
}

// SyncProduct pushes one product to the remote, or queues it.
func (m *Manager) SyncProduct(ctx context.Context, product *model.Product, op model.OpKind) error {
	return m.push(ctx, model.EntityProducts, product.ID, ProductToWire(product), op)
}

// SyncSale pushes one sale to the remote, or queues it.
func (m *Manager) SyncSale(ctx context.Context, sale *model.Sale, op model.OpKind) error {
	return m.push(ctx, model.EntitySales, sale.ID, SaleToWire(sale), op)
}

// EnqueueDelete queues a DELETE for the entity. Deletes never attempt an
// immediate remote call: queueing preserves their order relative to any
// still-pending update for the same entity.
func (m *Manager) EnqueueDelete(ctx context.Context, entity model.EntityType, id string) error {
	return m.queue.Enqueue(ctx, entity, model.OpDelete, id, nil)
}

// push attempts a direct upsert while online, falling back to the queue on
// failure. Offline it enqueues immediately without attempting.
func (m *Manager) push(ctx context.Context, entity model.EntityType, id string, rec remotepg.Record, op model.OpKind) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode wire record: %w", err)
	}

	if !m.tracker.Online() {
		return m.queue.Enqueue(ctx, entity, op, id, payload)
	}

	if err := m.remote.Upsert(ctx, remotepg.TableFor(entity), rec); err != nil {
		m.logger.Debug("direct push failed, queueing",
			"table", string(entity), "entity", id, "error", err)
		return m.queue.Enqueue(ctx, entity, op, id, payload)
	}
	return nil
}
