// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

package gymstore

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gymdesk/gymsync/localstore"
	"github.com/gymdesk/gymsync/model"
	"github.com/gymdesk/gymsync/remotepg"
	"github.com/gymdesk/gymsync/syncer"
)

// stubRemote is an in-memory backend for service tests. It starts
// unreachable so background pushes land in the queue instead of racing
// the assertions.
type stubRemote struct {
	mu        sync.Mutex
	reachable bool
	tables    map[string]map[string]remotepg.Record
}

func newStubRemote() *stubRemote {
	return &stubRemote{tables: make(map[string]map[string]remotepg.Record)}
}

func (r *stubRemote) Probe(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reachable
}

func (r *stubRemote) EnsureSchema(ctx context.Context) error { return nil }

func (r *stubRemote) GetAll(ctx context.Context, table string) ([]remotepg.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []remotepg.Record
	for _, rec := range r.tables[table] {
		out = append(out, rec)
	}
	return out, nil
}

func (r *stubRemote) store(table string, rec remotepg.Record) {
	if r.tables[table] == nil {
		r.tables[table] = make(map[string]remotepg.Record)
	}
	if id, _ := rec["id"].(string); id != "" {
		r.tables[table][id] = rec
	}
}

func (r *stubRemote) Upsert(ctx context.Context, table string, rec remotepg.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store(table, rec)
	return nil
}

func (r *stubRemote) Delete(ctx context.Context, table string, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tables[table], id)
	return nil
}

type serviceFixture struct {
	store   *localstore.Store
	remote  *stubRemote
	tracker *syncer.Tracker
	queue   *syncer.Queue
	svc     *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store, err := localstore.OpenMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	remote := newStubRemote()
	tracker := syncer.NewTracker(nil, 0, nil)
	queue := syncer.NewQueue(store, syncer.DefaultRetryPolicy(), tracker.Online, nil)
	manager := syncer.NewManager(store, remote, queue, tracker, syncer.DefaultConfig(), nil)
	svc := New(store, manager, queue, tracker, "4242", nil)
	return &serviceFixture{store: store, remote: remote, tracker: tracker, queue: queue, svc: svc}
}

// drain waits for all scheduled background pushes to settle.
func (f *serviceFixture) drain() { f.svc.Close() }

func (f *serviceFixture) unsyncedOps(t *testing.T) []model.PendingOp {
	t.Helper()
	ops, err := f.store.PendingOps(context.Background(), true)
	require.NoError(t, err)
	return ops
}

func TestSaveMemberAssignsIdentityAndQueuesOffline(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	m := &model.Member{Name: "Dana", Phone: "0770000000", Courses: []string{"c1"}}
	require.NoError(t, f.svc.SaveMember(ctx, m))
	require.NotEmpty(t, m.ID)
	require.False(t, m.CreatedAt.IsZero())

	got := f.svc.MemberByID(ctx, m.ID)
	require.NotNil(t, got)
	require.Equal(t, "Dana", got.Name)

	f.drain()
	ops := f.unsyncedOps(t)
	require.Len(t, ops, 1)
	require.Equal(t, model.EntityMembers, ops[0].Table)
	require.Equal(t, model.OpCreate, ops[0].Op)
}

func TestUpdateMemberCoalescesWithPendingCreate(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	m := &model.Member{Name: "Dana"}
	require.NoError(t, f.svc.SaveMember(ctx, m))
	m.Name = "Dana Updated"
	require.NoError(t, f.svc.UpdateMember(ctx, m))
	f.drain()

	// CREATE and UPDATE are distinct queue keys; both survive until flush.
	ops := f.unsyncedOps(t)
	require.Len(t, ops, 2)
}

func TestDeleteMemberQueuesRemoteDelete(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	m := &model.Member{ID: "m1", Name: "Dana"}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	require.NoError(t, f.store.PutMember(ctx, m))

	require.NoError(t, f.svc.DeleteMember(ctx, "m1"))
	require.Nil(t, f.svc.MemberByID(ctx, "m1"))

	f.drain()
	ops := f.unsyncedOps(t)
	require.Len(t, ops, 1)
	require.Equal(t, model.OpDelete, ops[0].Op)
	require.Equal(t, "m1", ops[0].EntityID)
}

func TestRecordSaleDecrementsStockAndFixesTotal(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	p := &model.Product{Name: "Protein Bar", Quantity: 5, Price: 2.5}
	require.NoError(t, f.svc.SaveProduct(ctx, p))

	sale := &model.Sale{BuyerName: "Omar", ProductID: p.ID, Quantity: 2}
	require.NoError(t, f.svc.RecordSale(ctx, sale))
	require.Equal(t, "Protein Bar", sale.ProductName)
	require.Equal(t, 2.5, sale.UnitPrice)
	require.Equal(t, 5.0, sale.TotalPrice)

	left := f.svc.ProductByID(ctx, p.ID)
	require.NotNil(t, left)
	require.Equal(t, 3, left.Quantity)

	f.drain()
}

func TestRecordSaleRejectsInsufficientStock(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	p := &model.Product{Name: "Shaker", Quantity: 1, Price: 8}
	require.NoError(t, f.svc.SaveProduct(ctx, p))

	sale := &model.Sale{BuyerName: "Omar", ProductID: p.ID, Quantity: 3}
	err := f.svc.RecordSale(ctx, sale)
	require.ErrorIs(t, err, ErrInsufficientStock)

	// A rejected sale leaves stock and sales untouched.
	left := f.svc.ProductByID(ctx, p.ID)
	require.Equal(t, 1, left.Quantity)
	require.Empty(t, f.svc.Sales(ctx))

	f.drain()
}

func TestUpdateProductQuantityGuardsZero(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	p := &model.Product{Name: "Towel", Quantity: 5, Price: 4}
	require.NoError(t, f.svc.SaveProduct(ctx, p))

	ok, err := f.svc.UpdateProductQuantity(ctx, p.ID, -10)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 5, f.svc.ProductByID(ctx, p.ID).Quantity)

	ok, err = f.svc.UpdateProductQuantity(ctx, p.ID, -5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0, f.svc.ProductByID(ctx, p.ID).Quantity)

	f.drain()
}

func TestSearchCatalogs(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SaveCourse(ctx, &model.Course{Name: "Yoga"}))
	require.NoError(t, f.svc.SaveCourse(ctx, &model.Course{Name: "Cardio"}))
	require.NoError(t, f.svc.SaveDietPlan(ctx, &model.DietPlan{Name: "Keto Diet"}))

	courses := f.svc.SearchCourses(ctx, "yog")
	require.Len(t, courses, 1)
	require.Equal(t, "Yoga", courses[0].Name)

	plans := f.svc.SearchDietPlans(ctx, "keto")
	require.Len(t, plans, 1)

	require.Empty(t, f.svc.SearchCourses(ctx, "swimming"))

	f.drain()
}

func TestLoginLogout(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.svc.Login(ctx, "wrong"), ErrAccessDenied)

	require.NoError(t, f.svc.Login(ctx, "4242"))
	st, err := f.svc.AuthState(ctx)
	require.NoError(t, err)
	require.True(t, st.Authenticated)
	require.NotNil(t, st.LoginTime)

	require.NoError(t, f.svc.Logout(ctx))
	st, err = f.svc.AuthState(ctx)
	require.NoError(t, err)
	require.False(t, st.Authenticated)
	require.Nil(t, st.LoginTime)

	f.drain()
}

func TestReadsDegradeToEmpty(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.Nil(t, f.svc.MemberByID(ctx, "nope"))
	require.Nil(t, f.svc.ProductByID(ctx, "nope"))
	require.Empty(t, f.svc.Members(ctx))
	require.Empty(t, f.svc.SearchMembers(ctx, "x"))

	f.drain()
}

func TestExportImportRoundTrip(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SaveCourse(ctx, &model.Course{Name: "Pilates"}))
	backup, err := f.svc.ExportAllData(ctx)
	require.NoError(t, err)
	require.Equal(t, model.BackupVersion, backup.Version)
	require.Len(t, backup.Courses, 1)

	require.NoError(t, f.svc.ClearAllData(ctx))
	require.Empty(t, f.svc.Courses(ctx))

	raw, err := json.Marshal(backup)
	require.NoError(t, err)
	require.NoError(t, f.svc.ImportAllData(ctx, raw))
	require.Len(t, f.svc.Courses(ctx), 1)

	f.drain()
}
