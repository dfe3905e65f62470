// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

// Package gymstore is the unified API surface consumed by UI layers. Every
// write lands in the local store first (awaited, authoritative) and is then
// pushed to the remote in the background; failures of that detached push
// are only observable through the sync status and the mutation queue.
// Reads are always served locally and never block on network activity.
package gymstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gymdesk/gymsync/localstore"
	"github.com/gymdesk/gymsync/model"
	"github.com/gymdesk/gymsync/syncer"
)

// ErrAccessDenied is returned by Login for a wrong access code.
var ErrAccessDenied = errors.New("gymstore: access denied")

// ErrInsufficientStock is returned when a sale would drive a product's
// quantity below zero.
var ErrInsufficientStock = errors.New("gymstore: insufficient stock")

// pushTimeout bounds a single detached remote push.
const pushTimeout = 30 * time.Second

// Service composes the local store, mutation queue, connectivity tracker
// and sync manager behind per-entity CRUD calls.
type Service struct {
	local   *localstore.Store
	manager *syncer.Manager
	queue   *syncer.Queue
	tracker *syncer.Tracker
	logger  *slog.Logger

	// Access code for the single-operator login gate.
	accessCode string

	pushes sync.WaitGroup
}

// New wires a service over its collaborators.
func New(local *localstore.Store, manager *syncer.Manager, queue *syncer.Queue, tracker *syncer.Tracker, accessCode string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		local:      local,
		manager:    manager,
		queue:      queue,
		tracker:    tracker,
		accessCode: accessCode,
		logger:     logger,
	}
}

// Close waits for detached background pushes to settle.
func (s *Service) Close() {
	s.pushes.Wait()
}

// background runs fn as a detached push with its own deadline: the caller
// has already committed the local write and must not wait on the network.
func (s *Service) background(fn func(ctx context.Context) error) {
	s.pushes.Add(1)
	go func() {
		defer s.pushes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Warn("background push failed", "error", err)
		}
	}()
}

// --- Members ---

// Members lists all members. Read failures degrade to an empty result so
// consumers never crash on a local read problem.
func (s *Service) Members(ctx context.Context) []model.Member {
	members, err := s.local.Members(ctx)
	if err != nil {
		s.logger.Error("read members failed", "error", err)
		return nil
	}
	return members
}

// MemberByID returns a member, or nil when absent or unreadable.
func (s *Service) MemberByID(ctx context.Context, id string) *model.Member {
	m, err := s.local.MemberByID(ctx, id)
	if err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			s.logger.Error("read member failed", "id", id, "error", err)
		}
		return nil
	}
	return m
}

// SearchMembers matches names and phone numbers.
func (s *Service) SearchMembers(ctx context.Context, term string) []model.Member {
	members, err := s.local.SearchMembers(ctx, term)
	if err != nil {
		s.logger.Error("search members failed", "error", err)
		return nil
	}
	return members
}

// SaveMember creates a member (assigning id and timestamps when absent)
// and schedules the remote push.
func (s *Service) SaveMember(ctx context.Context, m *model.Member) error {
	op := model.OpCreate
	now := time.Now().UTC()
	if m.ID == "" {
		m.ID = model.NewID()
		m.CreatedAt = now
	} else if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if err := s.local.PutMember(ctx, m); err != nil {
		return err
	}
	saved := *m
	s.background(func(ctx context.Context) error {
		return s.manager.SyncMember(ctx, &saved, op)
	})
	return nil
}

// UpdateMember rewrites an existing member and schedules the remote push.
func (s *Service) UpdateMember(ctx context.Context, m *model.Member) error {
	if m.ID == "" {
		return fmt.Errorf("update member: missing id")
	}
	m.UpdatedAt = time.Now().UTC()
	if err := s.local.PutMember(ctx, m); err != nil {
		return err
	}
	saved := *m
	s.background(func(ctx context.Context) error {
		return s.manager.SyncMember(ctx, &saved, model.OpUpdate)
	})
	return nil
}

// DeleteMember removes the member locally and queues the remote delete.
func (s *Service) DeleteMember(ctx context.Context, id string) error {
	if err := s.local.DeleteMember(ctx, id); err != nil {
		return err
	}
	return s.manager.EnqueueDelete(ctx, model.EntityMembers, id)
}

// --- Courses ---

// Courses lists the course catalog.
func (s *Service) Courses(ctx context.Context) []model.Course {
	courses, err := s.local.Courses(ctx)
	if err != nil {
		s.logger.Error("read courses failed", "error", err)
		return nil
	}
	return courses
}

// CourseByID returns a course, or nil when absent or unreadable.
func (s *Service) CourseByID(ctx context.Context, id string) *model.Course {
	c, err := s.local.CourseByID(ctx, id)
	if err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			s.logger.Error("read course failed", "id", id, "error", err)
		}
		return nil
	}
	return c
}

// SearchCourses filters the course catalog by name substring.
func (s *Service) SearchCourses(ctx context.Context, term string) []model.Course {
	courses, err := s.local.SearchCourses(ctx, term)
	if err != nil {
		s.logger.Error("search courses failed", "error", err)
		return nil
	}
	return courses
}

// SaveCourse creates or replaces a course and schedules the remote push.
func (s *Service) SaveCourse(ctx context.Context, c *model.Course) error {
	op := model.OpCreate
	if c.ID == "" {
		c.ID = model.NewID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if err := s.local.PutCourse(ctx, c); err != nil {
		return err
	}
	saved := *c
	s.background(func(ctx context.Context) error {
		return s.manager.SyncCourse(ctx, &saved, op)
	})
	return nil
}

// DeleteCourse removes the course locally and queues the remote delete.
func (s *Service) DeleteCourse(ctx context.Context, id string) error {
	if err := s.local.DeleteCourse(ctx, id); err != nil {
		return err
	}
	return s.manager.EnqueueDelete(ctx, model.EntityCourses, id)
}

// --- Diet plans ---

// DietPlans lists the diet-plan catalog.
func (s *Service) DietPlans(ctx context.Context) []model.DietPlan {
	plans, err := s.local.DietPlans(ctx)
	if err != nil {
		s.logger.Error("read diet plans failed", "error", err)
		return nil
	}
	return plans
}

// DietPlanByID returns a diet plan, or nil when absent or unreadable.
func (s *Service) DietPlanByID(ctx context.Context, id string) *model.DietPlan {
	p, err := s.local.DietPlanByID(ctx, id)
	if err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			s.logger.Error("read diet plan failed", "id", id, "error", err)
		}
		return nil
	}
	return p
}

// SearchDietPlans filters the diet-plan catalog by name substring.
func (s *Service) SearchDietPlans(ctx context.Context, term string) []model.DietPlan {
	plans, err := s.local.SearchDietPlans(ctx, term)
	if err != nil {
		s.logger.Error("search diet plans failed", "error", err)
		return nil
	}
	return plans
}

// SaveDietPlan creates or replaces a diet plan and schedules the push.
func (s *Service) SaveDietPlan(ctx context.Context, p *model.DietPlan) error {
	op := model.OpCreate
	if p.ID == "" {
		p.ID = model.NewID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := s.local.PutDietPlan(ctx, p); err != nil {
		return err
	}
	saved := *p
	s.background(func(ctx context.Context) error {
		return s.manager.SyncDietPlan(ctx, &saved, op)
	})
	return nil
}

// DeleteDietPlan removes the plan locally and queues the remote delete.
func (s *Service) DeleteDietPlan(ctx context.Context, id string) error {
	if err := s.local.DeleteDietPlan(ctx, id); err != nil {
		return err
	}
	return s.manager.EnqueueDelete(ctx, model.EntityDietPlans, id)
}

// --- Products ---

// Products lists the inventory.
func (s *Service) Products(ctx context.Context) []model.Product {
	products, err := s.local.Products(ctx)
	if err != nil {
		s.logger.Error("read products failed", "error", err)
		return nil
	}
	return products
}

// ProductByID returns a product, or nil when absent or unreadable.
func (s *Service) ProductByID(ctx context.Context, id string) *model.Product {
	p, err := s.local.ProductByID(ctx, id)
	if err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			s.logger.Error("read product failed", "id", id, "error", err)
		}
		return nil
	}
	return p
}

// SearchProducts matches product names.
func (s *Service) SearchProducts(ctx context.Context, term string) []model.Product {
	products, err := s.local.SearchProducts(ctx, term)
	if err != nil {
		s.logger.Error("search products failed", "error", err)
		return nil
	}
	return products
}

// SaveProduct creates a product and schedules the remote push.
func (s *Service) SaveProduct(ctx context.Context, p *model.Product) error {
	op := model.OpCreate
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = model.NewID()
		p.CreatedAt = now
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if err := s.local.PutProduct(ctx, p); err != nil {
		return err
	}
	saved := *p
	s.background(func(ctx context.Context) error {
		return s.manager.SyncProduct(ctx, &saved, op)
	})
	return nil
}

// UpdateProduct rewrites an existing product and schedules the push.
func (s *Service) UpdateProduct(ctx context.Context, p *model.Product) error {
	if p.ID == "" {
		return fmt.Errorf("update product: missing id")
	}
	p.UpdatedAt = time.Now().UTC()
	if err := s.local.PutProduct(ctx, p); err != nil {
		return err
	}
	saved := *p
	s.background(func(ctx context.Context) error {
		return s.manager.SyncProduct(ctx, &saved, model.OpUpdate)
	})
	return nil
}

// UpdateProductQuantity applies delta to a product's stock. It returns
// false, with stored state untouched, when the result would cross zero.
// A successful adjustment schedules a remote push of the product.
func (s *Service) UpdateProductQuantity(ctx context.Context, id string, delta int) (bool, error) {
	ok, err := s.local.AdjustProductQuantity(ctx, id, delta)
	if err != nil || !ok {
		return ok, err
	}
	updated, err := s.local.ProductByID(ctx, id)
	if err != nil {
		return true, err
	}
	saved := *updated
	s.background(func(ctx context.Context) error {
		return s.manager.SyncProduct(ctx, &saved, model.OpUpdate)
	})
	return true, nil
}

// DeleteProduct removes the product locally and queues the remote delete.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.local.DeleteProduct(ctx, id); err != nil {
		return err
	}
	return s.manager.EnqueueDelete(ctx, model.EntityProducts, id)
}

// --- Sales ---

// Sales lists all sales.
func (s *Service) Sales(ctx context.Context) []model.Sale {
	sales, err := s.local.Sales(ctx)
	if err != nil {
		s.logger.Error("read sales failed", "error", err)
		return nil
	}
	return sales
}

// SaleByID returns a sale, or nil when absent or unreadable.
func (s *Service) SaleByID(ctx context.Context, id string) *model.Sale {
	sale, err := s.local.SaleByID(ctx, id)
	if err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			s.logger.Error("read sale failed", "id", id, "error", err)
		}
		return nil
	}
	return sale
}

// SearchSales matches buyer and product names.
func (s *Service) SearchSales(ctx context.Context, term string) []model.Sale {
	sales, err := s.local.SearchSales(ctx, term)
	if err != nil {
		s.logger.Error("search sales failed", "error", err)
		return nil
	}
	return sales
}

// SalesBetween returns sales created in [from, to].
func (s *Service) SalesBetween(ctx context.Context, from, to time.Time) []model.Sale {
	sales, err := s.local.SalesBetween(ctx, from, to)
	if err != nil {
		s.logger.Error("filter sales failed", "error", err)
		return nil
	}
	return sales
}

// RecordSale completes a purchase: it fixes the total price, decrements
// the product's stock (rejecting the sale when stock would go negative),
// stores the sale and schedules pushes for both records.
func (s *Service) RecordSale(ctx context.Context, sale *model.Sale) error {
	product, err := s.local.ProductByID(ctx, sale.ProductID)
	if err != nil {
		return fmt.Errorf("record sale: %w", err)
	}

	ok, err := s.local.AdjustProductQuantity(ctx, sale.ProductID, -sale.Quantity)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientStock
	}

	now := time.Now().UTC()
	if sale.ID == "" {
		sale.ID = model.NewID()
	}
	sale.ProductName = product.Name
	if sale.UnitPrice == 0 {
		sale.UnitPrice = product.Price
	}
	sale.TotalPrice = float64(sale.Quantity) * sale.UnitPrice
	sale.CreatedAt = now
	sale.UpdatedAt = now

	if err := s.local.PutSale(ctx, sale); err != nil {
		return err
	}

	savedSale := *sale
	s.background(func(ctx context.Context) error {
		return s.manager.SyncSale(ctx, &savedSale, model.OpCreate)
	})
	if updated, err := s.local.ProductByID(ctx, sale.ProductID); err == nil {
		savedProduct := *updated
		s.background(func(ctx context.Context) error {
			return s.manager.SyncProduct(ctx, &savedProduct, model.OpUpdate)
		})
	}
	return nil
}

// DeleteSale removes the sale locally and queues the remote delete. Stock
// is not restored; a sale deletion is bookkeeping, not a refund.
func (s *Service) DeleteSale(ctx context.Context, id string) error {
	if err := s.local.DeleteSale(ctx, id); err != nil {
		return err
	}
	return s.manager.EnqueueDelete(ctx, model.EntitySales, id)
}

// --- Auth ---

// Login validates the access code and records the login.
func (s *Service) Login(ctx context.Context, code string) error {
	if s.accessCode == "" || code != s.accessCode {
		return ErrAccessDenied
	}
	now := time.Now().UTC()
	return s.local.SetAuthState(ctx, model.AuthState{Authenticated: true, LoginTime: &now})
}

// Logout clears the login record.
func (s *Service) Logout(ctx context.Context) error {
	return s.local.SetAuthState(ctx, model.AuthState{})
}

// AuthState returns the current login record.
func (s *Service) AuthState(ctx context.Context) (model.AuthState, error) {
	return s.local.AuthState(ctx)
}

// --- Sync & maintenance ---

// SyncStatus aggregates sync diagnostics.
func (s *Service) SyncStatus(ctx context.Context) (syncer.SyncStatus, error) {
	return s.manager.Status(ctx)
}

// Online reports current connectivity.
func (s *Service) Online() bool {
	return s.tracker.Online()
}

// ForceSyncNow runs a full sync cycle immediately.
func (s *Service) ForceSyncNow(ctx context.Context) error {
	return s.manager.ForceSyncNow(ctx)
}

// ExportAllData snapshots the whole store into a backup document.
func (s *Service) ExportAllData(ctx context.Context) (*model.Backup, error) {
	return s.local.ExportAll(ctx)
}

// ImportAllData replaces all local state with the backup document, then
// kicks off a full sync so the restored state reconciles with the remote.
func (s *Service) ImportAllData(ctx context.Context, data []byte) error {
	if err := s.local.ImportAll(ctx, data); err != nil {
		return err
	}
	s.background(func(ctx context.Context) error {
		return s.manager.ForceSyncNow(ctx)
	})
	return nil
}

// ClearAllData empties every entity table.
func (s *Service) ClearAllData(ctx context.Context) error {
	return s.local.ClearAll(ctx)
}
