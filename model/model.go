// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

// Package model defines the entity types persisted by the gymsync core:
// the gym domain records (members, courses, diet plans, products, sales),
// the process-wide auth state, and the pending-operation entries used by
// the mutation queue.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityType identifies one of the syncable local tables.
type EntityType string

const (
	EntityMembers   EntityType = "members"
	EntityCourses   EntityType = "courses"
	EntityDietPlans EntityType = "diet_plans"
	EntityProducts  EntityType = "products"
	EntitySales     EntityType = "sales"
)

// SyncableEntities lists every entity type that participates in remote
// synchronization, catalogs first so pulled members can resolve references.
var SyncableEntities = []EntityType{
	EntityCourses,
	EntityDietPlans,
	EntityMembers,
	EntityProducts,
	EntitySales,
}

// OpKind is the kind of a queued remote mutation.
type OpKind string

const (
	OpCreate OpKind = "CREATE"
	OpUpdate OpKind = "UPDATE"
	OpDelete OpKind = "DELETE"
)

// NewID returns a fresh entity id.
func NewID() string {
	return uuid.New().String()
}

// ItemGroup is a named, ordered sub-collection of catalog-item references
// attached to a member. Distinct from the legacy flat reference lists that
// are kept for backward compatibility.
type ItemGroup struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Items     []string  `json:"items"`
	CreatedAt time.Time `json:"createdAt"`
}

// Member is a gym member. Course/diet-plan ids referenced here (flat or
// grouped) are not enforced against the catalog tables; dangling ids are
// tolerated and rendered by id-fallback in consumers.
type Member struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Phone  string  `json:"phone,omitempty"`
	Age    int     `json:"age,omitempty"`
	Height float64 `json:"height,omitempty"`
	Weight float64 `json:"weight,omitempty"`
	Gender string  `json:"gender,omitempty"`

	// Legacy flat reference lists.
	Courses   []string `json:"courses"`
	DietPlans []string `json:"dietPlans"`

	CourseGroups   []ItemGroup `json:"courseGroups"`
	DietPlanGroups []ItemGroup `json:"dietPlanGroups"`

	SubscriptionStart *time.Time `json:"subscriptionStart,omitempty"`
	SubscriptionEnd   *time.Time `json:"subscriptionEnd,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Course is a catalog entry referenced by members.
type Course struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// DietPlan is a catalog entry referenced by members.
type DietPlan struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Product is an inventory item. Quantity must never go negative; mutations
// that would cross zero are rejected by the store.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Sale records a completed purchase. TotalPrice is computed at sale time
// and never recomputed afterwards.
type Sale struct {
	ID          string    `json:"id"`
	BuyerName   string    `json:"buyerName"`
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName"`
	Quantity    int       `json:"quantity"`
	UnitPrice   float64   `json:"unitPrice"`
	TotalPrice  float64   `json:"totalPrice"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AuthState is the single process-wide login record.
type AuthState struct {
	Authenticated bool       `json:"isAuthenticated"`
	LoginTime     *time.Time `json:"loginTime,omitempty"`
}

// PendingOp is a durable mutation-queue entry: one remote operation that
// has not yet been confirmed against the backend. Payload holds the
// already-translated wire record (nil for DELETE).
type PendingOp struct {
	ID        string          `json:"id"`
	Table     EntityType      `json:"table"`
	Op        OpKind          `json:"operation"`
	EntityID  string          `json:"entityId"`
	Payload   json.RawMessage `json:"data,omitempty"`
	QueuedAt  time.Time       `json:"queuedAt"`
	Synced    bool            `json:"synced"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"lastError,omitempty"`
}

// Backup is the whole-store export document. Import replaces all local
// state with its contents; it is never merged additively.
type Backup struct {
	Members    []Member   `json:"members"`
	Courses    []Course   `json:"courses"`
	DietPlans  []DietPlan `json:"dietPlans"`
	Products   []Product  `json:"products"`
	Sales      []Sale     `json:"sales"`
	ExportDate time.Time  `json:"exportDate"`
	Version    int        `json:"version"`
}

// BackupVersion is the current export document version.
const BackupVersion = 1
