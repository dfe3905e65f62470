// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

package syncer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gymdesk/gymsync/model"
	"github.com/gymdesk/gymsync/remotepg"
)

// Wire codecs: one explicit, pure translation per entity type and
// direction. Local representations are camelCase structs with time.Time
// fields and Go slices; remote rows are snake_case with RFC 3339 timestamp
// text, Postgres array-literal text for flat id lists and JSON text for
// nested groups.

// EncodeTextArray renders a flat id list as a Postgres text-array literal:
// `{}` when empty, `{"a","b"}` otherwise. Quotes and backslashes inside
// elements are escaped.
func EncodeTextArray(items []string) string {
	if len(items) == 0 {
		return "{}"
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, item := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		for _, r := range item {
			if r == '"' || r == '\\' {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

// DecodeTextArray parses a Postgres text-array literal back into a flat id
// list. Both quoted and bare elements are accepted; anything unparseable
// yields an empty list rather than an error, mirroring the tolerant reads
// the rest of the pull path uses.
func DecodeTextArray(s string) []string {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return []string{}
	}
	inner := s[1 : len(s)-1]
	if inner == "" {
		return []string{}
	}

	var items []string
	var cur strings.Builder
	inQuotes := false
	escaped := false
	for _, r := range inner {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && inQuotes:
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			items = append(items, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	items = append(items, cur.String())
	return items
}

func encodeGroupsJSON(groups []model.ItemGroup) string {
	if groups == nil {
		groups = []model.ItemGroup{}
	}
	b, err := json.Marshal(groups)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeGroupsJSON(s string) []model.ItemGroup {
	var groups []model.ItemGroup
	if err := json.Unmarshal([]byte(s), &groups); err != nil || groups == nil {
		return []model.ItemGroup{}
	}
	return groups
}

// MemberToWire translates a member into its remote row shape.
func MemberToWire(m *model.Member) remotepg.Record {
	return remotepg.Record{
		"id":                 m.ID,
		"name":               m.Name,
		"phone":              m.Phone,
		"age":                m.Age,
		"height":             m.Height,
		"weight":             m.Weight,
		"gender":             m.Gender,
		"courses":            EncodeTextArray(m.Courses),
		"diet_plans":         EncodeTextArray(m.DietPlans),
		"courses_groups":     encodeGroupsJSON(m.CourseGroups),
		"diet_plans_groups":  encodeGroupsJSON(m.DietPlanGroups),
		"subscription_start": wireTimePtr(m.SubscriptionStart),
		"subscription_end":   wireTimePtr(m.SubscriptionEnd),
		"created_at":         wireTime(m.CreatedAt),
		"updated_at":         wireTime(m.UpdatedAt),
	}
}

// MemberFromWire translates a remote row back into a member.
func MemberFromWire(rec remotepg.Record) (*model.Member, error) {
	id := recString(rec, "id")
	if id == "" {
		return nil, fmt.Errorf("member row has no id")
	}
	return &model.Member{
		ID:                id,
		Name:              recString(rec, "name"),
		Phone:             recString(rec, "phone"),
		Age:               recInt(rec, "age"),
		Height:            recFloat(rec, "height"),
		Weight:            recFloat(rec, "weight"),
		Gender:            recString(rec, "gender"),
		Courses:           DecodeTextArray(recString(rec, "courses")),
		DietPlans:         DecodeTextArray(recString(rec, "diet_plans")),
		CourseGroups:      decodeGroupsJSON(recString(rec, "courses_groups")),
		DietPlanGroups:    decodeGroupsJSON(recString(rec, "diet_plans_groups")),
		SubscriptionStart: recTimePtr(rec, "subscription_start"),
		SubscriptionEnd:   recTimePtr(rec, "subscription_end"),
		CreatedAt:         recTime(rec, "created_at"),
		UpdatedAt:         recTime(rec, "updated_at"),
	}, nil
}

// CourseToWire translates a course into its remote row shape.
func CourseToWire(c *model.Course) remotepg.Record {
	return remotepg.Record{
		"id":         c.ID,
		"name":       c.Name,
		"created_at": wireTime(c.CreatedAt),
	}
}

// CourseFromWire translates a remote row back into a course.
func CourseFromWire(rec remotepg.Record) (*model.Course, error) {
	id := recString(rec, "id")
	if id == "" {
		return nil, fmt.Errorf("course row has no id")
	}
	return &model.Course{
		ID:        id,
		Name:      recString(rec, "name"),
		CreatedAt: recTime(rec, "created_at"),
	}, nil
}

// DietPlanToWire translates a diet plan into its remote row shape.
func DietPlanToWire(p *model.DietPlan) remotepg.Record {
	return remotepg.Record{
		"id":         p.ID,
		"name":       p.Name,
		"created_at": wireTime(p.CreatedAt),
	}
}

// DietPlanFromWire translates a remote row back into a diet plan.
func DietPlanFromWire(rec remotepg.Record) (*model.DietPlan, error) {
	id := recString(rec, "id")
	if id == "" {
		return nil, fmt.Errorf("diet plan row has no id")
	}
	return &model.DietPlan{
		ID:        id,
		Name:      recString(rec, "name"),
		CreatedAt: recTime(rec, "created_at"),
	}, nil
}

// ProductToWire translates a product into its remote row shape.
func ProductToWire(p *model.Product) remotepg.Record {
	return remotepg.Record{
		"id":         p.ID,
		"name":       p.Name,
		"quantity":   p.Quantity,
		"price":      p.Price,
		"created_at": wireTime(p.CreatedAt),
		"updated_at": wireTime(p.UpdatedAt),
	}
}

// ProductFromWire translates a remote row back into a product.
func ProductFromWire(rec remotepg.Record) (*model.Product, error) {
	id := recString(rec, "id")
	if id == "" {
		return nil, fmt.Errorf("product row has no id")
	}
	return &model.Product{
		ID:        id,
		Name:      recString(rec, "name"),
		Quantity:  recInt(rec, "quantity"),
		Price:     recFloat(rec, "price"),
		CreatedAt: recTime(rec, "created_at"),
		UpdatedAt: recTime(rec, "updated_at"),
	}, nil
}

// SaleToWire translates a sale into its remote row shape.
func SaleToWire(s *model.Sale) remotepg.Record {
	return remotepg.Record{
		"id":           s.ID,
		"buyer_name":   s.BuyerName,
		"product_id":   s.ProductID,
		"product_name": s.ProductName,
		"quantity":     s.Quantity,
		"unit_price":   s.UnitPrice,
		"total_price":  s.TotalPrice,
		"created_at":   wireTime(s.CreatedAt),
		"updated_at":   wireTime(s.UpdatedAt),
	}
}

// SaleFromWire translates a remote row back into a sale.
func SaleFromWire(rec remotepg.Record) (*model.Sale, error) {
	id := recString(rec, "id")
	if id == "" {
		return nil, fmt.Errorf("sale row has no id")
	}
	return &model.Sale{
		ID:          id,
		BuyerName:   recString(rec, "buyer_name"),
		ProductID:   recString(rec, "product_id"),
		ProductName: recString(rec, "product_name"),
		Quantity:    recInt(rec, "quantity"),
		UnitPrice:   recFloat(rec, "unit_price"),
		TotalPrice:  recFloat(rec, "total_price"),
		CreatedAt:   recTime(rec, "created_at"),
		UpdatedAt:   recTime(rec, "updated_at"),
	}, nil
}

func wireTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func wireTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return wireTime(*t)
}

// The rec* helpers tolerate the value shapes that reach us: typed values
// from pgx row scans, float64/string from JSON-decoded queue payloads,
// and nils for SQL NULLs.

func recString(rec remotepg.Record, key string) string {
	switch v := rec[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func recInt(rec remotepg.Record, key string) int {
	switch v := rec[key].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func recFloat(rec remotepg.Record, key string) float64 {
	switch v := rec[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func recTime(rec remotepg.Record, key string) time.Time {
	switch v := rec[key].(type) {
	case time.Time:
		return v.UTC()
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func recTimePtr(rec remotepg.Record, key string) *time.Time {
	if rec[key] == nil {
		return nil
	}
	t := recTime(rec, key)
	if t.IsZero() {
		return nil
	}
	return &t
}
