// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gymdesk/gymsync/model"
)

const memberColumns = `id, name, phone, age, height, weight, gender,
	courses, diet_plans, course_groups, diet_plan_groups,
	subscription_start, subscription_end, created_at, updated_at`

// Members returns all members ordered by creation time, newest first.
func (s *Store) Members(ctx context.Context) ([]model.Member, error) {
	return s.queryMembers(ctx, `SELECT `+memberColumns+` FROM members ORDER BY created_at DESC`)
}

// MemberByID returns the member with the given id, or ErrNotFound.
func (s *Store) MemberByID(ctx context.Context, id string) (*model.Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// SearchMembers matches the term against member names and phone numbers.
func (s *Store) SearchMembers(ctx context.Context, term string) ([]model.Member, error) {
	like := "%" + term + "%"
	return s.queryMembers(ctx,
		`SELECT `+memberColumns+` FROM members WHERE name LIKE ? OR phone LIKE ? ORDER BY created_at DESC`,
		like, like)
}

// PutMember inserts or replaces a member.
func (s *Store) PutMember(ctx context.Context, m *model.Member) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return putMember(tx, m)
	})
}

// DeleteMember removes a member. Deleting an absent id is not an error.
func (s *Store) DeleteMember(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM members WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete member %s: %w", id, err)
		}
		return nil
	})
}

func putMember(tx *sql.Tx, m *model.Member) error {
	courses, err := encodeList(m.Courses)
	if err != nil {
		return err
	}
	dietPlans, err := encodeList(m.DietPlans)
	if err != nil {
		return err
	}
	courseGroups, err := encodeGroups(m.CourseGroups)
	if err != nil {
		return err
	}
	dietPlanGroups, err := encodeGroups(m.DietPlanGroups)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO members (`+memberColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Phone, m.Age, m.Height, m.Weight, m.Gender,
		courses, dietPlans, courseGroups, dietPlanGroups,
		fmtTimePtr(m.SubscriptionStart), fmtTimePtr(m.SubscriptionEnd),
		fmtTime(m.CreatedAt), fmtTime(m.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert member %s: %w", m.ID, err)
	}
	return nil
}

func (s *Store) queryMembers(ctx context.Context, query string, args ...any) ([]model.Member, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*model.Member, error) {
	var m model.Member
	var courses, dietPlans, courseGroups, dietPlanGroups string
	var subStart, subEnd sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&m.ID, &m.Name, &m.Phone, &m.Age, &m.Height, &m.Weight, &m.Gender,
		&courses, &dietPlans, &courseGroups, &dietPlanGroups,
		&subStart, &subEnd, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if m.Courses, err = decodeList(courses); err != nil {
		return nil, err
	}
	if m.DietPlans, err = decodeList(dietPlans); err != nil {
		return nil, err
	}
	if m.CourseGroups, err = decodeGroups(courseGroups); err != nil {
		return nil, err
	}
	if m.DietPlanGroups, err = decodeGroups(dietPlanGroups); err != nil {
		return nil, err
	}
	if m.SubscriptionStart, err = parseTimePtr(subStart); err != nil {
		return nil, err
	}
	if m.SubscriptionEnd, err = parseTimePtr(subEnd); err != nil {
		return nil, err
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode id list: %w", err)
	}
	return string(b), nil
}

func decodeList(s string) ([]string, error) {
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, fmt.Errorf("decode id list: %w", err)
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}

func encodeGroups(groups []model.ItemGroup) (string, error) {
	if groups == nil {
		groups = []model.ItemGroup{}
	}
	b, err := json.Marshal(groups)
	if err != nil {
		return "", fmt.Errorf("encode groups: %w", err)
	}
	return string(b), nil
}

func decodeGroups(s string) ([]model.ItemGroup, error) {
	var groups []model.ItemGroup
	if err := json.Unmarshal([]byte(s), &groups); err != nil {
		return nil, fmt.Errorf("decode groups: %w", err)
	}
	if groups == nil {
		groups = []model.ItemGroup{}
	}
	return groups, nil
}
