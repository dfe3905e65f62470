// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gymdesk/gymsync/model"
)

// Courses returns the full course catalog ordered by name.
func (s *Store) Courses(ctx context.Context) ([]model.Course, error) {
	return s.queryCourses(ctx, `SELECT id, name, created_at FROM courses ORDER BY name`)
}

// SearchCourses matches the term against course names.
func (s *Store) SearchCourses(ctx context.Context, term string) ([]model.Course, error) {
	return s.queryCourses(ctx,
		`SELECT id, name, created_at FROM courses WHERE name LIKE ? ORDER BY name`,
		"%"+term+"%")
}

func (s *Store) queryCourses(ctx context.Context, query string, args ...any) ([]model.Course, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		var c model.Course
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &createdAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// CourseByID returns the course with the given id, or ErrNotFound.
func (s *Store) CourseByID(ctx context.Context, id string) (*model.Course, error) {
	var c model.Course
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM courses WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// PutCourse inserts or replaces a course.
func (s *Store) PutCourse(ctx context.Context, c *model.Course) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return putCourse(tx, c)
	})
}

// DeleteCourse removes a course from the catalog.
func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM courses WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete course %s: %w", id, err)
		}
		return nil
	})
}

func putCourse(tx *sql.Tx, c *model.Course) error {
	_, err := tx.Exec(`INSERT OR REPLACE INTO courses (id, name, created_at) VALUES (?, ?, ?)`,
		c.ID, c.Name, fmtTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert course %s: %w", c.ID, err)
	}
	return nil
}

// DietPlans returns the full diet-plan catalog ordered by name.
func (s *Store) DietPlans(ctx context.Context) ([]model.DietPlan, error) {
	return s.queryDietPlans(ctx, `SELECT id, name, created_at FROM diet_plans ORDER BY name`)
}

// SearchDietPlans matches the term against diet-plan names.
func (s *Store) SearchDietPlans(ctx context.Context, term string) ([]model.DietPlan, error) {
	return s.queryDietPlans(ctx,
		`SELECT id, name, created_at FROM diet_plans WHERE name LIKE ? ORDER BY name`,
		"%"+term+"%")
}

func (s *Store) queryDietPlans(ctx context.Context, query string, args ...any) ([]model.DietPlan, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query diet plans: %w", err)
	}
	defer rows.Close()

	var plans []model.DietPlan
	for rows.Next() {
		var p model.DietPlan
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &createdAt); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// DietPlanByID returns the diet plan with the given id, or ErrNotFound.
func (s *Store) DietPlanByID(ctx context.Context, id string) (*model.DietPlan, error) {
	var p model.DietPlan
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM diet_plans WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// PutDietPlan inserts or replaces a diet plan.
func (s *Store) PutDietPlan(ctx context.Context, p *model.DietPlan) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return putDietPlan(tx, p)
	})
}

// DeleteDietPlan removes a diet plan from the catalog.
func (s *Store) DeleteDietPlan(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM diet_plans WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete diet plan %s: %w", id, err)
		}
		return nil
	})
}

func putDietPlan(tx *sql.Tx, p *model.DietPlan) error {
	_, err := tx.Exec(`INSERT OR REPLACE INTO diet_plans (id, name, created_at) VALUES (?, ?, ?)`,
		p.ID, p.Name, fmtTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert diet plan %s: %w", p.ID, err)
	}
	return nil
}

var defaultCourses = []string{
	"Fitness", "CrossFit", "Yoga", "Cardio", "Bodybuilding", "Zumba",
}

var defaultDietPlans = []string{
	"Weight Loss Plan", "Muscle Gain Plan", "Keto Diet", "Balanced Diet",
}

// SeedCatalogs inserts the default course and diet-plan catalogs, but only
// into tables that are still empty. Members and sales are never seeded.
func (s *Store) SeedCatalogs(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM courses`).Scan(&count); err != nil {
			return fmt.Errorf("count courses: %w", err)
		}
		now := time.Now().UTC()
		if count == 0 {
			for _, name := range defaultCourses {
				c := model.Course{ID: model.NewID(), Name: name, CreatedAt: now}
				if err := putCourse(tx, &c); err != nil {
					return err
				}
			}
		}
		if err := tx.QueryRow(`SELECT COUNT(*) FROM diet_plans`).Scan(&count); err != nil {
			return fmt.Errorf("count diet plans: %w", err)
		}
		if count == 0 {
			for _, name := range defaultDietPlans {
				p := model.DietPlan{ID: model.NewID(), Name: name, CreatedAt: now}
				if err := putDietPlan(tx, &p); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
