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

// ExportAll snapshots every entity table into a single backup document.
func (s *Store) ExportAll(ctx context.Context) (*model.Backup, error) {
	members, err := s.Members(ctx)
	if err != nil {
		return nil, err
	}
	courses, err := s.Courses(ctx)
	if err != nil {
		return nil, err
	}
	dietPlans, err := s.DietPlans(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := s.Sales(ctx)
	if err != nil {
		return nil, err
	}

	return &model.Backup{
		Members:    members,
		Courses:    courses,
		DietPlans:  dietPlans,
		Products:   products,
		Sales:      sales,
		ExportDate: time.Now().UTC(),
		Version:    model.BackupVersion,
	}, nil
}

// ImportAll replaces all entity state with the contents of a backup
// document. The document is parsed before anything is cleared, so a
// malformed file leaves existing data untouched. Import is a total
// replace, never a merge.
func (s *Store) ImportAll(ctx context.Context, data []byte) error {
	var backup model.Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return fmt.Errorf("parse backup document: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := clearEntityTables(tx); err != nil {
			return err
		}
		for i := range backup.Members {
			if err := putMember(tx, &backup.Members[i]); err != nil {
				return err
			}
		}
		for i := range backup.Courses {
			if err := putCourse(tx, &backup.Courses[i]); err != nil {
				return err
			}
		}
		for i := range backup.DietPlans {
			if err := putDietPlan(tx, &backup.DietPlans[i]); err != nil {
				return err
			}
		}
		for i := range backup.Products {
			if err := putProduct(tx, &backup.Products[i]); err != nil {
				return err
			}
		}
		for i := range backup.Sales {
			if err := putSale(tx, &backup.Sales[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// ClearAll empties every entity table. The pending mutation log and the
// sync watermarks are left alone.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return clearEntityTables(tx)
	})
}

func clearEntityTables(tx *sql.Tx) error {
	for _, table := range []string{"members", "courses", "diet_plans", "products", "sales"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("clear table %s: %w", table, err)
		}
	}
	return nil
}
