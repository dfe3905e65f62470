// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gymdesk/gymsync/model"
)

// AuthState returns the single process-wide login record. A store that has
// never seen a login reports a zero state.
func (s *Store) AuthState(ctx context.Context) (model.AuthState, error) {
	var state model.AuthState
	var authenticated int
	var loginTime sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT authenticated, login_time FROM auth_state WHERE id = 1`).
		Scan(&authenticated, &loginTime)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("read auth state: %w", err)
	}
	state.Authenticated = authenticated != 0
	if state.LoginTime, err = parseTimePtr(loginTime); err != nil {
		return model.AuthState{}, err
	}
	return state, nil
}

// SetAuthState replaces the login record.
func (s *Store) SetAuthState(ctx context.Context, state model.AuthState) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		authenticated := 0
		if state.Authenticated {
			authenticated = 1
		}
		_, err := tx.Exec(`INSERT OR REPLACE INTO auth_state (id, authenticated, login_time)
			VALUES (1, ?, ?)`, authenticated, fmtTimePtr(state.LoginTime))
		if err != nil {
			return fmt.Errorf("write auth state: %w", err)
		}
		return nil
	})
}
