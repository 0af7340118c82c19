// Copyright 2026 The Maintly Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/maintly/maintly/internal/identity"
)

const profileColumns = "id, user_id, display_name, email, is_admin, created_at, updated_at"

// ProfileRepository implements identity.ProfileRepository
type ProfileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create creates a new profile
func (r *ProfileRepository) Create(ctx context.Context, p *identity.Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_profiles (
			id, user_id, display_name, email, is_admin, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		p.ID, p.UserID, p.DisplayName, p.Email, p.IsAdmin, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", mapError(err, identity.ErrProfileExists))
	}
	return nil
}

// GetByUserID retrieves a profile by provider user id
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*identity.Profile, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM user_profiles WHERE user_id = $1", userID)
	return scanProfileRow(row)
}

// GetByEmail retrieves a profile by email, case-insensitively
func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*identity.Profile, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM user_profiles WHERE lower(email) = lower($1) ORDER BY created_at LIMIT 1", email)
	return scanProfileRow(row)
}

// List retrieves all profiles
func (r *ProfileRepository) List(ctx context.Context) ([]*identity.Profile, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+profileColumns+" FROM user_profiles ORDER BY display_name, user_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", mapError(err, nil))
	}
	defer rows.Close()

	var out []*identity.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", mapError(err, nil))
	}
	return out, nil
}

// UpdateAdmin sets the admin flag
func (r *ProfileRepository) UpdateAdmin(ctx context.Context, userID string, isAdmin bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE user_profiles SET is_admin = $2, updated_at = NOW() WHERE user_id = $1
	`, userID, isAdmin)
	return expectOne(res, err, identity.ErrProfileNotFound, "failed to update admin flag")
}

// UpdateDisplay sets the display name and email
func (r *ProfileRepository) UpdateDisplay(ctx context.Context, userID, displayName, email string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE user_profiles SET display_name = $2, email = $3, updated_at = NOW() WHERE user_id = $1
	`, userID, displayName, email)
	return expectOne(res, err, identity.ErrProfileNotFound, "failed to update profile")
}

// DemoteAdmin clears the admin flag of userID unless it is the last admin.
// Every admin row is locked first, so concurrent demotions run one after
// the other and the second sees the first one's result.
func (r *ProfileRepository) DemoteAdmin(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapError(err, nil))
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT user_id FROM user_profiles WHERE is_admin ORDER BY user_id FOR UPDATE
	`)
	if err != nil {
		return fmt.Errorf("failed to lock admins: %w", mapError(err, nil))
	}
	admins := 0
	isAdmin := false
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan admin: %w", err)
		}
		admins++
		if id == userID {
			isAdmin = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to lock admins: %w", mapError(err, nil))
	}

	if !isAdmin {
		return nil
	}
	if admins <= 1 {
		return identity.ErrLastAdmin
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE user_profiles SET is_admin = false, updated_at = NOW() WHERE user_id = $1
	`, userID)
	if err := expectOne(res, err, identity.ErrProfileNotFound, "failed to demote admin"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapError(err, nil))
	}
	return nil
}

// CountAdmins returns the number of admin profiles
func (r *ProfileRepository) CountAdmins(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_profiles WHERE is_admin").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", mapError(err, nil))
	}
	return n, nil
}

func scanProfileRow(row *sql.Row) (*identity.Profile, error) {
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, identity.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", mapError(err, nil))
	}
	return p, nil
}

func scanProfile(row rowScanner) (*identity.Profile, error) {
	var p identity.Profile
	if err := row.Scan(&p.ID, &p.UserID, &p.DisplayName, &p.Email, &p.IsAdmin, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// expectOne checks the result of a single-row write.
func expectOne(res sql.Result, err error, notFound error, msg string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", msg, mapError(err, nil))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
