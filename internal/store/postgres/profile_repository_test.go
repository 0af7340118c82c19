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
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maintly/maintly/internal/identity"
)

var profileRowColumns = []string{"id", "user_id", "display_name", "email", "is_admin", "created_at", "updated_at"}

// TestPurpose: Validates that a second profile for the same identity is reported as ErrProfileExists.
// Scope: Unit Test
// Security: One subject record per provider identity
// Expected: A unique violation on insert maps to ErrProfileExists.
// Test Case ID: PPR-01
func TestProfileRepository_CreateDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	p := &identity.Profile{ID: "p1", UserID: "alice", DisplayName: "Alice", Email: "alice@example.com", CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec("INSERT INTO user_profiles").
		WithArgs("p1", "alice", "Alice", "alice@example.com", false, now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO user_profiles").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "user_profiles_user_id_key"})

	repo := NewProfileRepository(db)
	require.NoError(t, repo.Create(context.Background(), p))
	assert.ErrorIs(t, repo.Create(context.Background(), p), identity.ErrProfileExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPurpose: Validates profile lookup by user id including the missing case.
// Scope: Unit Test
// Security: Subject resolution
// Expected: A found row is scanned; an empty result is ErrProfileNotFound.
// Test Case ID: PPR-02
func TestProfileRepository_GetByUserID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_profiles WHERE user_id = $1")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(profileRowColumns).AddRow("p1", "alice", "Alice", "alice@example.com", true, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_profiles WHERE user_id = $1")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(profileRowColumns))

	repo := NewProfileRepository(db)

	p, err := repo.GetByUserID(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, p.IsAdmin)
	assert.Equal(t, "Alice", p.DisplayName)

	_, err = repo.GetByUserID(context.Background(), "ghost")
	assert.ErrorIs(t, err, identity.ErrProfileNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPurpose: Validates that updating the admin flag of an unknown profile is reported as not found.
// Scope: Unit Test
// Security: Admin changes never silently succeed
// Expected: Zero affected rows maps to ErrProfileNotFound; one row succeeds.
// Test Case ID: PPR-03
func TestProfileRepository_UpdateAdmin(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE user_profiles SET is_admin").WithArgs("alice", true).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE user_profiles SET is_admin").WithArgs("ghost", true).WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewProfileRepository(db)
	assert.NoError(t, repo.UpdateAdmin(context.Background(), "alice", true))
	assert.ErrorIs(t, repo.UpdateAdmin(context.Background(), "ghost", true), identity.ErrProfileNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_CountAdmins(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM user_profiles WHERE is_admin")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := NewProfileRepository(db).CountAdmins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPurpose: Validates that demotion locks the admin rows and refuses to remove the last admin.
// Scope: Unit Test
// Security: Administrative lockout prevention
// Expected: With two admins the update runs and commits; with one admin ErrLastAdmin is returned and the transaction rolls back; a non-admin target is a no-op.
// Test Case ID: PPR-04
func TestProfileRepository_DemoteAdmin(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lock := regexp.QuoteMeta("SELECT user_id FROM user_profiles WHERE is_admin ORDER BY user_id FOR UPDATE")

	mock.ExpectBegin()
	mock.ExpectQuery(lock).WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("alice").AddRow("bob"))
	mock.ExpectExec("UPDATE user_profiles SET is_admin = false").WithArgs("alice").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery(lock).WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("bob"))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(lock).WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("bob"))
	mock.ExpectRollback()

	repo := NewProfileRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.DemoteAdmin(ctx, "alice"))
	assert.ErrorIs(t, repo.DemoteAdmin(ctx, "bob"), identity.ErrLastAdmin)
	assert.NoError(t, repo.DemoteAdmin(ctx, "carol"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
