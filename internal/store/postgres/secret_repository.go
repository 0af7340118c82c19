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
	"strings"

	"github.com/maintly/maintly/internal/id"
	"github.com/maintly/maintly/internal/vault"
)

const secretColumns = "id, name, login, ciphertext, url, note, group_name, client_id, company_id, created_by, created_at, updated_at"

// SecretRepository implements vault.Repository and vault.GroupRepository
type SecretRepository struct {
	db *sql.DB
}

// NewSecretRepository creates a new secret repository
func NewSecretRepository(db *sql.DB) *SecretRepository {
	return &SecretRepository{db: db}
}

// Create creates a new secret
func (r *SecretRepository) Create(ctx context.Context, s *vault.Secret) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vault_secrets (
			id, name, login, ciphertext, url, note, group_name, client_id, company_id,
			created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		s.ID, s.Name, s.Login, s.Ciphertext, s.URL, s.Note,
		nullIfEmpty(s.Group), nullIfEmpty(s.ClientID), nullIfEmpty(s.CompanyID),
		s.CreatedBy, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create secret: %w", mapError(err, nil))
	}
	return nil
}

// GetByID retrieves a secret by ID
func (r *SecretRepository) GetByID(ctx context.Context, secretID string) (*vault.Secret, error) {
	s, err := scanSecret(r.db.QueryRowContext(ctx, "SELECT "+secretColumns+" FROM vault_secrets WHERE id = $1", secretID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vault.ErrSecretNotFound
		}
		return nil, fmt.Errorf("failed to get secret: %w", mapError(err, nil))
	}
	return s, nil
}

// Update updates every mutable field of a secret
func (r *SecretRepository) Update(ctx context.Context, s *vault.Secret) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE vault_secrets SET
			name = $2, login = $3, ciphertext = $4, url = $5, note = $6,
			group_name = $7, client_id = $8, company_id = $9, updated_at = $10
		WHERE id = $1
	`,
		s.ID, s.Name, s.Login, s.Ciphertext, s.URL, s.Note,
		nullIfEmpty(s.Group), nullIfEmpty(s.ClientID), nullIfEmpty(s.CompanyID), s.UpdatedAt,
	)
	return expectOne(res, err, vault.ErrSecretNotFound, "failed to update secret")
}

// Delete removes a secret and the grants that reference it
func (r *SecretRepository) Delete(ctx context.Context, secretID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapError(err, nil))
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM user_secret_permissions WHERE secret_id = $1", secretID); err != nil {
		return fmt.Errorf("failed to delete secret grants: %w", mapError(err, nil))
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM vault_secrets WHERE id = $1", secretID)
	if err := expectOne(res, err, vault.ErrSecretNotFound, "failed to delete secret"); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", mapError(err, nil))
	}
	return nil
}

// List retrieves secrets matching filter ordered by name
func (r *SecretRepository) List(ctx context.Context, f vault.Filter) ([]*vault.Secret, error) {
	var (
		where []string
		args  []any
	)
	if f.ClientID != "" {
		args = append(args, f.ClientID)
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if f.CompanyID != "" {
		args = append(args, f.CompanyID)
		where = append(where, fmt.Sprintf("company_id = $%d", len(args)))
	}
	if f.Group != "" {
		args = append(args, "%"+escapeLike(f.Group)+"%")
		where = append(where, fmt.Sprintf("group_name ILIKE $%d", len(args)))
	}

	query := "SELECT " + secretColumns + " FROM vault_secrets"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", mapError(err, nil))
	}
	defer rows.Close()

	var out []*vault.Secret
	for rows.Next() {
		s, err := scanSecret(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan secret: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", mapError(err, nil))
	}
	return out, nil
}

// UpdateCiphertext replaces only the stored ciphertext
func (r *SecretRepository) UpdateCiphertext(ctx context.Context, secretID, ciphertext string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE vault_secrets SET ciphertext = $2, updated_at = NOW() WHERE id = $1
	`, secretID, ciphertext)
	return expectOne(res, err, vault.ErrSecretNotFound, "failed to update ciphertext")
}

// EnsureGroup registers a group label, ignoring duplicates
func (r *SecretRepository) EnsureGroup(ctx context.Context, name, createdBy string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vault_groups (id, name, created_by) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING
	`, id.NewUUIDv7(), name, createdBy)
	if err != nil {
		return fmt.Errorf("failed to register group: %w", mapError(err, nil))
	}
	return nil
}

// ListGroups retrieves group labels ordered by name
func (r *SecretRepository) ListGroups(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM vault_groups ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", mapError(err, nil))
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func scanSecret(row rowScanner) (*vault.Secret, error) {
	var (
		s                          vault.Secret
		group, clientID, companyID sql.NullString
	)
	err := row.Scan(
		&s.ID, &s.Name, &s.Login, &s.Ciphertext, &s.URL, &s.Note,
		&group, &clientID, &companyID,
		&s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Group = group.String
	s.ClientID = clientID.String
	s.CompanyID = companyID.String
	return &s, nil
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
