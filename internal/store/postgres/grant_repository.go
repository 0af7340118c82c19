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

	"github.com/maintly/maintly/internal/authz"
)

// grantTable describes where grants of one resource kind live.
type grantTable struct {
	name      string
	keyColumn string
	caps      []authz.Capability
}

var grantTables = map[authz.ResourceKind]grantTable{
	authz.KindClient:     {name: "user_client_permissions", keyColumn: "client_id", caps: authz.KindClient.Capabilities().List()},
	authz.KindSystem:     {name: "user_system_permissions", keyColumn: "resource_type", caps: authz.KindSystem.Capabilities().List()},
	authz.KindCompany:    {name: "user_company_permissions", keyColumn: "company_id", caps: authz.KindCompany.Capabilities().List()},
	authz.KindSecret:     {name: "user_secret_permissions", keyColumn: "secret_id", caps: authz.KindSecret.Capabilities().List()},
	authz.KindVaultGroup: {name: "user_group_permissions", keyColumn: "group_name", caps: authz.KindVaultGroup.Capabilities().List()},
}

func (t grantTable) capColumns() []string {
	cols := make([]string, len(t.caps))
	for i, c := range t.caps {
		cols[i] = "can_" + string(c)
	}
	return cols
}

func (t grantTable) selectColumns() string {
	cols := append([]string{"id", "user_id", t.keyColumn}, t.capColumns()...)
	cols = append(cols, "granted_by", "created_at", "updated_at")
	return strings.Join(cols, ", ")
}

func (t grantTable) upsertQuery() string {
	cols := append([]string{"id", "user_id", t.keyColumn}, t.capColumns()...)
	cols = append(cols, "granted_by", "created_at", "updated_at")

	params := make([]string, len(cols))
	for i := range cols {
		params[i] = fmt.Sprintf("$%d", i+1)
	}

	sets := make([]string, 0, len(t.caps)+2)
	for _, c := range t.capColumns() {
		sets = append(sets, c+" = EXCLUDED."+c)
	}
	sets = append(sets, "granted_by = EXCLUDED.granted_by", "updated_at = EXCLUDED.updated_at")

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (user_id, %s) DO UPDATE SET %s",
		t.name, strings.Join(cols, ", "), strings.Join(params, ", "), t.keyColumn, strings.Join(sets, ", "),
	)
}

// GrantRepository implements authz.GrantRepository
type GrantRepository struct {
	db *sql.DB
}

// NewGrantRepository creates a new grant repository
func NewGrantRepository(db *sql.DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// Get retrieves the grant of subjectID on ref
func (r *GrantRepository) Get(ctx context.Context, subjectID string, ref authz.ResourceRef) (*authz.Grant, error) {
	t, ok := grantTables[ref.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", authz.ErrInvalidResource, ref.Kind)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = $1 AND %s = $2", t.selectColumns(), t.name, t.keyColumn)
	g, err := scanGrant(r.db.QueryRowContext(ctx, query, subjectID, ref.ID), ref.Kind, t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authz.ErrGrantNotFound
		}
		return nil, fmt.Errorf("failed to get grant: %w", mapError(err, nil))
	}
	return g, nil
}

// ListForSubject retrieves every grant of subjectID across all kinds
func (r *GrantRepository) ListForSubject(ctx context.Context, subjectID string) ([]*authz.Grant, error) {
	var out []*authz.Grant
	for _, kind := range authz.Kinds {
		t := grantTables[kind]
		query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = $1 ORDER BY %s", t.selectColumns(), t.name, t.keyColumn)

		rows, err := r.db.QueryContext(ctx, query, subjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s grants: %w", kind, mapError(err, nil))
		}
		for rows.Next() {
			g, err := scanGrant(rows, kind, t)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s grant: %w", kind, err)
			}
			out = append(out, g)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to list %s grants: %w", kind, mapError(err, nil))
		}
	}
	return out, nil
}

// Upsert inserts or updates the grant row for (subject, resource)
func (r *GrantRepository) Upsert(ctx context.Context, g *authz.Grant) error {
	t, ok := grantTables[g.Resource.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", authz.ErrInvalidResource, g.Resource.Kind)
	}

	args := make([]any, 0, len(t.caps)+6)
	args = append(args, g.ID, g.SubjectID, g.Resource.ID)
	for _, c := range t.caps {
		args = append(args, g.Capabilities.Has(c))
	}
	args = append(args, g.GrantedBy, g.CreatedAt, g.UpdatedAt)

	if _, err := r.db.ExecContext(ctx, t.upsertQuery(), args...); err != nil {
		return fmt.Errorf("failed to upsert grant: %w", mapError(err, authz.ErrGrantAlreadyExists))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner, kind authz.ResourceKind, t grantTable) (*authz.Grant, error) {
	g := &authz.Grant{Resource: authz.ResourceRef{Kind: kind}}
	flags := make([]bool, len(t.caps))

	dest := make([]any, 0, len(flags)+6)
	dest = append(dest, &g.ID, &g.SubjectID, &g.Resource.ID)
	for i := range flags {
		dest = append(dest, &flags[i])
	}
	dest = append(dest, &g.GrantedBy, &g.CreatedAt, &g.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	for i, c := range t.caps {
		if flags[i] {
			g.Capabilities = g.Capabilities.With(c)
		}
	}
	return g, nil
}
