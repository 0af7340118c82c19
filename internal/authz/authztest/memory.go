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

// Package authztest provides an in-memory grant repository for tests.
package authztest

import (
	"context"
	"sync"

	"github.com/maintly/maintly/internal/authz"
)

type key struct {
	subjectID string
	ref       authz.ResourceRef
}

// GrantRepository is a concurrency-safe in-memory authz.GrantRepository.
// FailOn makes Upsert fail for a specific resource.
type GrantRepository struct {
	mu      sync.Mutex
	rows    map[key]*authz.Grant
	order   []key
	failOn  map[authz.ResourceRef]error
	Upserts int
	Gets    int
}

// NewGrantRepository creates an empty repository.
func NewGrantRepository() *GrantRepository {
	return &GrantRepository{
		rows:   make(map[key]*authz.Grant),
		failOn: make(map[authz.ResourceRef]error),
	}
}

// FailOn makes every Upsert for ref return err.
func (r *GrantRepository) FailOn(ref authz.ResourceRef, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOn[ref] = err
}

// Put stores g as is, bypassing the service.
func (r *GrantRepository) Put(g *authz.Grant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(g)
}

// Count returns the number of stored rows.
func (r *GrantRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *GrantRepository) Get(_ context.Context, subjectID string, ref authz.ResourceRef) (*authz.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Gets++
	g, ok := r.rows[key{subjectID, ref}]
	if !ok {
		return nil, authz.ErrGrantNotFound
	}
	cp := *g
	return &cp, nil
}

func (r *GrantRepository) ListForSubject(_ context.Context, subjectID string) ([]*authz.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*authz.Grant
	for _, k := range r.order {
		if k.subjectID == subjectID {
			cp := *r.rows[k]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *GrantRepository) Upsert(_ context.Context, g *authz.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Upserts++
	if err, ok := r.failOn[g.Resource]; ok {
		return err
	}
	r.put(g)
	return nil
}

func (r *GrantRepository) put(g *authz.Grant) {
	k := key{g.SubjectID, g.Resource}
	if existing, ok := r.rows[k]; ok {
		cp := *g
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
		r.rows[k] = &cp
		return
	}
	cp := *g
	r.rows[k] = &cp
	r.order = append(r.order, k)
}
