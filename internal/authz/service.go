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

package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maintly/maintly/internal/audit"
	"github.com/maintly/maintly/internal/id"
	"github.com/maintly/maintly/internal/observability/metrics"
)

// Service provides authorization business logic
type Service struct {
	grants      GrantRepository
	auditLogger audit.Logger
	recorder    *metrics.Recorder
	now         func() time.Time
}

// NewService creates a new authorization service.
// recorder may be nil.
func NewService(grants GrantRepository, auditLogger audit.Logger, recorder *metrics.Recorder) *Service {
	return &Service{
		grants:      grants,
		auditLogger: auditLogger,
		recorder:    recorder,
		now:         time.Now,
	}
}

// Can reports whether subject may perform action on ref.
//
// Admins may do anything without a lookup. Everyone else needs the grant
// row for ref with the action's flag set. A missing row, or an action that
// does not exist for the resource kind, is a denial.
func (s *Service) Can(ctx context.Context, subject Subject, action Capability, ref ResourceRef) (bool, error) {
	if subject.IsAdmin {
		s.recorder.AuthzCheck(ctx, string(ref.Kind), string(action), true)
		return true, nil
	}

	if !ref.Kind.Supports(action) {
		s.recorder.AuthzCheck(ctx, string(ref.Kind), string(action), false)
		return false, nil
	}

	grant, err := s.grants.Get(ctx, subject.ID, ref)
	if errors.Is(err, ErrGrantNotFound) {
		s.recorder.AuthzCheck(ctx, string(ref.Kind), string(action), false)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get grant: %w", err)
	}

	allowed := grant.Capabilities.Has(action)
	s.recorder.AuthzCheck(ctx, string(ref.Kind), string(action), allowed)
	return allowed, nil
}

// Snapshot loads every grant held by subject once so that many checks can
// be answered without further lookups. Admin grants are loaded too so they
// can be displayed; checks on the snapshot still short-circuit for admins.
func (s *Service) Snapshot(ctx context.Context, subject Subject) (*Snapshot, error) {
	snap := &Snapshot{subject: subject, grants: make(map[ResourceRef]CapabilitySet)}

	grants, err := s.grants.ListForSubject(ctx, subject.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	for _, g := range grants {
		snap.grants[g.Resource] = g.Capabilities
	}
	return snap, nil
}

// SetCapability sets one capability of subjectID on ref.
//
// Granting any capability also grants view; revoking view revokes every
// capability. Revoking on a resource with no grant row is a no-op; granting
// creates the row. Only admins may change grants.
func (s *Service) SetCapability(ctx context.Context, actor Subject, subjectID string, ref ResourceRef, c Capability, value bool) error {
	if err := s.authorizeMutation(ctx, actor, subjectID, ref); err != nil {
		return err
	}
	if !ref.Kind.Supports(c) {
		return fmt.Errorf("%w: %s is not available on %s", ErrInvalidCapability, c, ref.Kind)
	}

	grant, err := s.grants.Get(ctx, subjectID, ref)
	switch {
	case errors.Is(err, ErrGrantNotFound):
		if !value {
			return nil
		}
		grant = s.newGrant(actor, subjectID, ref)
	case err != nil:
		return fmt.Errorf("failed to get grant: %w", err)
	}

	before := grant.Capabilities
	grant.Capabilities = before.Apply(c, value).Normalize(ref.Kind)
	grant.GrantedBy = actor.ID
	grant.UpdatedAt = s.now()

	err = s.grants.Upsert(ctx, grant)
	s.recorder.GrantChange(ctx, string(ref.Kind), err)
	if err != nil {
		return fmt.Errorf("failed to save grant: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeGrantChanged,
		ActorID:   actor.ID,
		SubjectID: subjectID,
		Resource:  ref.String(),
		Metadata: map[string]any{
			"capability": string(c),
			"value":      value,
			"before":     before.String(),
			"after":      grant.Capabilities.String(),
		},
	})
	return nil
}

// ToggleAll sets every capability available on each ref to enable.
//
// Each resource is updated independently; a failure on one does not stop
// the others and there is no rollback. Disabling a resource with no grant
// row is skipped. Failures are reported together as a *BulkError.
func (s *Service) ToggleAll(ctx context.Context, actor Subject, subjectID string, refs []ResourceRef, enable bool) error {
	if !actor.IsAdmin {
		s.denied(ctx, actor, subjectID, "toggle-all")
		return ErrAccessDenied
	}
	if subjectID == "" {
		return ErrInvalidSubject
	}

	bulk := &BulkError{}
	changed := 0
	for _, ref := range refs {
		ok, err := s.toggle(ctx, actor, subjectID, ref, enable)
		if err != nil {
			bulk.add(ref, err)
			continue
		}
		if ok {
			changed++
		}
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeGrantsToggled,
		ActorID:   actor.ID,
		SubjectID: subjectID,
		Metadata: map[string]any{
			"enable":    enable,
			"requested": len(refs),
			"changed":   changed,
			"failed":    len(bulk.Failed),
		},
	})

	if len(bulk.Failed) > 0 {
		return bulk
	}
	return nil
}

func (s *Service) toggle(ctx context.Context, actor Subject, subjectID string, ref ResourceRef, enable bool) (bool, error) {
	if err := ref.Validate(); err != nil {
		return false, err
	}

	grant, err := s.grants.Get(ctx, subjectID, ref)
	switch {
	case errors.Is(err, ErrGrantNotFound):
		if !enable {
			return false, nil
		}
		grant = s.newGrant(actor, subjectID, ref)
	case err != nil:
		return false, fmt.Errorf("failed to get grant: %w", err)
	}

	if enable {
		grant.Capabilities = ref.Kind.Capabilities()
	} else {
		grant.Capabilities = 0
	}
	grant.GrantedBy = actor.ID
	grant.UpdatedAt = s.now()

	err = s.grants.Upsert(ctx, grant)
	s.recorder.GrantChange(ctx, string(ref.Kind), err)
	if err != nil {
		return false, fmt.Errorf("failed to save grant: %w", err)
	}
	return true, nil
}

func (s *Service) authorizeMutation(ctx context.Context, actor Subject, subjectID string, ref ResourceRef) error {
	if !actor.IsAdmin {
		s.denied(ctx, actor, subjectID, ref.String())
		return ErrAccessDenied
	}
	if subjectID == "" {
		return ErrInvalidSubject
	}
	return ref.Validate()
}

func (s *Service) denied(ctx context.Context, actor Subject, subjectID, resource string) {
	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeAccessDenied,
		ActorID:   actor.ID,
		SubjectID: subjectID,
		Resource:  resource,
		Metadata:  map[string]any{"operation": "grant_change"},
	})
}

func (s *Service) newGrant(actor Subject, subjectID string, ref ResourceRef) *Grant {
	now := s.now()
	return &Grant{
		ID:        id.NewUUIDv7(),
		SubjectID: subjectID,
		Resource:  ref,
		GrantedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
