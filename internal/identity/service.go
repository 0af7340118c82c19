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

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/maintly/maintly/internal/audit"
	"github.com/maintly/maintly/internal/authz"
	"github.com/maintly/maintly/internal/id"
	"github.com/maintly/maintly/internal/observability/logger"
	"github.com/maintly/maintly/internal/sanitize"
)

// Service provides profile management
type Service struct {
	repo        ProfileRepository
	auditLogger audit.Logger
	now         func() time.Time
}

// NewService creates a new identity service
func NewService(repo ProfileRepository, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// EnsureProfile returns the profile for userID, creating it on first sight.
// Concurrent first requests for the same user converge on one profile.
func (s *Service) EnsureProfile(ctx context.Context, userID, email, displayName string) (*Profile, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	p, err := s.repo.GetByUserID(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	email = strings.TrimSpace(email)
	if email != "" && !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	displayName = sanitize.Text(strings.TrimSpace(displayName))
	if displayName == "" {
		displayName = defaultDisplayName(email, userID)
	}

	now := s.now()
	p = &Profile{
		ID:          id.NewUUIDv7(),
		UserID:      userID,
		DisplayName: displayName,
		Email:       email,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, ErrProfileExists) {
			return s.repo.GetByUserID(ctx, userID)
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	slog.InfoContext(ctx, "profile created", logger.UserID(userID))
	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeProfileCreated,
		ActorID:   userID,
		SubjectID: userID,
		Metadata:  map[string]any{"email": email},
	})
	return p, nil
}

// GetProfile retrieves a profile by provider user id
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// ListProfiles returns every profile. Only admins may list.
func (s *Service) ListProfiles(ctx context.Context, actor authz.Subject) ([]*Profile, error) {
	if !actor.IsAdmin {
		return nil, authz.ErrAccessDenied
	}
	profiles, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

// SetAdmin changes the admin flag of targetID. Only admins may do this, and
// the last remaining admin cannot be demoted.
func (s *Service) SetAdmin(ctx context.Context, actor authz.Subject, targetID string, isAdmin bool) error {
	if !actor.IsAdmin {
		s.auditLogger.Log(ctx, audit.Event{
			Type:      audit.TypeAccessDenied,
			ActorID:   actor.ID,
			SubjectID: targetID,
			Metadata:  map[string]any{"operation": "set_admin"},
		})
		return authz.ErrAccessDenied
	}

	target, err := s.repo.GetByUserID(ctx, targetID)
	if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}
	if target.IsAdmin == isAdmin {
		return nil
	}

	if isAdmin {
		err = s.repo.UpdateAdmin(ctx, targetID, true)
	} else {
		err = s.repo.DemoteAdmin(ctx, targetID)
	}
	if errors.Is(err, ErrLastAdmin) {
		return ErrLastAdmin
	}
	if err != nil {
		return fmt.Errorf("failed to update admin flag: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeAdminChanged,
		ActorID:   actor.ID,
		SubjectID: targetID,
		Metadata:  map[string]any{"is_admin": isAdmin},
	})
	return nil
}

// UpdateDisplay changes the display name and email of userID.
// Users may edit their own profile; admins may edit any.
func (s *Service) UpdateDisplay(ctx context.Context, actor authz.Subject, userID, displayName, email string) error {
	if !actor.IsAdmin && actor.ID != userID {
		return authz.ErrAccessDenied
	}
	email = strings.TrimSpace(email)
	if email != "" && !isValidEmail(email) {
		return ErrInvalidEmail
	}
	displayName = sanitize.Text(strings.TrimSpace(displayName))
	if displayName == "" {
		displayName = defaultDisplayName(email, userID)
	}
	if err := s.repo.UpdateDisplay(ctx, userID, displayName, email); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

func isValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func defaultDisplayName(email, userID string) string {
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	return userID
}
