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
	"os"

	"github.com/maintly/maintly/internal/audit"
	"github.com/maintly/maintly/internal/observability/logger"
)

const (
	EnvBootstrapAdminEmail = "MAINTLY_BOOTSTRAP_ADMIN_EMAIL"

	// ActorSystemBootstrap is the audit actor for bootstrap promotions.
	ActorSystemBootstrap = "system:bootstrap"
)

// ErrBootstrapUserNotFound is returned when the configured email has no profile yet.
var ErrBootstrapUserNotFound = errors.New("bootstrap user has not signed in yet")

// BootstrapService manages the initial initialization of the system
type BootstrapService struct {
	repo        ProfileRepository
	auditLogger audit.Logger
	getenv      func(string) string
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(repo ProfileRepository, auditLogger audit.Logger) *BootstrapService {
	return &BootstrapService{
		repo:        repo,
		auditLogger: auditLogger,
		getenv:      os.Getenv,
	}
}

// Bootstrap promotes the profile named by MAINTLY_BOOTSTRAP_ADMIN_EMAIL to
// admin when no admin exists. It does nothing when the variable is unset or
// an admin is already present.
func (s *BootstrapService) Bootstrap(ctx context.Context) error {
	email := s.getenv(EnvBootstrapAdminEmail)
	if email == "" {
		return nil
	}

	n, err := s.repo.CountAdmins(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for existing admin: %w", err)
	}
	if n > 0 {
		return nil
	}

	p, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrProfileNotFound) {
		return fmt.Errorf("%w: %s", ErrBootstrapUserNotFound, email)
	}
	if err != nil {
		return fmt.Errorf("failed to get bootstrap profile: %w", err)
	}

	if err := s.repo.UpdateAdmin(ctx, p.UserID, true); err != nil {
		return fmt.Errorf("failed to promote bootstrap admin: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeBootstrapPromotion,
		ActorID:   ActorSystemBootstrap,
		SubjectID: p.UserID,
		Metadata:  map[string]any{"email": email},
	})
	slog.InfoContext(ctx, "bootstrapped initial admin", logger.UserID(p.UserID), logger.Email(email))
	return nil
}
