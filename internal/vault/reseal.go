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

package vault

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maintly/maintly/internal/audit"
	"github.com/maintly/maintly/internal/authz"
	"github.com/maintly/maintly/internal/crypto"
	"github.com/maintly/maintly/internal/observability/logger"
)

// ResealReport summarizes a legacy re-encryption run.
type ResealReport struct {
	Scanned    int
	Legacy     int
	Resealed   int
	Unreadable int
	Failed     int
}

// ResealLegacy re-encrypts every legacy-format ciphertext into the current
// format using its creator's key. Values that do not open with the
// creator's key are counted as unreadable and left untouched. With dryRun
// nothing is written.
func (s *Service) ResealLegacy(ctx context.Context, dryRun bool) (ResealReport, error) {
	ctx, span := s.tracer.Start(ctx, "vault.ResealLegacy")
	defer span.End()

	var report ResealReport
	secrets, err := s.repo.List(ctx, Filter{})
	if err != nil {
		return report, fmt.Errorf("failed to list secrets: %w", err)
	}

	for _, secret := range secrets {
		report.Scanned++
		if !crypto.IsLegacy(secret.Ciphertext) {
			continue
		}
		report.Legacy++

		sealed, changed, err := s.cipher.Reseal(secret.Ciphertext, secret.CreatedBy)
		if err != nil {
			report.Failed++
			slog.ErrorContext(ctx, "failed to reseal secret", logger.SecretID(secret.ID), logger.Error(err))
			continue
		}
		if !changed {
			report.Unreadable++
			continue
		}
		if dryRun {
			report.Resealed++
			continue
		}

		if err := s.repo.UpdateCiphertext(ctx, secret.ID, sealed); err != nil {
			report.Failed++
			slog.ErrorContext(ctx, "failed to store resealed secret", logger.SecretID(secret.ID), logger.Error(err))
			continue
		}
		report.Resealed++
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeSecretResealed,
			ActorID:  "system:reseal",
			Resource: authz.Secret(secret.ID).String(),
		})
	}
	return report, nil
}
