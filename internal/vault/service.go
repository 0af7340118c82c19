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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/maintly/maintly/internal/audit"
	"github.com/maintly/maintly/internal/authz"
	"github.com/maintly/maintly/internal/crypto"
	"github.com/maintly/maintly/internal/id"
	"github.com/maintly/maintly/internal/observability/logger"
	"github.com/maintly/maintly/internal/observability/metrics"
	"github.com/maintly/maintly/internal/ratelimit"
	"github.com/maintly/maintly/internal/sanitize"
)

// rateLimitEntity prefixes the per-subject creation limiter key.
const rateLimitEntity = "secret"

// Service provides credential vault business logic
type Service struct {
	repo        Repository
	groups      GroupRepository
	authorizer  Authorizer
	cipher      *crypto.Cipher
	limiter     *ratelimit.Limiter
	auditLogger audit.Logger

	recorder     *metrics.Recorder
	tracer       trace.Tracer
	createMax    int
	createWindow time.Duration
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder sets the metrics recorder.
func WithRecorder(r *metrics.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithTracer sets the tracer used for vault spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithCreateLimit overrides how many secrets a subject may create per window.
func WithCreateLimit(attempts int, window time.Duration) Option {
	return func(s *Service) {
		s.createMax = attempts
		s.createWindow = window
	}
}

// NewService creates a new vault service
func NewService(
	repo Repository,
	groups GroupRepository,
	authorizer Authorizer,
	cipher *crypto.Cipher,
	limiter *ratelimit.Limiter,
	auditLogger audit.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		repo:         repo,
		groups:       groups,
		authorizer:   authorizer,
		cipher:       cipher,
		limiter:      limiter,
		auditLogger:  auditLogger,
		tracer:       noop.NewTracerProvider().Tracer("vault"),
		createMax:    ratelimit.DefaultMaxAttempts,
		createWindow: ratelimit.DefaultWindow,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new secret encrypted under the actor's key.
func (s *Service) Create(ctx context.Context, actor authz.Subject, in Input) (*View, error) {
	ctx, span := s.tracer.Start(ctx, "vault.Create")
	defer span.End()

	if s.limiter.IsLimited(ratelimit.Key(rateLimitEntity, actor.ID), s.createMax, s.createWindow) {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeRateLimited,
			ActorID:  actor.ID,
			Resource: rateLimitEntity,
		})
		return nil, ErrRateLimited
	}

	in = clean(in)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidSecret)
	}
	if in.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidSecret)
	}

	ref := createRef(in.ClientID)
	if err := s.require(ctx, actor, authz.CapCreate, ref); err != nil {
		return nil, err
	}

	s.registerGroup(ctx, actor, in.Group)

	ciphertext, err := s.cipher.Encrypt(in.Password, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret: %w", err)
	}

	now := s.now()
	secret := &Secret{
		ID:         id.NewUUIDv7(),
		Name:       in.Name,
		Login:      in.Login,
		Ciphertext: ciphertext,
		URL:        in.URL,
		Note:       in.Note,
		Group:      in.Group,
		ClientID:   in.ClientID,
		CompanyID:  in.CompanyID,
		CreatedBy:  actor.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, secret); err != nil {
		return nil, fmt.Errorf("failed to create secret: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSecretCreated,
		ActorID:  actor.ID,
		Resource: authz.Secret(secret.ID).String(),
		Metadata: map[string]any{"name": secret.Name, "client_id": secret.ClientID, "group": secret.Group},
	})

	return &View{Secret: *secret, Password: in.Password, Decrypted: true, CanEdit: true, CanDelete: true}, nil
}

// Update replaces the fields of a secret. An empty password keeps the
// stored ciphertext; a new one is encrypted under the actor's key.
// Moving a secret to another client also needs create on that client.
func (s *Service) Update(ctx context.Context, actor authz.Subject, secretID string, in Input) (*View, error) {
	ctx, span := s.tracer.Start(ctx, "vault.Update", trace.WithAttributes(attribute.String("secret.id", secretID)))
	defer span.End()

	existing, acc, err := s.load(ctx, actor, secretID)
	if err != nil {
		return nil, err
	}
	if !acc.edit {
		return nil, s.deny(ctx, actor, authz.Secret(secretID), authz.CapEdit)
	}

	in = clean(in)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidSecret)
	}
	if in.ClientID != existing.ClientID {
		if err := s.require(ctx, actor, authz.CapCreate, createRef(in.ClientID)); err != nil {
			return nil, err
		}
	}

	s.registerGroup(ctx, actor, in.Group)

	updated := *existing
	updated.Name = in.Name
	updated.Login = in.Login
	updated.URL = in.URL
	updated.Note = in.Note
	updated.Group = in.Group
	updated.ClientID = in.ClientID
	updated.CompanyID = in.CompanyID
	updated.UpdatedAt = s.now()

	passwordChanged := in.Password != ""
	if passwordChanged {
		ciphertext, err := s.cipher.Encrypt(in.Password, actor.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt secret: %w", err)
		}
		updated.Ciphertext = ciphertext
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to update secret: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSecretUpdated,
		ActorID:  actor.ID,
		Resource: authz.Secret(secretID).String(),
		Metadata: map[string]any{"name": updated.Name, "password_changed": passwordChanged},
	})

	return s.view(ctx, actor, &updated, acc), nil
}

// Delete removes a secret.
func (s *Service) Delete(ctx context.Context, actor authz.Subject, secretID string) error {
	ctx, span := s.tracer.Start(ctx, "vault.Delete", trace.WithAttributes(attribute.String("secret.id", secretID)))
	defer span.End()

	existing, acc, err := s.load(ctx, actor, secretID)
	if err != nil {
		return err
	}
	if !acc.delete {
		return s.deny(ctx, actor, authz.Secret(secretID), authz.CapDelete)
	}

	if err := s.repo.Delete(ctx, secretID); err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSecretDeleted,
		ActorID:  actor.ID,
		Resource: authz.Secret(secretID).String(),
		Metadata: map[string]any{"name": existing.Name},
	})
	return nil
}

// Get returns one secret visible to actor. Invisible secrets are reported
// as not found.
func (s *Service) Get(ctx context.Context, actor authz.Subject, secretID string) (*View, error) {
	ctx, span := s.tracer.Start(ctx, "vault.Get", trace.WithAttributes(attribute.String("secret.id", secretID)))
	defer span.End()

	secret, acc, err := s.load(ctx, actor, secretID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, actor, secret, acc), nil
}

// List returns the secrets visible to actor, each decrypted with the
// actor's key. A secret that cannot be decrypted is returned with its
// stored value and does not affect the others.
func (s *Service) List(ctx context.Context, actor authz.Subject, filter Filter) ([]*View, error) {
	ctx, span := s.tracer.Start(ctx, "vault.List")
	defer span.End()
	start := s.now()

	snap, err := s.authorizer.Snapshot(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("failed to load grants: %w", err)
	}

	filter.ClientID = strings.TrimSpace(filter.ClientID)
	filter.Group = strings.TrimSpace(filter.Group)
	secrets, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}

	views := make([]*View, 0, len(secrets))
	for _, secret := range secrets {
		acc := resolveAccess(snap, secret)
		if !acc.view {
			continue
		}
		views = append(views, s.view(ctx, actor, secret, acc))
	}

	span.SetAttributes(attribute.Int("vault.listed", len(secrets)), attribute.Int("vault.visible", len(views)))
	s.recorder.VaultList(ctx, s.now().Sub(start))
	return views, nil
}

// ListGroups returns the registered group labels.
func (s *Service) ListGroups(ctx context.Context) ([]string, error) {
	groups, err := s.groups.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

// load fetches a secret and resolves actor's access, hiding what actor
// cannot view.
func (s *Service) load(ctx context.Context, actor authz.Subject, secretID string) (*Secret, access, error) {
	secret, err := s.repo.GetByID(ctx, secretID)
	if err != nil {
		if errors.Is(err, ErrSecretNotFound) {
			return nil, access{}, ErrSecretNotFound
		}
		return nil, access{}, fmt.Errorf("failed to get secret: %w", err)
	}

	snap, err := s.authorizer.Snapshot(ctx, actor)
	if err != nil {
		return nil, access{}, fmt.Errorf("failed to load grants: %w", err)
	}

	acc := resolveAccess(snap, secret)
	if !acc.view {
		return nil, access{}, ErrSecretNotFound
	}
	return secret, acc, nil
}

func (s *Service) view(ctx context.Context, actor authz.Subject, secret *Secret, acc access) *View {
	res := s.cipher.Open(secret.Ciphertext, actor.ID)
	s.recorder.VaultDecrypt(ctx, res.Outcome.String())
	return &View{
		Secret:    *secret,
		Password:  res.Plaintext,
		Decrypted: res.Outcome != crypto.OutcomePassthrough,
		CanEdit:   acc.edit,
		CanDelete: acc.delete,
	}
}

func (s *Service) require(ctx context.Context, actor authz.Subject, action authz.Capability, ref authz.ResourceRef) error {
	ok, err := s.authorizer.Can(ctx, actor, action, ref)
	if err != nil {
		return fmt.Errorf("failed to check permission: %w", err)
	}
	if !ok {
		return s.deny(ctx, actor, ref, action)
	}
	return nil
}

func (s *Service) deny(ctx context.Context, actor authz.Subject, ref authz.ResourceRef, action authz.Capability) error {
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAccessDenied,
		ActorID:  actor.ID,
		Resource: ref.String(),
		Metadata: map[string]any{"capability": string(action)},
	})
	return authz.ErrAccessDenied
}

func (s *Service) registerGroup(ctx context.Context, actor authz.Subject, group string) {
	if group == "" {
		return
	}
	if err := s.groups.EnsureGroup(ctx, group, actor.ID); err != nil {
		slog.WarnContext(ctx, "failed to register vault group", logger.Error(err), logger.UserID(actor.ID))
	}
}

// clean sanitizes every text field, the password included, before it is
// encrypted or stored, and normalizes placeholder ids.
func clean(in Input) Input {
	out := Input{
		Name:      strings.TrimSpace(sanitize.Text(in.Name)),
		Password:  sanitize.Text(in.Password),
		Login:     strings.TrimSpace(sanitize.Text(in.Login)),
		URL:       strings.TrimSpace(sanitize.Text(in.URL)),
		Note:      sanitize.Text(in.Note),
		Group:     strings.TrimSpace(sanitize.Text(in.Group)),
		ClientID:  strings.TrimSpace(in.ClientID),
		CompanyID: strings.TrimSpace(in.CompanyID),
	}
	if out.ClientID == noneID {
		out.ClientID = ""
	}
	if out.CompanyID == noneID {
		out.CompanyID = ""
	}
	return out
}
