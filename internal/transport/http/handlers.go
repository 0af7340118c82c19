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

package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/maintly/maintly/internal/authz"
	"github.com/maintly/maintly/internal/identity"
	"github.com/maintly/maintly/internal/observability/logger"
	"github.com/maintly/maintly/internal/observability/metrics"
	"github.com/maintly/maintly/internal/vault"
)

const maxBodyBytes = 1 << 20

// ProfileService is the subset of identity.Service used by the handlers.
type ProfileService interface {
	EnsureProfile(ctx context.Context, userID, email, displayName string) (*identity.Profile, error)
	SetAdmin(ctx context.Context, actor authz.Subject, targetID string, isAdmin bool) error
	ListProfiles(ctx context.Context, actor authz.Subject) ([]*identity.Profile, error)
	UpdateDisplay(ctx context.Context, actor authz.Subject, userID, displayName, email string) error
}

// PermissionService is the subset of authz.Service used by the handlers.
type PermissionService interface {
	Can(ctx context.Context, subject authz.Subject, action authz.Capability, ref authz.ResourceRef) (bool, error)
	Snapshot(ctx context.Context, subject authz.Subject) (*authz.Snapshot, error)
	SetCapability(ctx context.Context, actor authz.Subject, subjectID string, ref authz.ResourceRef, c authz.Capability, value bool) error
	ToggleAll(ctx context.Context, actor authz.Subject, subjectID string, refs []authz.ResourceRef, enable bool) error
}

// VaultService is the subset of vault.Service used by the handlers.
type VaultService interface {
	Create(ctx context.Context, actor authz.Subject, in vault.Input) (*vault.View, error)
	Update(ctx context.Context, actor authz.Subject, secretID string, in vault.Input) (*vault.View, error)
	Delete(ctx context.Context, actor authz.Subject, secretID string) error
	Get(ctx context.Context, actor authz.Subject, secretID string) (*vault.View, error)
	List(ctx context.Context, actor authz.Subject, filter vault.Filter) ([]*vault.View, error)
	ListGroups(ctx context.Context) ([]string, error)
}

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(ctx context.Context) error

// Handler holds HTTP handlers and dependencies
type Handler struct {
	profiles    ProfileService
	permissions PermissionService
	secrets     VaultService
	verifier    *TokenVerifier
	health      HealthFunc
}

// NewHandler creates a new HTTP handler. health may be nil.
func NewHandler(
	profiles ProfileService,
	permissions PermissionService,
	secrets VaultService,
	verifier *TokenVerifier,
	health HealthFunc,
) *Handler {
	return &Handler{
		profiles:    profiles,
		permissions: permissions,
		secrets:     secrets,
		verifier:    verifier,
		health:      health,
	}
}

// RouterConfig holds router-level settings
type RouterConfig struct {
	RequestTimeout time.Duration
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter, httpMetrics *metrics.HTTP, cfg RouterConfig) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(httpMetrics.Instrument)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", h.HealthCheck)
	r.Method(http.MethodGet, "/metrics", httpMetrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Get("/me/permissions", h.GetMyPermissions)
		r.Get("/permissions/check", h.CheckPermission)

		r.Get("/subjects", h.ListSubjects)
		r.Route("/subjects/{subjectID}", func(r chi.Router) {
			r.Put("/profile", h.UpdateSubjectProfile)
			r.Put("/grants", h.SetGrant)
			r.Post("/grants/toggle-all", h.ToggleAllGrants)
			r.Put("/admin", h.SetAdmin)
		})

		r.Route("/secrets", func(r chi.Router) {
			r.Get("/", h.ListSecrets)
			r.Post("/", h.CreateSecret)
			r.Get("/groups", h.ListSecretGroups)
			r.Get("/{secretID}", h.GetSecret)
			r.Put("/{secretID}", h.UpdateSecret)
			r.Delete("/{secretID}", h.DeleteSecret)
		})
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "health check failed", logger.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "maintly",
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "maintly",
	})
}

// fail logs err and writes its public form.
func fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := publicError(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), op+" failed",
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.UserID(GetUserID(r.Context())),
			logger.Error(err),
		)
	} else {
		slog.DebugContext(r.Context(), op+" rejected",
			logger.UserID(GetUserID(r.Context())),
			logger.Error(err),
		)
	}
	respondError(w, status, msg)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected trailing data")
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
