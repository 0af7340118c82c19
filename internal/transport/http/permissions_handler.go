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
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/maintly/maintly/internal/authz"
	"github.com/maintly/maintly/internal/observability/logger"
)

// GrantView is one resource grant as returned to clients.
type GrantView struct {
	Kind         authz.ResourceKind        `json:"kind"`
	ID           string                    `json:"id"`
	Capabilities map[authz.Capability]bool `json:"capabilities"`
}

// PermissionsResponse is the caller's effective permission state.
type PermissionsResponse struct {
	UserID           string      `json:"user_id"`
	DisplayName      string      `json:"display_name"`
	Email            string      `json:"email"`
	IsAdmin          bool        `json:"is_admin"`
	HasAnyClientView bool        `json:"has_any_client_view"`
	ViewableClients  []string    `json:"viewable_clients"`
	Grants           []GrantView `json:"grants"`
}

// SetGrantRequest changes one capability on one resource.
type SetGrantRequest struct {
	Kind       string `json:"kind"`
	ID         string `json:"id"`
	Capability string `json:"capability"`
	Value      *bool  `json:"value"`
}

// ToggleAllRequest sets every capability on each listed resource.
type ToggleAllRequest struct {
	Resources []authz.ResourceRef `json:"resources"`
	Enable    *bool               `json:"enable"`
}

// SetAdminRequest changes a subject's admin flag.
type SetAdminRequest struct {
	IsAdmin *bool `json:"is_admin"`
}

// GetMyPermissions returns the caller's grants and derived flags.
func (h *Handler) GetMyPermissions(w http.ResponseWriter, r *http.Request) {
	sub := subject(r)

	snap, err := h.permissions.Snapshot(r.Context(), sub)
	if err != nil {
		fail(w, r, "load permissions", err)
		return
	}

	grants := snap.Grants()
	refs := make([]authz.ResourceRef, 0, len(grants))
	for ref := range grants {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].String() < refs[j].String() })

	views := make([]GrantView, 0, len(refs))
	for _, ref := range refs {
		views = append(views, GrantView{
			Kind:         ref.Kind,
			ID:           ref.ID,
			Capabilities: grants[ref].Flags(ref.Kind),
		})
	}

	respondJSON(w, http.StatusOK, PermissionsResponse{
		UserID:           sub.ID,
		DisplayName:      sub.DisplayName,
		Email:            sub.Email,
		IsAdmin:          snap.IsAdmin(),
		HasAnyClientView: snap.HasAnyClientView(),
		ViewableClients:  snap.IDs(authz.KindClient, authz.CapView),
		Grants:           views,
	})
}

// CheckPermission evaluates ?action= on ?kind= and ?id= for the caller.
func (h *Handler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kind, err := authz.ParseResourceKind(q.Get("kind"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid resource kind")
		return
	}
	action, err := authz.ParseCapability(q.Get("action"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid action")
		return
	}
	ref := authz.ResourceRef{Kind: kind, ID: q.Get("id")}
	if err := ref.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid resource")
		return
	}

	allowed, err := h.permissions.Can(r.Context(), subject(r), action, ref)
	if err != nil {
		fail(w, r, "check permission", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"resource": ref,
		"action":   action,
		"allowed":  allowed,
	})
}

// SetGrant sets one capability of a subject on a resource.
func (h *Handler) SetGrant(w http.ResponseWriter, r *http.Request) {
	var req SetGrantRequest
	if err := decodeJSON(r, &req); err != nil || req.Value == nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind, err := authz.ParseResourceKind(req.Kind)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid resource kind")
		return
	}
	c, err := authz.ParseCapability(req.Capability)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid capability")
		return
	}

	subjectID := chi.URLParam(r, "subjectID")
	ref := authz.ResourceRef{Kind: kind, ID: req.ID}
	if err := h.permissions.SetCapability(r.Context(), subject(r), subjectID, ref, c, *req.Value); err != nil {
		fail(w, r, "set grant", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ToggleAllGrants grants or revokes everything on the listed resources.
// Partial failures return 207 with the resources that were not changed.
func (h *Handler) ToggleAllGrants(w http.ResponseWriter, r *http.Request) {
	var req ToggleAllRequest
	if err := decodeJSON(r, &req); err != nil || req.Enable == nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	subjectID := chi.URLParam(r, "subjectID")
	err := h.permissions.ToggleAll(r.Context(), subject(r), subjectID, req.Resources, *req.Enable)

	var bulk *authz.BulkError
	switch {
	case errors.As(err, &bulk):
		slog.WarnContext(r.Context(), "bulk grant update partially failed",
			logger.UserID(GetUserID(r.Context())),
			logger.SubjectID(subjectID),
			logger.Count("failed", len(bulk.Failed)),
			logger.Error(err),
		)
		respondJSON(w, http.StatusMultiStatus, map[string]any{
			"error":  msgPartialFailed,
			"failed": bulk.Failed,
		})
	case err != nil:
		fail(w, r, "toggle grants", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// SetAdmin promotes or demotes a subject.
func (h *Handler) SetAdmin(w http.ResponseWriter, r *http.Request) {
	var req SetAdminRequest
	if err := decodeJSON(r, &req); err != nil || req.IsAdmin == nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.profiles.SetAdmin(r.Context(), subject(r), chi.URLParam(r, "subjectID"), *req.IsAdmin); err != nil {
		fail(w, r, "set admin", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
