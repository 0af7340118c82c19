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
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maintly/maintly/internal/vault"
)

// SecretRequest carries the writable fields of a vault secret.
type SecretRequest struct {
	Name      string `json:"name"`
	Password  string `json:"password"`
	Login     string `json:"login"`
	URL       string `json:"url"`
	Note      string `json:"note"`
	Group     string `json:"group"`
	ClientID  string `json:"client_id"`
	CompanyID string `json:"company_id"`
}

func (req SecretRequest) input() vault.Input {
	return vault.Input{
		Name:      req.Name,
		Password:  req.Password,
		Login:     req.Login,
		URL:       req.URL,
		Note:      req.Note,
		Group:     req.Group,
		ClientID:  req.ClientID,
		CompanyID: req.CompanyID,
	}
}

// SecretResponse is a secret as seen by the caller. Password holds the
// stored ciphertext when Decrypted is false.
type SecretResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Login     string    `json:"login,omitempty"`
	Password  string    `json:"password"`
	Decrypted bool      `json:"decrypted"`
	URL       string    `json:"url,omitempty"`
	Note      string    `json:"note,omitempty"`
	Group     string    `json:"group,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
	CompanyID string    `json:"company_id,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CanEdit   bool      `json:"can_edit"`
	CanDelete bool      `json:"can_delete"`
}

func secretResponse(v *vault.View) SecretResponse {
	return SecretResponse{
		ID:        v.ID,
		Name:      v.Name,
		Login:     v.Login,
		Password:  v.Password,
		Decrypted: v.Decrypted,
		URL:       v.URL,
		Note:      v.Note,
		Group:     v.Group,
		ClientID:  v.ClientID,
		CompanyID: v.CompanyID,
		CreatedBy: v.CreatedBy,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
		CanEdit:   v.CanEdit,
		CanDelete: v.CanDelete,
	}
}

// ListSecrets returns the secrets visible to the caller.
func (h *Handler) ListSecrets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	views, err := h.secrets.List(r.Context(), subject(r), vault.Filter{
		ClientID:  q.Get("client_id"),
		CompanyID: q.Get("company_id"),
		Group:     q.Get("group"),
	})
	if err != nil {
		fail(w, r, "list secrets", err)
		return
	}

	out := make([]SecretResponse, 0, len(views))
	for _, v := range views {
		out = append(out, secretResponse(v))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"secrets": out,
		"count":   len(out),
	})
}

// ListSecretGroups returns the registered group labels.
func (h *Handler) ListSecretGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.secrets.ListGroups(r.Context())
	if err != nil {
		fail(w, r, "list groups", err)
		return
	}
	if groups == nil {
		groups = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

// CreateSecret stores a new secret under the caller's key.
func (h *Handler) CreateSecret(w http.ResponseWriter, r *http.Request) {
	var req SecretRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	v, err := h.secrets.Create(r.Context(), subject(r), req.input())
	if err != nil {
		fail(w, r, "create secret", err)
		return
	}
	respondJSON(w, http.StatusCreated, secretResponse(v))
}

// GetSecret returns one secret.
func (h *Handler) GetSecret(w http.ResponseWriter, r *http.Request) {
	v, err := h.secrets.Get(r.Context(), subject(r), chi.URLParam(r, "secretID"))
	if err != nil {
		fail(w, r, "get secret", err)
		return
	}
	respondJSON(w, http.StatusOK, secretResponse(v))
}

// UpdateSecret replaces a secret's fields; an empty password keeps the stored one.
func (h *Handler) UpdateSecret(w http.ResponseWriter, r *http.Request) {
	var req SecretRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	v, err := h.secrets.Update(r.Context(), subject(r), chi.URLParam(r, "secretID"), req.input())
	if err != nil {
		fail(w, r, "update secret", err)
		return
	}
	respondJSON(w, http.StatusOK, secretResponse(v))
}

// DeleteSecret removes a secret.
func (h *Handler) DeleteSecret(w http.ResponseWriter, r *http.Request) {
	if err := h.secrets.Delete(r.Context(), subject(r), chi.URLParam(r, "secretID")); err != nil {
		fail(w, r, "delete secret", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
