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

	"github.com/maintly/maintly/internal/identity"
)

// SubjectResponse is one profile as listed to administrators.
type SubjectResponse struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
}

// UpdateProfileRequest changes a subject's display data.
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

func subjectResponse(p *identity.Profile) SubjectResponse {
	return SubjectResponse{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		IsAdmin:     p.IsAdmin,
		CreatedAt:   p.CreatedAt,
	}
}

// ListSubjects returns every profile. Admin only.
func (h *Handler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles.ListProfiles(r.Context(), subject(r))
	if err != nil {
		fail(w, r, "list subjects", err)
		return
	}

	out := make([]SubjectResponse, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, subjectResponse(p))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"subjects": out,
		"count":    len(out),
	})
}

// UpdateSubjectProfile changes the display name and email of a subject.
// Users may edit themselves; admins may edit anyone.
func (h *Handler) UpdateSubjectProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.profiles.UpdateDisplay(r.Context(), subject(r), chi.URLParam(r, "subjectID"), req.DisplayName, req.Email)
	if err != nil {
		fail(w, r, "update profile", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
