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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maintly/maintly/internal/audit"
	"github.com/maintly/maintly/internal/authz"
	"github.com/maintly/maintly/internal/authz/authztest"
	"github.com/maintly/maintly/internal/identity"
	"github.com/maintly/maintly/internal/observability/metrics"
	"github.com/maintly/maintly/internal/store"
	"github.com/maintly/maintly/internal/vault"
)

// fakeProfiles keeps profiles in memory. The user id "root" is an admin.
type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*identity.Profile
	setErr   error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: map[string]*identity.Profile{
		"root": {ID: "p-root", UserID: "root", DisplayName: "Root", IsAdmin: true},
	}}
}

func (f *fakeProfiles) EnsureProfile(_ context.Context, userID, email, displayName string) (*identity.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[userID]; ok {
		cp := *p
		return &cp, nil
	}
	p := &identity.Profile{ID: "p-" + userID, UserID: userID, Email: email, DisplayName: displayName}
	f.profiles[userID] = p
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) SetAdmin(_ context.Context, actor authz.Subject, targetID string, isAdmin bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !actor.IsAdmin {
		return authz.ErrAccessDenied
	}
	if f.setErr != nil {
		return f.setErr
	}
	p, ok := f.profiles[targetID]
	if !ok {
		return identity.ErrProfileNotFound
	}
	p.IsAdmin = isAdmin
	return nil
}

func (f *fakeProfiles) ListProfiles(_ context.Context, actor authz.Subject) ([]*identity.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !actor.IsAdmin {
		return nil, authz.ErrAccessDenied
	}
	out := make([]*identity.Profile, 0, len(f.profiles))
	for _, p := range f.profiles {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *fakeProfiles) UpdateDisplay(_ context.Context, actor authz.Subject, userID, displayName, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !actor.IsAdmin && actor.ID != userID {
		return authz.ErrAccessDenied
	}
	p, ok := f.profiles[userID]
	if !ok {
		return identity.ErrProfileNotFound
	}
	p.DisplayName, p.Email = displayName, email
	return nil
}

// fakeVault records the last input and returns canned results.
type fakeVault struct {
	mu      sync.Mutex
	err     error
	views   []*vault.View
	lastIn  vault.Input
	lastID  string
	lastFor authz.Subject
	filter  vault.Filter
}

func (f *fakeVault) record(actor authz.Subject, id string, in vault.Input) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFor, f.lastID, f.lastIn = actor, id, in
}

func (f *fakeVault) Create(_ context.Context, actor authz.Subject, in vault.Input) (*vault.View, error) {
	f.record(actor, "", in)
	if f.err != nil {
		return nil, f.err
	}
	return &vault.View{Secret: vault.Secret{ID: "s-new", Name: in.Name, CreatedBy: actor.ID}, Password: in.Password, Decrypted: true}, nil
}

func (f *fakeVault) Update(_ context.Context, actor authz.Subject, id string, in vault.Input) (*vault.View, error) {
	f.record(actor, id, in)
	if f.err != nil {
		return nil, f.err
	}
	return &vault.View{Secret: vault.Secret{ID: id, Name: in.Name}}, nil
}

func (f *fakeVault) Delete(_ context.Context, actor authz.Subject, id string) error {
	f.record(actor, id, vault.Input{})
	return f.err
}

func (f *fakeVault) Get(_ context.Context, actor authz.Subject, id string) (*vault.View, error) {
	f.record(actor, id, vault.Input{})
	if f.err != nil {
		return nil, f.err
	}
	for _, v := range f.views {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, vault.ErrSecretNotFound
}

func (f *fakeVault) List(_ context.Context, actor authz.Subject, filter vault.Filter) ([]*vault.View, error) {
	f.record(actor, "", vault.Input{})
	f.filter = filter
	return f.views, f.err
}

func (f *fakeVault) ListGroups(context.Context) ([]string, error) {
	return nil, f.err
}

type fixture struct {
	router   http.Handler
	grants   *authztest.GrantRepository
	profiles *fakeProfiles
	vault    *fakeVault
	healthy  error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		grants:   authztest.NewGrantRepository(),
		profiles: newFakeProfiles(),
		vault:    &fakeVault{},
	}
	permissions := authz.NewService(f.grants, audit.Discard{}, nil)
	verifier := NewTokenVerifier(testSecret, "", "", 0)
	h := NewHandler(f.profiles, permissions, f.vault, verifier, func(context.Context) error { return f.healthy })

	rl := NewRateLimiter(1000, 1000)
	t.Cleanup(rl.Stop)

	f.router = NewRouter(h, rl, metrics.NewHTTP(), RouterConfig{RequestTimeout: 5 * time.Second})
	return f
}

func (f *fixture) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims(userID)))
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// TestPurpose: Validates that API routes reject requests without a valid bearer token.
// Scope: Unit Test
// Security: Authentication enforcement (CWE-306)
// Expected: 401 for a missing or forged token; health stays public.
// Test Case ID: HND-01
func TestHandler_RequiresAuthentication(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/me/permissions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/secrets", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, []byte("wrong-secret-wrong-secret-wrong-"), validClaims("alice")))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	w = f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestPurpose: Validates that the caller's permission document lists their grants with per-capability flags.
// Scope: Unit Test
// Security: Permission visibility for UI gating
// Expected: One client grant with view only; has_any_client_view is true; is_admin false.
// Test Case ID: HND-02
func TestHandler_GetMyPermissions(t *testing.T) {
	f := newFixture(t)
	f.grants.Put(&authz.Grant{ID: "g1", SubjectID: "alice", Resource: authz.Client("c1"), Capabilities: authz.NewCapabilitySet(authz.CapView)})

	w := f.do(t, http.MethodGet, "/api/v1/me/permissions", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeBody[PermissionsResponse](t, w)
	assert.Equal(t, "alice", resp.UserID)
	assert.False(t, resp.IsAdmin)
	assert.True(t, resp.HasAnyClientView)
	assert.Equal(t, []string{"c1"}, resp.ViewableClients)
	require.Len(t, resp.Grants, 1)
	assert.Equal(t, map[authz.Capability]bool{
		authz.CapView: true, authz.CapEdit: false, authz.CapCreate: false, authz.CapDelete: false,
	}, resp.Grants[0].Capabilities)
}

// TestPurpose: Validates that an admin's permission document shows stored rows rather than a synthesized state.
// Scope: Unit Test
// Security: Permission visibility for UI gating
// Expected: With no rows the admin gets no grants and has_any_client_view false; a client view row is listed and flips it.
// Test Case ID: HND-10
func TestHandler_GetMyPermissions_Admin(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/me/permissions", "root", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[PermissionsResponse](t, w)
	assert.True(t, resp.IsAdmin)
	assert.False(t, resp.HasAnyClientView)
	assert.Equal(t, []string{}, resp.ViewableClients)
	assert.Empty(t, resp.Grants)

	f.grants.Put(&authz.Grant{ID: "g-root", SubjectID: "root", Resource: authz.Client("c1"), Capabilities: authz.NewCapabilitySet(authz.CapView)})
	w = f.do(t, http.MethodGet, "/api/v1/me/permissions", "root", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeBody[PermissionsResponse](t, w)
	assert.True(t, resp.HasAnyClientView)
	require.Len(t, resp.Grants, 1)
	assert.Equal(t, "c1", resp.Grants[0].ID)
}

// TestPurpose: Validates permission checks over HTTP including the admin override and input validation.
// Scope: Unit Test
// Security: Default deny, admin override
// Expected: alice is denied without a grant, root is allowed, an unknown kind is a 400.
// Test Case ID: HND-03
func TestHandler_CheckPermission(t *testing.T) {
	f := newFixture(t)

	type checkResp struct {
		Allowed bool `json:"allowed"`
	}

	w := f.do(t, http.MethodGet, "/api/v1/permissions/check?kind=system&id=equipes&action=edit", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeBody[checkResp](t, w).Allowed)

	w = f.do(t, http.MethodGet, "/api/v1/permissions/check?kind=system&id=equipes&action=edit", "root", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeBody[checkResp](t, w).Allowed)

	w = f.do(t, http.MethodGet, "/api/v1/permissions/check?kind=planet&id=x&action=view", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestPurpose: Validates that only admins can change grants and that granting edit also grants view.
// Scope: Unit Test
// Security: Privilege escalation prevention (CWE-269)
// Expected: alice gets 403; root gets 204 and the stored grant has view and edit.
// Test Case ID: HND-04
func TestHandler_SetGrant(t *testing.T) {
	f := newFixture(t)
	body := SetGrantRequest{Kind: "client", ID: "c1", Capability: "edit", Value: ptr(true)}

	w := f.do(t, http.MethodPut, "/api/v1/subjects/bob/grants", "alice", body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), msgForbidden)
	assert.Zero(t, f.grants.Count())

	w = f.do(t, http.MethodPut, "/api/v1/subjects/bob/grants", "root", body)
	require.Equal(t, http.StatusNoContent, w.Code)

	g, err := f.grants.Get(context.Background(), "bob", authz.Client("c1"))
	require.NoError(t, err)
	assert.True(t, g.Capabilities.CanView())
	assert.True(t, g.Capabilities.CanEdit())

	w = f.do(t, http.MethodPut, "/api/v1/subjects/bob/grants", "root", SetGrantRequest{Kind: "secret", ID: "s1", Capability: "delete", Value: ptr(true)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPut, "/api/v1/subjects/bob/grants", "root", map[string]any{"kind": "client", "id": "c1", "capability": "edit"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestPurpose: Validates that a partially failing bulk toggle reports the failed resources and keeps the rest.
// Scope: Unit Test
// Security: No silent partial authorization changes
// Expected: 207 with the failing ref listed; the other resource is fully granted.
// Test Case ID: HND-05
func TestHandler_ToggleAllPartialFailure(t *testing.T) {
	f := newFixture(t)
	f.grants.FailOn(authz.System(authz.SystemTeams), errors.New("write failed"))

	body := ToggleAllRequest{
		Resources: []authz.ResourceRef{authz.System(authz.SystemClients), authz.System(authz.SystemTeams)},
		Enable:    ptr(true),
	}
	w := f.do(t, http.MethodPost, "/api/v1/subjects/bob/grants/toggle-all", "root", body)
	require.Equal(t, http.StatusMultiStatus, w.Code)

	resp := decodeBody[struct {
		Failed []authz.ResourceRef `json:"failed"`
	}](t, w)
	assert.Equal(t, []authz.ResourceRef{authz.System(authz.SystemTeams)}, resp.Failed)
	assert.NotContains(t, w.Body.String(), "write failed")

	g, err := f.grants.Get(context.Background(), "bob", authz.System(authz.SystemClients))
	require.NoError(t, err)
	assert.Equal(t, authz.KindSystem.Capabilities(), g.Capabilities)
}

// TestPurpose: Validates that admin changes go through the profile service and its refusals map to client errors.
// Scope: Unit Test
// Security: Administrator management
// Expected: root promotes alice (204); a last-admin refusal is a 409.
// Test Case ID: HND-06
func TestHandler_SetAdmin(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/api/v1/me/permissions", "alice", nil)

	w := f.do(t, http.MethodPut, "/api/v1/subjects/alice/admin", "root", SetAdminRequest{IsAdmin: ptr(true)})
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, f.profiles.profiles["alice"].IsAdmin)

	f.profiles.setErr = identity.ErrLastAdmin
	w = f.do(t, http.MethodPut, "/api/v1/subjects/root/admin", "root", SetAdminRequest{IsAdmin: ptr(false)})
	assert.Equal(t, http.StatusConflict, w.Code)
}

// TestPurpose: Validates that secret creation passes the request through and returns the created view.
// Scope: Unit Test
// Security: Credential vault write path
// Expected: 201 with the new id; the service sees the caller as actor and the full input.
// Test Case ID: HND-07
func TestHandler_CreateSecret(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/secrets", "alice", SecretRequest{Name: "router", Password: "pw", ClientID: "c1", Group: "net"})
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeBody[SecretResponse](t, w)
	assert.Equal(t, "s-new", resp.ID)
	assert.Equal(t, "alice", f.vault.lastFor.ID)
	assert.Equal(t, vault.Input{Name: "router", Password: "pw", ClientID: "c1", Group: "net"}, f.vault.lastIn)

	w = f.do(t, http.MethodPost, "/api/v1/secrets", "alice", map[string]any{"name": "x", "unknown": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestPurpose: Validates that service and store errors reach clients only as generic messages.
// Scope: Unit Test
// Security: Information leakage through error messages (CWE-209)
// Expected: Each error class gets its status; no driver detail appears in the body.
// Test Case ID: HND-08
func TestHandler_ErrorsAreGeneric(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"duplicate", fmt.Errorf("insert: %w: vault_secrets_pkey", store.ErrConflict), http.StatusConflict, msgDuplicate},
		{"reference", fmt.Errorf("insert: %w: vault_secrets_client_fkey", store.ErrReference), http.StatusUnprocessableEntity, msgReference},
		{"missing field", fmt.Errorf("%w: name is required", vault.ErrInvalidSecret), http.StatusBadRequest, msgMissingField},
		{"denied", authz.ErrAccessDenied, http.StatusForbidden, msgForbidden},
		{"rate limited", vault.ErrRateLimited, http.StatusTooManyRequests, msgRateLimited},
		{"unavailable", fmt.Errorf("%w: dial tcp 10.0.0.5:5432", store.ErrUnavailable), http.StatusServiceUnavailable, msgUnavailable},
		{"other", errors.New("pq: relation vault_secrets_pkey broke"), http.StatusInternalServerError, msgGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.vault.err = tt.err

			w := f.do(t, http.MethodPost, "/api/v1/secrets", "alice", SecretRequest{Name: "n", Password: "p"})
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.msg, decodeBody[map[string]string](t, w)["error"])
			assert.NotContains(t, w.Body.String(), "vault_secrets")
			assert.NotContains(t, w.Body.String(), "10.0.0.5")
		})
	}
}

// TestPurpose: Validates secret listing filters, single reads, and delete.
// Scope: Unit Test
// Security: Credential vault read path
// Expected: Query filters reach the service; an invisible secret is 404; delete is 204.
// Test Case ID: HND-09
func TestHandler_SecretReads(t *testing.T) {
	f := newFixture(t)
	f.vault.views = []*vault.View{
		{Secret: vault.Secret{ID: "s1", Name: "router", ClientID: "c1"}, Password: "pw", Decrypted: true, CanEdit: true},
		{Secret: vault.Secret{ID: "s2", Name: "switch"}, Password: "v1:opaque"},
	}

	w := f.do(t, http.MethodGet, "/api/v1/secrets?client_id=c1&group=net", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, vault.Filter{ClientID: "c1", Group: "net"}, f.vault.filter)

	list := decodeBody[struct {
		Secrets []SecretResponse `json:"secrets"`
		Count   int              `json:"count"`
	}](t, w)
	assert.Equal(t, 2, list.Count)
	assert.True(t, list.Secrets[0].Decrypted)
	assert.False(t, list.Secrets[1].Decrypted)
	assert.Equal(t, "v1:opaque", list.Secrets[1].Password)

	w = f.do(t, http.MethodGet, "/api/v1/secrets/nope", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodDelete, "/api/v1/secrets/s1", "alice", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "s1", f.vault.lastID)

	w = f.do(t, http.MethodGet, "/api/v1/secrets/groups", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"groups":[]}`, w.Body.String())
}

func TestHandler_HealthCheckUnhealthy(t *testing.T) {
	f := newFixture(t)
	f.healthy = errors.New("db down")

	w := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func ptr[T any](v T) *T { return &v }

// TestPurpose: Validates that only admins can list subjects.
// Scope: Unit Test
// Security: Authorization (CWE-862)
// Expected: alice gets 403; root gets every profile with its admin flag.
// Test Case ID: HND-11
func TestHandler_ListSubjects(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/subjects", "alice", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/subjects", "root", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[struct {
		Subjects []SubjectResponse `json:"subjects"`
		Count    int               `json:"count"`
	}](t, w)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "alice", resp.Subjects[0].UserID)
	assert.False(t, resp.Subjects[0].IsAdmin)
	assert.Equal(t, "root", resp.Subjects[1].UserID)
	assert.True(t, resp.Subjects[1].IsAdmin)
}

// TestPurpose: Validates profile edits over HTTP.
// Scope: Unit Test
// Security: Authorization (CWE-639)
// Expected: A user edits their own profile, is refused on another's, and an admin may edit anyone.
// Test Case ID: HND-12
func TestHandler_UpdateSubjectProfile(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/api/v1/me/permissions", "alice", nil)

	body := UpdateProfileRequest{DisplayName: "Alice M", Email: "alice.m@example.com"}
	w := f.do(t, http.MethodPut, "/api/v1/subjects/alice/profile", "alice", body)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "Alice M", f.profiles.profiles["alice"].DisplayName)

	w = f.do(t, http.MethodPut, "/api/v1/subjects/root/profile", "alice", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPut, "/api/v1/subjects/alice/profile", "root", UpdateProfileRequest{DisplayName: "Alice"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodPut, "/api/v1/subjects/ghost/profile", "root", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
