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

package http_test

import (
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/maintly/maintly/internal/observability/metrics"
	transportHTTP "github.com/maintly/maintly/internal/transport/http"
)

// TestRouterRoutes verifies that every public endpoint is mounted and that
// nothing else is.
func TestRouterRoutes(t *testing.T) {
	// Route matching never executes handlers, so empty dependencies are fine.
	h := &transportHTTP.Handler{}
	rl := transportHTTP.NewRateLimiter(100, 100)
	defer rl.Stop()

	r := transportHTTP.NewRouter(h, rl, metrics.NewHTTP(), transportHTTP.RouterConfig{})

	tests := []struct {
		method      string
		path        string
		expectFound bool
	}{
		{"GET", "/health", true},
		{"GET", "/metrics", true},
		{"GET", "/api/v1/me/permissions", true},
		{"GET", "/api/v1/permissions/check", true},
		{"GET", "/api/v1/subjects", true},
		{"PUT", "/api/v1/subjects/u1/profile", true},
		{"PUT", "/api/v1/subjects/u1/grants", true},
		{"POST", "/api/v1/subjects/u1/grants/toggle-all", true},
		{"PUT", "/api/v1/subjects/u1/admin", true},
		{"GET", "/api/v1/secrets", true},
		{"POST", "/api/v1/secrets", true},
		{"GET", "/api/v1/secrets/groups", true},
		{"GET", "/api/v1/secrets/s1", true},
		{"PUT", "/api/v1/secrets/s1", true},
		{"DELETE", "/api/v1/secrets/s1", true},

		{"DELETE", "/api/v1/subjects/u1/grants", false},
		{"POST", "/api/v1/secrets/s1", false},
		{"GET", "/api/v1/auth/login", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)

			rctx := chi.NewRouteContext()
			if r.Match(rctx, req.Method, req.URL.Path) {
				if !tt.expectFound {
					t.Errorf("route %s %s should not exist", tt.method, tt.path)
				}
			} else if tt.expectFound {
				t.Errorf("route %s %s should exist", tt.method, tt.path)
			}
		})
	}
}
