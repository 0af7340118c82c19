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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maintly/maintly/internal/audit"
)

func newBootstrap(repo ProfileRepository, env map[string]string) *BootstrapService {
	b := NewBootstrapService(repo, audit.Discard{})
	b.getenv = func(k string) string { return env[k] }
	return b
}

// TestPurpose: Validates first-admin bootstrap from the environment.
// Scope: Unit Test
// Security: Secure initialization
// Expected: The configured profile is promoted once; later runs and unset config do nothing.
// Test Case ID: BOOT-01
func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	repo := NewMockProfileRepository()
	s := NewService(repo, audit.Discard{})
	_, err := s.EnsureProfile(ctx, "user-1", "ana@example.com", "")
	require.NoError(t, err)
	_, err = s.EnsureProfile(ctx, "user-2", "bia@example.com", "")
	require.NoError(t, err)

	require.NoError(t, newBootstrap(repo, nil).Bootstrap(ctx))
	n, _ := repo.CountAdmins(ctx)
	assert.Equal(t, 0, n)

	env := map[string]string{EnvBootstrapAdminEmail: "ana@example.com"}
	require.NoError(t, newBootstrap(repo, env).Bootstrap(ctx))
	p, err := repo.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, p.IsAdmin)

	env[EnvBootstrapAdminEmail] = "bia@example.com"
	require.NoError(t, newBootstrap(repo, env).Bootstrap(ctx))
	p, err = repo.GetByUserID(ctx, "user-2")
	require.NoError(t, err)
	assert.False(t, p.IsAdmin)
}

// TestPurpose: Validates bootstrap when the configured user has not signed in.
// Scope: Unit Test
// Expected: ErrBootstrapUserNotFound.
// Test Case ID: BOOT-02
func TestBootstrap_UnknownUser(t *testing.T) {
	repo := NewMockProfileRepository()
	env := map[string]string{EnvBootstrapAdminEmail: "ghost@example.com"}

	err := newBootstrap(repo, env).Bootstrap(context.Background())
	assert.ErrorIs(t, err, ErrBootstrapUserNotFound)
}
