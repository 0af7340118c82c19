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

import "github.com/maintly/maintly/internal/authz"

// access is what a subject may do with one secret.
type access struct {
	view   bool
	edit   bool
	delete bool
}

// resolveAccess finds the grant governing secret for a non-admin snapshot.
// The most specific existing row wins: the secret itself, then its group,
// then its client, then the vault-wide system grant.
func resolveAccess(snap *authz.Snapshot, s *Secret) access {
	if snap.IsAdmin() {
		return access{view: true, edit: true, delete: true}
	}

	if caps, ok := snap.Lookup(authz.Secret(s.ID)); ok {
		return access{view: caps.CanView(), edit: caps.CanEdit(), delete: caps.CanEdit()}
	}
	if s.Group != "" {
		if caps, ok := snap.Lookup(authz.VaultGroup(s.Group)); ok {
			return access{view: caps.CanView(), edit: caps.CanEdit(), delete: caps.CanEdit()}
		}
	}
	if s.ClientID != "" {
		if caps, ok := snap.Lookup(authz.Client(s.ClientID)); ok {
			return access{view: caps.CanView(), edit: caps.CanEdit(), delete: caps.CanDelete()}
		}
	}
	if caps, ok := snap.Lookup(authz.System(authz.SystemVault)); ok {
		return access{view: caps.CanView(), edit: caps.CanEdit(), delete: caps.CanDelete()}
	}
	return access{}
}

// createRef is the resource whose create capability allows adding a secret.
func createRef(clientID string) authz.ResourceRef {
	if clientID != "" {
		return authz.Client(clientID)
	}
	return authz.System(authz.SystemVault)
}
