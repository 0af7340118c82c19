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

package authz

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Domain errors
var (
	ErrGrantNotFound      = errors.New("grant not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidCapability  = errors.New("invalid capability")
	ErrInvalidResource    = errors.New("invalid resource")
	ErrInvalidSubject     = errors.New("invalid subject")
	ErrGrantAlreadyExists = errors.New("grant already exists")
)

// ResourceKind identifies the family of resources a grant applies to.
type ResourceKind string

const (
	// KindClient grants are keyed by client id.
	KindClient ResourceKind = "client"
	// KindSystem grants are keyed by a system resource-type name such as "equipes".
	KindSystem ResourceKind = "system"
	// KindCompany grants are keyed by third-party company id.
	KindCompany ResourceKind = "company"
	// KindSecret grants are keyed by vault secret id.
	KindSecret ResourceKind = "secret"
	// KindVaultGroup grants are keyed by vault group label.
	KindVaultGroup ResourceKind = "vault_group"
)

// Kinds lists every resource kind.
var Kinds = []ResourceKind{KindClient, KindSystem, KindCompany, KindSecret, KindVaultGroup}

// ParseResourceKind validates s as a resource kind.
func ParseResourceKind(s string) (ResourceKind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidResource, s)
}

// Capabilities returns the capabilities available on resources of kind k.
func (k ResourceKind) Capabilities() CapabilitySet {
	switch k {
	case KindClient, KindSystem:
		return NewCapabilitySet(CapView, CapEdit, CapCreate, CapDelete)
	case KindCompany:
		return NewCapabilitySet(CapView, CapEdit, CapDelete, CapCreateMaintenance)
	case KindSecret, KindVaultGroup:
		return NewCapabilitySet(CapView, CapEdit)
	default:
		return 0
	}
}

// Supports reports whether c is available on kind k.
func (k ResourceKind) Supports(c Capability) bool {
	return k.Capabilities().Has(c)
}

// ResourceRef names a single resource.
type ResourceRef struct {
	Kind ResourceKind `json:"kind"`
	ID   string       `json:"id"`
}

// Client returns a reference to the client with the given id.
func Client(id string) ResourceRef { return ResourceRef{Kind: KindClient, ID: id} }

// System returns a reference to a system resource type.
func System(name string) ResourceRef { return ResourceRef{Kind: KindSystem, ID: name} }

// Company returns a reference to a third-party company.
func Company(id string) ResourceRef { return ResourceRef{Kind: KindCompany, ID: id} }

// Secret returns a reference to a vault secret.
func Secret(id string) ResourceRef { return ResourceRef{Kind: KindSecret, ID: id} }

// VaultGroup returns a reference to a vault group label.
func VaultGroup(name string) ResourceRef { return ResourceRef{Kind: KindVaultGroup, ID: name} }

func (r ResourceRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// Validate checks that the kind is known and the id is usable.
// System references must name a known system resource type.
func (r ResourceRef) Validate() error {
	if _, err := ParseResourceKind(string(r.Kind)); err != nil {
		return err
	}
	if r.ID == "" {
		return fmt.Errorf("%w: empty id for %s", ErrInvalidResource, r.Kind)
	}
	if r.Kind == KindSystem && !IsSystemResource(r.ID) {
		return fmt.Errorf("%w: unknown system resource %q", ErrInvalidResource, r.ID)
	}
	return nil
}

// Grant is the capability row for one subject on one resource.
// At most one grant exists per (subject, kind, resource id).
type Grant struct {
	ID           string
	SubjectID    string
	Resource     ResourceRef
	Capabilities CapabilitySet
	GrantedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Subject is the acting user as seen by the permission engine.
type Subject struct {
	ID          string
	DisplayName string
	Email       string
	IsAdmin     bool
}

// GrantRepository defines the interface for grant persistence
type GrantRepository interface {
	// Get returns the grant for subject on ref, or ErrGrantNotFound.
	Get(ctx context.Context, subjectID string, ref ResourceRef) (*Grant, error)

	// ListForSubject returns every grant held by subject.
	ListForSubject(ctx context.Context, subjectID string) ([]*Grant, error)

	// Upsert inserts the grant or updates the existing row for the same
	// (subject, kind, resource id) in place.
	Upsert(ctx context.Context, grant *Grant) error
}
