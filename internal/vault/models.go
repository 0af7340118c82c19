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
	"time"

	"github.com/maintly/maintly/internal/authz"
)

// Domain errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrInvalidSecret  = errors.New("invalid secret")
	ErrRateLimited    = errors.New("too many attempts, try again later")
)

// noneID is the placeholder some clients send for "no client" or "no company".
const noneID = "none"

// Secret is a stored vault entry. Ciphertext is the password as persisted.
type Secret struct {
	ID         string
	Name       string
	Login      string
	Ciphertext string
	URL        string
	Note       string
	Group      string
	ClientID   string
	CompanyID  string
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// View is a secret as returned to one subject.
type View struct {
	Secret
	// Password is the plaintext, or the stored ciphertext when it could not
	// be opened with the reader's key.
	Password  string
	Decrypted bool
	CanEdit   bool
	CanDelete bool
}

// Input carries user-supplied secret fields.
// On update an empty Password keeps the stored one.
type Input struct {
	Name      string
	Password  string
	Login     string
	URL       string
	Note      string
	Group     string
	ClientID  string
	CompanyID string
}

// Filter narrows a listing. Empty fields match everything.
type Filter struct {
	ClientID  string
	CompanyID string
	Group     string // case-insensitive substring
}

// Repository defines the interface for secret persistence
type Repository interface {
	Create(ctx context.Context, secret *Secret) error
	GetByID(ctx context.Context, id string) (*Secret, error)
	Update(ctx context.Context, secret *Secret) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter Filter) ([]*Secret, error)
	UpdateCiphertext(ctx context.Context, id, ciphertext string) error
}

// GroupRepository defines the interface for vault group labels
type GroupRepository interface {
	// EnsureGroup registers name. An existing name is not an error.
	EnsureGroup(ctx context.Context, name, createdBy string) error
	ListGroups(ctx context.Context) ([]string, error)
}

// Authorizer answers capability questions for the vault.
type Authorizer interface {
	Can(ctx context.Context, subject authz.Subject, action authz.Capability, ref authz.ResourceRef) (bool, error)
	Snapshot(ctx context.Context, subject authz.Subject) (*authz.Snapshot, error)
}
