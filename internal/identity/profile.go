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
	"errors"
	"time"

	"github.com/maintly/maintly/internal/authz"
)

// Domain errors
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidUserID   = errors.New("invalid user id")
	ErrLastAdmin       = errors.New("cannot remove the last administrator")
)

// Authentication belongs to the hosted auth provider. A Profile is the
// local record of a provider identity: display data and the admin flag.

// Profile represents a user as known to this service
type Profile struct {
	ID          string
	UserID      string // subject id issued by the auth provider
	DisplayName string
	Email       string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Subject returns the permission-engine view of the profile.
func (p *Profile) Subject() authz.Subject {
	return authz.Subject{
		ID:          p.UserID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		IsAdmin:     p.IsAdmin,
	}
}

// ProfileRepository defines the interface for profile persistence
type ProfileRepository interface {
	// Create stores a new profile. One profile exists per user id;
	// a duplicate returns ErrProfileExists.
	Create(ctx context.Context, profile *Profile) error

	// GetByUserID retrieves the profile of a provider user id
	GetByUserID(ctx context.Context, userID string) (*Profile, error)

	// GetByEmail retrieves a profile by email
	GetByEmail(ctx context.Context, email string) (*Profile, error)

	// List retrieves all profiles ordered by display name
	List(ctx context.Context) ([]*Profile, error)

	// UpdateAdmin sets the admin flag
	UpdateAdmin(ctx context.Context, userID string, isAdmin bool) error

	// UpdateDisplay sets the display name and email
	UpdateDisplay(ctx context.Context, userID, displayName, email string) error

	// DemoteAdmin clears the admin flag, atomically refusing with
	// ErrLastAdmin when userID is the only admin
	DemoteAdmin(ctx context.Context, userID string) error

	// CountAdmins returns the number of admin profiles
	CountAdmins(ctx context.Context) (int, error)
}
