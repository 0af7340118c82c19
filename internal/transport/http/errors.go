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
	"context"
	"errors"
	"net/http"

	"github.com/maintly/maintly/internal/authz"
	"github.com/maintly/maintly/internal/identity"
	"github.com/maintly/maintly/internal/store"
	"github.com/maintly/maintly/internal/vault"
)

// Client-facing messages. Driver and internal details never leave the server.
const (
	msgDuplicate     = "this item already exists"
	msgReference     = "the data references an item that does not exist"
	msgMissingField  = "required fields are missing"
	msgForbidden     = "you do not have permission for this operation"
	msgUnavailable   = "connection error, please try again"
	msgGeneric       = "something went wrong, please try again"
	msgNotFound      = "not found"
	msgRateLimited   = "too many attempts, try again later"
	msgInvalidInput  = "invalid request"
	msgLastAdmin     = "cannot remove the last administrator"
	msgPartialFailed = "some updates failed"
)

// publicError maps a service error to a status and a generic message.
func publicError(err error) (int, string) {
	switch {
	case errors.Is(err, authz.ErrAccessDenied):
		return http.StatusForbidden, msgForbidden
	case errors.Is(err, vault.ErrRateLimited):
		return http.StatusTooManyRequests, msgRateLimited
	case errors.Is(err, vault.ErrSecretNotFound),
		errors.Is(err, identity.ErrProfileNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.Is(err, identity.ErrLastAdmin):
		return http.StatusConflict, msgLastAdmin
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, authz.ErrGrantAlreadyExists),
		errors.Is(err, identity.ErrProfileExists):
		return http.StatusConflict, msgDuplicate
	case errors.Is(err, store.ErrReference):
		return http.StatusUnprocessableEntity, msgReference
	case errors.Is(err, store.ErrMissingField),
		errors.Is(err, vault.ErrInvalidSecret):
		return http.StatusBadRequest, msgMissingField
	case errors.Is(err, authz.ErrInvalidCapability),
		errors.Is(err, authz.ErrInvalidResource),
		errors.Is(err, authz.ErrInvalidSubject),
		errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, identity.ErrInvalidUserID):
		return http.StatusBadRequest, msgInvalidInput
	case errors.Is(err, store.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, msgUnavailable
	default:
		return http.StatusInternalServerError, msgGeneric
	}
}
