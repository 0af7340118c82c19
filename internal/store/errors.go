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

// Package store holds persistence errors shared by every storage backend.
package store

import "errors"

// Storage-level failures. Backends wrap their driver errors in one of these
// so callers can classify failures without importing a driver.
var (
	ErrConflict     = errors.New("duplicate item")
	ErrReference    = errors.New("reference error")
	ErrMissingField = errors.New("missing required field")
	ErrUnavailable  = errors.New("storage unavailable")
)
