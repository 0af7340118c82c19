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
	"fmt"
	"strings"
)

// Capability is a single action a subject may perform on a resource.
type Capability string

const (
	CapView              Capability = "view"
	CapEdit              Capability = "edit"
	CapCreate            Capability = "create"
	CapDelete            Capability = "delete"
	CapCreateMaintenance Capability = "create_maintenance"
)

var capabilityBits = map[Capability]CapabilitySet{
	CapView:              1 << 0,
	CapEdit:              1 << 1,
	CapCreate:            1 << 2,
	CapDelete:            1 << 3,
	CapCreateMaintenance: 1 << 4,
}

// capabilityOrder is the display order used by List.
var capabilityOrder = []Capability{CapView, CapEdit, CapCreate, CapDelete, CapCreateMaintenance}

// ParseCapability validates s as a capability name.
func ParseCapability(s string) (Capability, error) {
	c := Capability(s)
	if _, ok := capabilityBits[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCapability, s)
	}
	return c, nil
}

// CapabilitySet is a set of capabilities.
type CapabilitySet uint8

// NewCapabilitySet builds a set from caps. Unknown names are ignored.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	var s CapabilitySet
	for _, c := range caps {
		s |= capabilityBits[c]
	}
	return s
}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	bit, ok := capabilityBits[c]
	return ok && s&bit != 0
}

func (s CapabilitySet) CanView() bool              { return s.Has(CapView) }
func (s CapabilitySet) CanEdit() bool              { return s.Has(CapEdit) }
func (s CapabilitySet) CanCreate() bool            { return s.Has(CapCreate) }
func (s CapabilitySet) CanDelete() bool            { return s.Has(CapDelete) }
func (s CapabilitySet) CanCreateMaintenance() bool { return s.Has(CapCreateMaintenance) }

// With returns s plus c.
func (s CapabilitySet) With(c Capability) CapabilitySet { return s | capabilityBits[c] }

// Without returns s minus c.
func (s CapabilitySet) Without(c Capability) CapabilitySet { return s &^ capabilityBits[c] }

// Apply sets c to value and enforces implication: granting anything grants
// view, and revoking view revokes everything.
func (s CapabilitySet) Apply(c Capability, value bool) CapabilitySet {
	if !value {
		if c == CapView {
			return 0
		}
		return s.Without(c)
	}
	return s.With(c).With(CapView)
}

// Normalize drops capabilities unavailable on kind and adds view when any
// other capability is present.
func (s CapabilitySet) Normalize(kind ResourceKind) CapabilitySet {
	s &= kind.Capabilities()
	if s != 0 {
		s = s.With(CapView)
	}
	return s
}

// List returns the capabilities in the set in a stable order.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(capabilityOrder))
	for _, c := range capabilityOrder {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Flags returns a flag per capability available on kind.
func (s CapabilitySet) Flags(kind ResourceKind) map[Capability]bool {
	avail := kind.Capabilities().List()
	out := make(map[Capability]bool, len(avail))
	for _, c := range avail {
		out[c] = s.Has(c)
	}
	return out
}

func (s CapabilitySet) String() string {
	caps := s.List()
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c)
	}
	return "[" + strings.Join(names, ",") + "]"
}
