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

import "sort"

// Snapshot is a point-in-time view of one subject's grants.
// It does not observe later changes.
type Snapshot struct {
	subject Subject
	grants  map[ResourceRef]CapabilitySet
}

// Subject returns the subject the snapshot was taken for.
func (sn *Snapshot) Subject() Subject { return sn.subject }

// IsAdmin reports whether the subject is an administrator.
func (sn *Snapshot) IsAdmin() bool { return sn.subject.IsAdmin }

// Can answers the same question as Service.Can from the loaded grants.
func (sn *Snapshot) Can(action Capability, ref ResourceRef) bool {
	if sn.subject.IsAdmin {
		return true
	}
	if !ref.Kind.Supports(action) {
		return false
	}
	return sn.grants[ref].Has(action)
}

// Lookup returns the capabilities on ref and whether a row exists.
func (sn *Snapshot) Lookup(ref ResourceRef) (CapabilitySet, bool) {
	caps, ok := sn.grants[ref]
	return caps, ok
}

// HasAnyClientView reports whether at least one client grant row has view.
// It reads the rows only; the admin flag does not affect it.
func (sn *Snapshot) HasAnyClientView() bool {
	for ref, caps := range sn.grants {
		if ref.Kind == KindClient && caps.CanView() {
			return true
		}
	}
	return false
}

// IDs returns the ids of kind on which a grant row holds action, sorted.
// It is never nil.
func (sn *Snapshot) IDs(kind ResourceKind, action Capability) []string {
	out := []string{}
	for ref, caps := range sn.grants {
		if ref.Kind == kind && caps.Has(action) {
			out = append(out, ref.ID)
		}
	}
	sort.Strings(out)
	return out
}

// Grants returns a copy of the loaded grants.
func (sn *Snapshot) Grants() map[ResourceRef]CapabilitySet {
	out := make(map[ResourceRef]CapabilitySet, len(sn.grants))
	for k, v := range sn.grants {
		out[k] = v
	}
	return out
}
