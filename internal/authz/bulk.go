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
	"errors"
	"fmt"
)

// BulkError reports the resources a bulk grant update could not change.
// Resources not listed were updated.
type BulkError struct {
	Failed []ResourceRef
	errs   []error
}

func (e *BulkError) add(ref ResourceRef, err error) {
	e.Failed = append(e.Failed, ref)
	e.errs = append(e.errs, fmt.Errorf("%s: %w", ref, err))
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("%d grant update(s) failed: %v", len(e.Failed), errors.Join(e.errs...))
}

// Unwrap returns the cause of each failure.
func (e *BulkError) Unwrap() []error {
	return e.errs
}
