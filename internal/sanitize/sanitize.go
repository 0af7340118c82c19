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

// Package sanitize strips markup from user-supplied text before it is stored.
package sanitize

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.StrictPolicy()

// Text removes every tag and attribute from s and returns plain text with
// entities decoded. Applying Text to its own output returns it unchanged.
//
// A pass that changes the text removes markup or decodes one level of
// entities, so the loop reaches a fixed point for any input.
func Text(s string) string {
	if s == "" {
		return s
	}

	out := s
	for {
		next := html.UnescapeString(policy.Sanitize(out))
		if next == out {
			return out
		}
		out = next
	}
}

// Record returns a copy of fields with Text applied to every string value.
// Non-string values are copied as is.
func Record(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}

	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			out[k] = Text(val)
		case *string:
			if val == nil {
				out[k] = val
				continue
			}
			s := Text(*val)
			out[k] = &s
		default:
			out[k] = v
		}
	}
	return out
}
