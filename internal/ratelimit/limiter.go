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

// Package ratelimit implements a fixed-window attempt counter keyed by an
// arbitrary identifier, used to throttle entity creation per subject.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Defaults for entity creation throttling.
const (
	DefaultMaxAttempts = 10
	DefaultWindow      = 60 * time.Second

	// sweepInterval bounds how often IsLimited scans for expired windows.
	sweepInterval = time.Minute
)

type window struct {
	count     int
	lastReset time.Time
	period    time.Duration
}

// Limiter counts attempts per identifier in fixed windows.
// It is safe for concurrent use. State lives in process memory only.
type Limiter struct {
	mu      sync.Mutex
	entries   map[string]*window
	now       func() time.Time
	lastSweep time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates an empty limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		entries: make(map[string]*window),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsLimited records an attempt for identifier and reports whether it is
// over the limit. The first attempt after the window has fully elapsed
// starts a new window. A limited attempt is not counted.
func (l *Limiter) IsLimited(identifier string, maxAttempts int, period time.Duration) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	w, ok := l.entries[identifier]
	if !ok || now.Sub(w.lastReset) > period {
		l.entries[identifier] = newWindow(now, period)
		return false
	}

	if w.count >= maxAttempts {
		return true
	}

	w.count++
	return false
}

// sweep drops windows that have fully elapsed. Callers hold l.mu.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	l.lastSweep = now
	for id, w := range l.entries {
		if now.Sub(w.lastReset) > w.period {
			delete(l.entries, id)
		}
	}
}

// Reset forgets every attempt recorded for identifier.
func (l *Limiter) Reset(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, identifier)
}

// Key builds the identifier for an entity kind and subject, e.g. "secret_<id>".
func Key(entity, subjectID string) string {
	return fmt.Sprintf("%s_%s", entity, subjectID)
}

func newWindow(now time.Time, period time.Duration) *window {
	return &window{count: 1, lastReset: now, period: period}
}
