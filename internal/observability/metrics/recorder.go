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

package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder holds the domain instruments. A nil *Recorder records nothing.
type Recorder struct {
	authzChecks   metric.Int64Counter
	grantChanges  metric.Int64Counter
	vaultDecrypts metric.Int64Counter
	vaultLatency  metric.Float64Histogram
}

// NewRecorder creates the domain instruments on m.
func NewRecorder(m *Meter) (*Recorder, error) {
	checks, err := m.CreateCounter("authz.checks", "Capability checks by resource kind, action and decision")
	if err != nil {
		return nil, err
	}
	changes, err := m.CreateCounter("authz.grant_changes", "Grant mutations by resource kind and outcome")
	if err != nil {
		return nil, err
	}
	decrypts, err := m.CreateCounter("vault.decrypt", "Vault secret decryptions by outcome")
	if err != nil {
		return nil, err
	}
	latency, err := m.CreateHistogram("vault.list.duration", "Time to list and decrypt visible secrets", "ms")
	if err != nil {
		return nil, err
	}

	return &Recorder{
		authzChecks:   checks,
		grantChanges:  changes,
		vaultDecrypts: decrypts,
		vaultLatency:  latency,
	}, nil
}

// AuthzCheck counts one capability decision.
func (r *Recorder) AuthzCheck(ctx context.Context, kind, action string, allowed bool) {
	if r == nil {
		return
	}
	r.authzChecks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("resource_kind", kind),
		attribute.String("action", action),
		attribute.Bool("allowed", allowed),
	))
}

// GrantChange counts one grant mutation attempt.
func (r *Recorder) GrantChange(ctx context.Context, kind string, err error) {
	if r == nil {
		return
	}
	r.grantChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("resource_kind", kind),
		attribute.Bool("success", err == nil),
	))
}

// VaultDecrypt counts one decryption by outcome.
func (r *Recorder) VaultDecrypt(ctx context.Context, outcome string) {
	if r == nil {
		return
	}
	r.vaultDecrypts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// VaultList records the duration of a list call.
func (r *Recorder) VaultList(ctx context.Context, d time.Duration) {
	if r == nil {
		return
	}
	r.vaultLatency.Record(ctx, float64(d.Microseconds())/1000)
}
