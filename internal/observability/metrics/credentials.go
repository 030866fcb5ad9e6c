// Copyright 2026 The Busgate Authors
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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Credentials holds the instruments for the token endpoint and the
// provisioning surface.
type Credentials struct {
	TokensIssued   metric.Int64Counter
	IssueFailures  metric.Int64Counter
	GrantsUpdated  metric.Int64Counter
	IssueDuration  metric.Float64Histogram
	ProvisionItems metric.Int64Counter
}

// NewCredentials registers the credential instruments on the meter.
func NewCredentials(m *Meter) (*Credentials, error) {
	issued, err := m.CreateCounter("busgate.tokens.issued", "Access tokens and codes issued")
	if err != nil {
		return nil, err
	}
	failures, err := m.CreateCounter("busgate.tokens.failures", "Token requests rejected with a protocol error")
	if err != nil {
		return nil, err
	}
	grants, err := m.CreateCounter("busgate.grants.updated", "Grant add and revoke operations applied")
	if err != nil {
		return nil, err
	}
	duration, err := m.CreateHistogram("busgate.tokens.duration", "Token request duration", "ms")
	if err != nil {
		return nil, err
	}
	items, err := m.CreateCounter("busgate.provision.items", "Provisioning batch items processed")
	if err != nil {
		return nil, err
	}

	return &Credentials{
		TokensIssued:   issued,
		IssueFailures:  failures,
		GrantsUpdated:  grants,
		IssueDuration:  duration,
		ProvisionItems: items,
	}, nil
}

// RecordIssue counts one token request outcome with its grant type.
func (c *Credentials) RecordIssue(ctx context.Context, grantType string, durationMS float64, err error) {
	attrs := metric.WithAttributes(attribute.String("grant_type", grantType))
	if err != nil {
		c.IssueFailures.Add(ctx, 1, attrs)
	} else {
		c.TokensIssued.Add(ctx, 1, attrs)
	}
	c.IssueDuration.Record(ctx, durationMS, attrs)
}
