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

// Package grant links clients to the buses they may request credentials
// for, and records the provenance of every token issued under a grant.
package grant

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a grant record is absent.
var ErrNotFound = errors.New("grant not found")

// InvalidBusError reports a grant referencing a bus that does not exist.
// The first invalid reference found is surfaced.
type InvalidBusError struct {
	Bus string
}

func (e *InvalidBusError) Error() string {
	return fmt.Sprintf("invalid bus: %s", e.Bus)
}

// Grant authorizes a client to request codes and tokens for a set of
// buses. A client may hold several grant records; its effective bus set
// is their union.
type Grant struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Buses     []string  `json:"buses"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TokenRel records that an access token was issued under a grant. It is
// removed when the grant is revoked or the token is reaped.
type TokenRel struct {
	ID      string `json:"id"`
	AuthID  string `json:"auth_id"`
	TokenID string `json:"token_id"`
}

// Store defines the interface for grant persistence.
type Store interface {
	// PutGrant creates or replaces a grant record.
	PutGrant(ctx context.Context, g *Grant) error

	// GrantsByClient retrieves all grant records for a client. A client
	// with no grants yields an empty slice, not an error.
	GrantsByClient(ctx context.Context, clientID string) ([]*Grant, error)

	// DeleteGrant removes a grant record.
	DeleteGrant(ctx context.Context, id string) error

	// PutTokenRel records token provenance.
	PutTokenRel(ctx context.Context, rel *TokenRel) error

	// TokenRelsByAuth retrieves the provenance records of a grant.
	TokenRelsByAuth(ctx context.Context, authID string) ([]*TokenRel, error)

	// DeleteTokenRel removes a provenance record.
	DeleteTokenRel(ctx context.Context, id string) error
}
