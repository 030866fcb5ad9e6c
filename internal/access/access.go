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

// Package access owns the Access credential lifecycle: tokens and codes,
// their expiration rules, channel binding, and bus authorization checks.
package access

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/busgate/busgate/internal/scope"
)

// ChannelLength is the fixed length of a generated channel identifier.
const ChannelLength = 32

// IDLength is the length of generated token and code identifiers.
const IDLength = 32

// Kind discriminates the three credential variants.
type Kind string

const (
	KindRegularToken    Kind = "REGULAR_TOKEN"
	KindPrivilegedToken Kind = "PRIVILEGED_TOKEN"
	KindCode            Kind = "CODE"
)

// Domain errors
var (
	ErrExpiryRequired = errors.New("expiry is required for this credential kind")
	ErrInvalidKind    = errors.New("invalid credential kind")
	ErrNotFound       = errors.New("access record not found")
)

// Access is a single credential record: a bearer token or a single-use
// code. If Channel is set, Scope always carries a matching channel entry.
type Access struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"kind"`
	Buses     []string   `json:"buses,omitempty"`
	Scope     string     `json:"scope,omitempty"`
	Channel   string     `json:"channel,omitempty"`
	GrantID   string     `json:"grant_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewToken builds a REGULAR_TOKEN. Expiry is mandatory. The authorized
// buses come from the code the token was minted from and are immutable
// afterwards. With bindChannel a fresh channel id is generated and added
// to the scope.
func NewToken(id string, buses []string, scopeString string, expires *time.Time, bindChannel bool) (*Access, error) {
	if expires == nil {
		return nil, ErrExpiryRequired
	}
	return build(id, KindRegularToken, buses, scopeString, expires, bindChannel), nil
}

// NewPrivilegedToken builds a PRIVILEGED_TOKEN. Expiry is optional; a
// privileged token without one never expires.
func NewPrivilegedToken(id string, scopeString string, expires *time.Time, bindChannel bool) (*Access, error) {
	return build(id, KindPrivilegedToken, nil, scopeString, expires, bindChannel), nil
}

// NewCode builds a single-use CODE scoped to the given buses, issued under
// the named grant. Expiry is mandatory.
func NewCode(id string, buses []string, grantID string, expires *time.Time) (*Access, error) {
	if expires == nil {
		return nil, ErrExpiryRequired
	}
	code := build(id, KindCode, buses, "", expires, false)
	code.GrantID = grantID
	return code, nil
}

// New dispatches to the kind-specific constructor.
func New(id string, kind Kind, buses []string, scopeString string, expires *time.Time, bindChannel bool) (*Access, error) {
	switch kind {
	case KindRegularToken:
		return NewToken(id, buses, scopeString, expires, bindChannel)
	case KindPrivilegedToken:
		return NewPrivilegedToken(id, scopeString, expires, bindChannel)
	case KindCode:
		if expires == nil {
			return nil, ErrExpiryRequired
		}
		return build(id, KindCode, buses, scopeString, expires, false), nil
	default:
		return nil, ErrInvalidKind
	}
}

func build(id string, kind Kind, buses []string, scopeString string, expires *time.Time, bindChannel bool) *Access {
	a := &Access{
		ID:        id,
		Kind:      kind,
		Buses:     buses,
		Scope:     scopeString,
		ExpiresAt: expires,
		CreatedAt: time.Now(),
	}

	if bindChannel {
		a.Channel = randomString(ChannelLength)
		entry := scope.KeyChannel + ":" + a.Channel
		if a.Scope == "" {
			a.Scope = entry
		} else {
			a.Scope += " " + entry
		}
	}

	return a
}

// Expired reports whether the record is past its expiry at the given
// instant. now == expiry is still valid; records without expiry never
// expire.
func (a *Access) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}

// AllowedBus reports whether the credential authorizes the given bus.
func (a *Access) AllowedBus(bus string) bool {
	for _, b := range a.Buses {
		if b == bus {
			return true
		}
	}
	return false
}

// AllowedBuses reports whether every given bus is authorized.
func (a *Access) AllowedBuses(buses []string) bool {
	for _, b := range buses {
		if !a.AllowedBus(b) {
			return false
		}
	}
	return true
}

// EncodedBuses renders the authorized buses as "bus:x bus:y" for
// embedding in downstream messages.
func (a *Access) EncodedBuses() string {
	return scope.FormatBuses(a.Buses)
}

// Store defines the interface for access record persistence. An
// implementation may expire records on its own (TTL); lazy expiration at
// read time still applies on top.
type Store interface {
	// Put creates or replaces an access record.
	Put(ctx context.Context, a *Access) error

	// Get retrieves a record by id; ErrNotFound when absent.
	Get(ctx context.Context, id string) (*Access, error)

	// Delete removes a record. Deleting an absent record is a no-op.
	Delete(ctx context.Context, id string) error

	// Consume atomically retrieves and removes a record. Two concurrent
	// calls for the same id yield exactly one record and one ErrNotFound.
	Consume(ctx context.Context, id string) (*Access, error)
}

// NewID returns a fresh opaque credential identifier.
func NewID() string {
	return randomString(IDLength)
}

const urlSafeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// randomString returns a fixed-length identifier drawn from a URL-safe
// alphabet.
func randomString(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	for i := range b {
		b[i] = urlSafeAlphabet[int(b[i])%len(urlSafeAlphabet)]
	}
	return string(b)
}
