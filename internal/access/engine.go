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

package access

import (
	"context"
	"strings"
	"time"
)

// Engine persists and retrieves access records with lazy expiration.
type Engine struct {
	store Store
}

// NewEngine creates a new access engine over the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Create persists a freshly constructed record.
func (e *Engine) Create(ctx context.Context, a *Access) error {
	return e.store.Put(ctx, a)
}

// Get retrieves a live record. An expired record is indistinguishable
// from an absent one.
func (e *Engine) Get(ctx context.Context, id string, now time.Time) (*Access, error) {
	a, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Expired(now) {
		// Best effort reap; the store's own TTL handles the rest.
		_ = e.store.Delete(ctx, id)
		return nil, ErrNotFound
	}
	return a, nil
}

// ConsumeCode atomically retrieves and burns a single-use code. A record
// that is absent, expired, or not a code yields ErrNotFound; a lost race
// between two concurrent consumers surfaces the same way.
func (e *Engine) ConsumeCode(ctx context.Context, id string, now time.Time) (*Access, error) {
	a, err := e.store.Consume(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Kind != KindCode || a.Expired(now) {
		return nil, ErrNotFound
	}
	return a, nil
}

// SetScope trims and replaces the scope wholesale, then persists.
// Precondition: the caller has validated well-formedness via the scope
// package; the engine does not re-validate.
func (e *Engine) SetScope(ctx context.Context, a *Access, scopeString string) error {
	a.Scope = strings.TrimSpace(scopeString)
	return e.store.Put(ctx, a)
}

// Revoke removes a record.
func (e *Engine) Revoke(ctx context.Context, id string) error {
	return e.store.Delete(ctx, id)
}
