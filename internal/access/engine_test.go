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
	"sync"
	"testing"
	"time"
)

// In-memory store mock
type memStore struct {
	mu      sync.Mutex
	records map[string]*Access
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*Access)}
}

func (m *memStore) Put(ctx context.Context, a *Access) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[a.ID] = a
	return nil
}

func (m *memStore) Get(ctx context.Context, id string) (*Access, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *memStore) Consume(ctx context.Context, id string) (*Access, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.records, id)
	return a, nil
}

func future() *time.Time {
	t := time.Now().Add(time.Hour)
	return &t
}

// TestPurpose: Validates the per-kind expiry preconditions.
// Scope: Unit Test
// Expected: REGULAR_TOKEN and CODE require an expiry; PRIVILEGED_TOKEN
// does not.
func TestAccess_ExpiryRequired(t *testing.T) {
	if _, err := NewToken("t1", nil, "", nil, false); err != ErrExpiryRequired {
		t.Errorf("token without expiry: expected ErrExpiryRequired, got %v", err)
	}
	if _, err := NewCode("c1", []string{"mybus.com"}, "", nil); err != ErrExpiryRequired {
		t.Errorf("code without expiry: expected ErrExpiryRequired, got %v", err)
	}
	if _, err := New("c2", KindCode, nil, "", nil, false); err != ErrExpiryRequired {
		t.Errorf("New code without expiry: expected ErrExpiryRequired, got %v", err)
	}
	if _, err := NewPrivilegedToken("p1", "", nil, false); err != nil {
		t.Errorf("privileged token without expiry must construct: %v", err)
	}
	if _, err := New("x1", Kind("bogus"), nil, "", future(), false); err != ErrInvalidKind {
		t.Errorf("unknown kind: expected ErrInvalidKind, got %v", err)
	}
}

// TestPurpose: Validates expiration boundary behavior.
// Scope: Unit Test
// Expected: Not expired at creation, not expired at the exact expiry
// instant, expired strictly after; a privileged token without expiry is
// never expired.
func TestAccess_Expired(t *testing.T) {
	expires := time.Now().Add(time.Minute)
	tok, err := NewToken("t1", nil, "", &expires, false)
	if err != nil {
		t.Fatalf("token construction failed: %v", err)
	}

	if tok.Expired(time.Now()) {
		t.Error("fresh token must not be expired")
	}
	if tok.Expired(expires) {
		t.Error("now == expires must not count as expired")
	}
	if !tok.Expired(expires.Add(time.Nanosecond)) {
		t.Error("token must be expired strictly after the expiry instant")
	}

	priv, _ := NewPrivilegedToken("p1", "", nil, false)
	if priv.Expired(time.Now().Add(100 * 365 * 24 * time.Hour)) {
		t.Error("privileged token without expiry must never expire")
	}
}

// TestPurpose: Validates channel binding generates a channel and mirrors
// it into the scope.
// Scope: Unit Test
// Expected: Channel id has the fixed length and the scope carries a
// matching channel entry, appended to any existing scope.
func TestAccess_ChannelBinding(t *testing.T) {
	tok, err := NewToken("t1", nil, "", future(), true)
	if err != nil {
		t.Fatalf("token construction failed: %v", err)
	}
	if len(tok.Channel) != ChannelLength {
		t.Errorf("expected channel of length %d, got %d", ChannelLength, len(tok.Channel))
	}
	if tok.Scope != "channel:"+tok.Channel {
		t.Errorf("scope must carry the channel entry, got %q", tok.Scope)
	}

	tok2, _ := NewToken("t2", nil, "bus:mybus.com", future(), true)
	if tok2.Scope != "bus:mybus.com channel:"+tok2.Channel {
		t.Errorf("channel entry must append to existing scope, got %q", tok2.Scope)
	}
}

// TestPurpose: Validates bus authorization membership checks and encoding.
// Scope: Unit Test
// Expected: AllowedBus/AllowedBuses test membership/subset against the
// authorized buses; EncodedBuses renders "bus:x bus:y".
func TestAccess_AllowedBuses(t *testing.T) {
	tok, _ := NewToken("t1", []string{"thisbus.com", "andthatbus.com"}, "", future(), false)

	if !tok.AllowedBus("thisbus.com") {
		t.Error("authorized bus must be allowed")
	}
	if tok.AllowedBus("otherbus.com") {
		t.Error("unauthorized bus must not be allowed")
	}
	if !tok.AllowedBuses([]string{"andthatbus.com", "thisbus.com"}) {
		t.Error("subset of authorized buses must be allowed")
	}
	if tok.AllowedBuses([]string{"thisbus.com", "otherbus.com"}) {
		t.Error("superset must not be allowed")
	}
	if got := tok.EncodedBuses(); got != "bus:thisbus.com bus:andthatbus.com" {
		t.Errorf("unexpected encoding: %q", got)
	}
}

// TestPurpose: Validates lazy expiration at read time.
// Scope: Unit Test
// Expected: An expired record reads as absent.
func TestEngine_GetExpired(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store)
	ctx := context.Background()

	expires := time.Now().Add(-time.Minute)
	tok := &Access{ID: "t1", Kind: KindRegularToken, ExpiresAt: &expires}
	if err := e.Create(ctx, tok); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := e.Get(ctx, "t1", time.Now()); err != ErrNotFound {
		t.Errorf("expired record must read as absent, got %v", err)
	}
}

// TestPurpose: Validates single-use code consumption.
// Scope: Unit Test
// Security: Code replay prevention.
// Expected: The first consume returns the code, the second ErrNotFound;
// an expired code or a non-code record is never returned.
func TestEngine_ConsumeCode(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store)
	ctx := context.Background()

	code, _ := NewCode("c1", []string{"mybus.com"}, "", future())
	if err := e.Create(ctx, code); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := e.ConsumeCode(ctx, "c1", time.Now())
	if err != nil {
		t.Fatalf("first consume failed: %v", err)
	}
	if got.ID != "c1" {
		t.Errorf("unexpected record: %+v", got)
	}

	if _, err := e.ConsumeCode(ctx, "c1", time.Now()); err != ErrNotFound {
		t.Errorf("second consume must fail with ErrNotFound, got %v", err)
	}

	// Expired code is indistinguishable from an absent one.
	past := time.Now().Add(-time.Minute)
	stale := &Access{ID: "c2", Kind: KindCode, ExpiresAt: &past}
	e.Create(ctx, stale)
	if _, err := e.ConsumeCode(ctx, "c2", time.Now()); err != ErrNotFound {
		t.Errorf("expired code must consume as absent, got %v", err)
	}

	// A token id is not a code.
	tok, _ := NewToken("t1", nil, "", future(), false)
	e.Create(ctx, tok)
	if _, err := e.ConsumeCode(ctx, "t1", time.Now()); err != ErrNotFound {
		t.Errorf("non-code record must consume as absent, got %v", err)
	}
}

// TestPurpose: Validates wholesale scope replacement.
// Scope: Unit Test
// Expected: The new scope replaces the old one trimmed, not merged, and
// is persisted.
func TestEngine_SetScope(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store)
	ctx := context.Background()

	tok, _ := NewToken("t1", nil, "bus:old.com", future(), false)
	e.Create(ctx, tok)

	if err := e.SetScope(ctx, tok, "  bus:new.com channel:abc  "); err != nil {
		t.Fatalf("set scope failed: %v", err)
	}
	if tok.Scope != "bus:new.com channel:abc" {
		t.Errorf("scope not replaced/trimmed: %q", tok.Scope)
	}

	stored, err := e.Get(ctx, "t1", time.Now())
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Scope != "bus:new.com channel:abc" {
		t.Errorf("scope not persisted: %q", stored.Scope)
	}
}

// TestPurpose: Validates channel ids use a URL-safe alphabet.
// Scope: Unit Test
// Expected: Generated identifiers contain only URL-safe characters.
func TestAccess_RandomStringAlphabet(t *testing.T) {
	s := randomString(1000)
	if len(s) != 1000 {
		t.Fatalf("expected length 1000, got %d", len(s))
	}
	for _, r := range s {
		if !strings.ContainsRune(urlSafeAlphabet, r) {
			t.Fatalf("character %q outside URL-safe alphabet", r)
		}
	}
}
