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

package provision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/busgate/busgate/internal/audit"
	"github.com/busgate/busgate/internal/bus"
	"github.com/busgate/busgate/internal/grant"
	"github.com/busgate/busgate/internal/identity"
)

type memUsers struct {
	users map[string]*identity.User
}

func (m *memUsers) Put(ctx context.Context, u *identity.User) error {
	m.users[u.Name] = u
	return nil
}

func (m *memUsers) Get(ctx context.Context, name string) (*identity.User, error) {
	u, ok := m.users[name]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) Delete(ctx context.Context, name string) error {
	if _, ok := m.users[name]; !ok {
		return identity.ErrUserNotFound
	}
	delete(m.users, name)
	return nil
}

func (m *memUsers) List(ctx context.Context) ([]*identity.User, error) {
	var out []*identity.User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

type memClients struct {
	clients map[string]*identity.Client
}

func (m *memClients) Put(ctx context.Context, c *identity.Client) error {
	m.clients[c.ID] = c
	return nil
}

func (m *memClients) Get(ctx context.Context, id string) (*identity.Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, identity.ErrClientNotFound
	}
	return c, nil
}

func (m *memClients) Delete(ctx context.Context, id string) error {
	if _, ok := m.clients[id]; !ok {
		return identity.ErrClientNotFound
	}
	delete(m.clients, id)
	return nil
}

func (m *memClients) List(ctx context.Context) ([]*identity.Client, error) {
	var out []*identity.Client
	for _, c := range m.clients {
		out = append(out, c)
	}
	return out, nil
}

type memBuses struct {
	buses map[string]*bus.Config
}

func (m *memBuses) Put(ctx context.Context, cfg *bus.Config) error {
	m.buses[cfg.Name] = cfg
	return nil
}

func (m *memBuses) Get(ctx context.Context, name string) (*bus.Config, error) {
	cfg, ok := m.buses[name]
	if !ok {
		return nil, bus.ErrNotFound
	}
	return cfg, nil
}

func (m *memBuses) Delete(ctx context.Context, name string) error {
	if _, ok := m.buses[name]; !ok {
		return bus.ErrNotFound
	}
	delete(m.buses, name)
	return nil
}

func (m *memBuses) List(ctx context.Context) ([]*bus.Config, error) {
	var out []*bus.Config
	for _, cfg := range m.buses {
		out = append(out, cfg)
	}
	return out, nil
}

type memGrantStore struct {
	grants map[string]*grant.Grant
	rels   map[string]*grant.TokenRel
}

func (m *memGrantStore) PutGrant(ctx context.Context, g *grant.Grant) error {
	m.grants[g.ID] = g
	return nil
}

func (m *memGrantStore) GrantsByClient(ctx context.Context, clientID string) ([]*grant.Grant, error) {
	var out []*grant.Grant
	for _, g := range m.grants {
		if g.ClientID == clientID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memGrantStore) DeleteGrant(ctx context.Context, id string) error {
	delete(m.grants, id)
	return nil
}

func (m *memGrantStore) PutTokenRel(ctx context.Context, rel *grant.TokenRel) error {
	m.rels[rel.ID] = rel
	return nil
}

func (m *memGrantStore) TokenRelsByAuth(ctx context.Context, authID string) ([]*grant.TokenRel, error) {
	return nil, nil
}

func (m *memGrantStore) DeleteTokenRel(ctx context.Context, id string) error {
	delete(m.rels, id)
	return nil
}

type noopAudit struct{}

func (noopAudit) Log(ctx context.Context, event audit.Event) {}

type fixture struct {
	svc     *Service
	users   *memUsers
	clients *memClients
	buses   *memBuses
}

const (
	adminName   = "admin"
	adminSecret = "admin-secret"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := &memUsers{users: make(map[string]*identity.User)}
	clients := &memClients{clients: make(map[string]*identity.Client)}
	buses := &memBuses{buses: make(map[string]*bus.Config)}
	grants := grant.NewEngine(
		&memGrantStore{grants: make(map[string]*grant.Grant), rels: make(map[string]*grant.TokenRel)},
		buses,
		noopAudit{},
	)
	hasher := identity.NewSecretHasher(8*1024, 1, 1, 16, 32)

	hash, err := hasher.Hash(adminSecret)
	require.NoError(t, err)
	users.users[adminName] = &identity.User{Name: adminName, SecretHash: hash}

	return &fixture{
		svc:     NewService(users, clients, buses, grants, hasher, noopAudit{}),
		users:   users,
		clients: clients,
		buses:   buses,
	}
}

// TestPurpose: Validates that a failed admin check rejects the whole batch without mutations.
// Scope: Unit Test
// Security: Admin Authentication Gate (batch atomic rejection)
// Expected: ErrAuthenticationFailed for wrong secret and unknown admin; no user is created.
// Test Case ID: PRV-01
func TestProvision_AuthenticationGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entries := []UserEntry{{Name: "owner1", Secret: "pw"}}

	_, err := f.svc.UpdateUsers(ctx, adminName, "wrong", entries)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	_, err = f.svc.UpdateUsers(ctx, "nobody", adminSecret, entries)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	_, ok := f.users.users["owner1"]
	assert.False(t, ok, "rejected batch must not mutate")
}

// TestPurpose: Validates user update stores a hash, never the plaintext secret.
// Scope: Unit Test
// Security: Credential Storage (CWE-256)
// Expected: BACKPLANE_UPDATE_SUCCESS per entry; stored hash differs from the plaintext and verifies.
// Test Case ID: PRV-02
func TestProvision_UpdateAndListUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	results, err := f.svc.UpdateUsers(ctx, adminName, adminSecret, []UserEntry{
		{Name: "owner1", Secret: "owner1-pw"},
		{Name: "owner2", Secret: "owner2-pw"},
	})
	require.NoError(t, err)
	assert.Equal(t, ResultUpdateSuccess, results["owner1"])
	assert.Equal(t, ResultUpdateSuccess, results["owner2"])

	stored := f.users.users["owner1"]
	require.NotNil(t, stored)
	assert.NotEqual(t, "owner1-pw", stored.SecretHash)
	assert.NotEmpty(t, stored.SecretHash)

	listed, err := f.svc.ListUsers(ctx, adminName, adminSecret, nil)
	require.NoError(t, err)
	assert.Len(t, listed, 3) // admin plus the two owners

	named, err := f.svc.ListUsers(ctx, adminName, adminSecret, []string{"owner1", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, stored, named["owner1"])
	assert.Equal(t, ResultEntryNotFound, named["ghost"])
}

// TestPurpose: Validates deletes of absent entities are itemized, not a blanket failure.
// Scope: Unit Test
// Security: Batch Error Isolation
// Expected: BACKPLANE_ENTRY_NOT_FOUND per absent user, client, and bus; present entities still delete.
// Test Case ID: PRV-03
func TestProvision_DeleteNotFoundItemized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateUsers(ctx, adminName, adminSecret, []UserEntry{{Name: "owner1", Secret: "pw"}})
	require.NoError(t, err)

	results, err := f.svc.DeleteUsers(ctx, adminName, adminSecret, []string{"owner1", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, ResultUpdateSuccess, results["owner1"])
	assert.Equal(t, ResultEntryNotFound, results["ghost"])

	results, err = f.svc.DeleteClients(ctx, adminName, adminSecret, []string{"no-such-client"})
	require.NoError(t, err)
	assert.Equal(t, ResultEntryNotFound, results["no-such-client"])

	results, err = f.svc.DeleteBuses(ctx, adminName, adminSecret, []string{"no-such-bus"})
	require.NoError(t, err)
	assert.Equal(t, ResultEntryNotFound, results["no-such-bus"])
}

// TestPurpose: Validates bus creation checks the owner reference.
// Scope: Unit Test
// Security: Referential Integrity of Bus Ownership
// Expected: Unknown owner fails naming the owner; valid owner succeeds and the bus is listable.
// Test Case ID: PRV-04
func TestProvision_BusOwnerValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateUsers(ctx, adminName, adminSecret, []UserEntry{{Name: "busowner", Secret: "pw"}})
	require.NoError(t, err)

	results, err := f.svc.UpdateBuses(ctx, adminName, adminSecret, []*bus.Config{
		{Name: "good.example.com", Owner: "busowner", RetentionSeconds: 600, RetentionStickySeconds: 86400},
		{Name: "bad.example.com", Owner: "ghostowner", RetentionSeconds: 600},
	})
	require.NoError(t, err)
	assert.Equal(t, ResultUpdateSuccess, results["good.example.com"])
	assert.Equal(t, "Invalid bus owner: ghostowner", results["bad.example.com"])

	listed, err := f.svc.ListBuses(ctx, adminName, adminSecret, nil)
	require.NoError(t, err)
	assert.Contains(t, listed, "good.example.com")
	assert.NotContains(t, listed, "bad.example.com")
}

// TestPurpose: Validates the anonymous client id cannot be provisioned.
// Scope: Unit Test
// Security: Reserved Identifier Protection
// Expected: The anonymous entry is itemized as reserved; other entries in the batch still succeed.
// Test Case ID: PRV-05
func TestProvision_ReservedClientID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	results, err := f.svc.UpdateClients(ctx, adminName, adminSecret, []ClientEntry{
		{ID: identity.AnonymousClientID, Secret: "pw"},
		{ID: "client1", Secret: "pw", SourceURL: "https://app.example.com", RedirectURI: "https://app.example.com/cb"},
	})
	require.NoError(t, err)
	assert.Equal(t, identity.ErrReservedClient.Error(), results[identity.AnonymousClientID])
	assert.Equal(t, ResultUpdateSuccess, results["client1"])

	_, ok := f.clients.clients[identity.AnonymousClientID]
	assert.False(t, ok)
}

// TestPurpose: Validates the grant add/revoke/list wire semantics.
// Scope: Unit Test
// Security: Grant Administration
// Expected: GRANT_UPDATE_SUCCESS per client; unknown buses itemized; listing shows sorted bus strings.
// Test Case ID: PRV-06
func TestProvision_Grants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateUsers(ctx, adminName, adminSecret, []UserEntry{{Name: "busowner", Secret: "pw"}})
	require.NoError(t, err)
	_, err = f.svc.UpdateBuses(ctx, adminName, adminSecret, []*bus.Config{
		{Name: "bus1.example.com", Owner: "busowner"},
		{Name: "bus2.example.com", Owner: "busowner"},
	})
	require.NoError(t, err)

	results, err := f.svc.AddGrants(ctx, adminName, adminSecret, map[string]string{
		"client1": "bus2.example.com bus1.example.com",
		"client2": "missing.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, ResultGrantSuccess, results["client1"])
	assert.Contains(t, results["client2"], "missing.example.com")

	listed, err := f.svc.ListGrants(ctx, adminName, adminSecret, []string{"client1", "client2"})
	require.NoError(t, err)
	require.Contains(t, listed, "client1")
	assert.NotContains(t, listed, "client2")
	for _, buses := range listed["client1"] {
		assert.Equal(t, "bus1.example.com bus2.example.com", buses)
	}

	results, err = f.svc.RevokeGrants(ctx, adminName, adminSecret, map[string]string{
		"client1": "bus1.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, ResultGrantSuccess, results["client1"])

	listed, err = f.svc.ListGrants(ctx, adminName, adminSecret, []string{"client1"})
	require.NoError(t, err)
	for _, buses := range listed["client1"] {
		assert.Equal(t, "bus2.example.com", buses)
	}
}
