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

package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/busgate/busgate/internal/config"
	"github.com/busgate/busgate/internal/identity"
)

type memUsers struct {
	users map[string]*identity.User
}

func (m *memUsers) Put(_ context.Context, u *identity.User) error {
	cp := *u
	m.users[u.Name] = &cp
	return nil
}

func (m *memUsers) Get(_ context.Context, name string) (*identity.User, error) {
	u, ok := m.users[name]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) Delete(_ context.Context, name string) error {
	if _, ok := m.users[name]; !ok {
		return identity.ErrUserNotFound
	}
	delete(m.users, name)
	return nil
}

func (m *memUsers) List(_ context.Context) ([]*identity.User, error) {
	out := make([]*identity.User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

// TestPurpose: Validates first-start admin provisioning.
//
// Scope: bootstrapAdmin with an empty store, an existing admin, and no
// configured credentials.
//
// Security: The stored secret must be a hash, never the plaintext, and
// the record must carry real timestamps.
//
// Expected: One admin user with hashed secret and non-zero
// CreatedAt/UpdatedAt; existing users are left untouched; missing
// config is a no-op.
//
// Test Case ID: CMD-01
func TestBootstrapAdmin(t *testing.T) {
	ctx := context.Background()
	hasher := identity.NewSecretHasher(8*1024, 1, 1, 16, 32)
	cfg := &config.Config{Admin: config.AdminConfig{User: "admin", Secret: "admin-secret"}}

	users := &memUsers{users: make(map[string]*identity.User)}
	require.NoError(t, bootstrapAdmin(ctx, cfg, users, hasher))

	stored, err := users.Get(ctx, "admin")
	require.NoError(t, err)
	assert.NotEqual(t, "admin-secret", stored.SecretHash)
	assert.False(t, stored.CreatedAt.IsZero(), "CreatedAt not set")
	assert.False(t, stored.UpdatedAt.IsZero(), "UpdatedAt not set")

	// A second start must not replace the existing record.
	before := stored.UpdatedAt
	time.Sleep(time.Millisecond)
	require.NoError(t, bootstrapAdmin(ctx, cfg, users, hasher))
	again, err := users.Get(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, before, again.UpdatedAt)

	empty := &memUsers{users: make(map[string]*identity.User)}
	require.NoError(t, bootstrapAdmin(ctx, &config.Config{}, empty, hasher))
	assert.Empty(t, empty.users)
}
