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

// Package provision implements the admin batch CRUD surface over users,
// clients, buses, and grants. Every request authenticates an admin before
// any mutation; within an authenticated batch, items succeed or fail
// individually.
package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/busgate/busgate/internal/audit"
	"github.com/busgate/busgate/internal/bus"
	"github.com/busgate/busgate/internal/grant"
	"github.com/busgate/busgate/internal/identity"
)

// Itemized batch result values.
const (
	ResultUpdateSuccess = "BACKPLANE_UPDATE_SUCCESS"
	ResultEntryNotFound = "BACKPLANE_ENTRY_NOT_FOUND"
	ResultGrantSuccess  = "GRANT_UPDATE_SUCCESS"
)

// ErrAuthenticationFailed rejects the whole batch; no item is processed.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Service orchestrates admin provisioning over the backing stores.
type Service struct {
	users       identity.UserStore
	clients     identity.ClientStore
	buses       bus.Store
	grants      *grant.Engine
	hasher      *identity.SecretHasher
	auditLogger audit.Logger
}

// NewService creates a new provisioning service.
func NewService(
	users identity.UserStore,
	clients identity.ClientStore,
	buses bus.Store,
	grants *grant.Engine,
	hasher *identity.SecretHasher,
	auditLogger audit.Logger,
) *Service {
	return &Service{
		users:       users,
		clients:     clients,
		buses:       buses,
		grants:      grants,
		hasher:      hasher,
		auditLogger: auditLogger,
	}
}

// UserEntry is a user create/replace item. Secret arrives in plaintext
// and is hashed before it touches a store.
type UserEntry struct {
	Name   string `json:"USER"`
	Secret string `json:"PWDHASH"`
}

// ClientEntry is a client create/replace item.
type ClientEntry struct {
	ID          string `json:"USER"`
	Secret      string `json:"PWDHASH"`
	SourceURL   string `json:"SOURCE_URL"`
	RedirectURI string `json:"REDIRECT_URI"`
}

// Authenticate verifies the admin credential pair against the user store.
func (s *Service) Authenticate(ctx context.Context, admin, secret string) error {
	user, err := s.users.Get(ctx, admin)
	if err != nil {
		s.denied(ctx, admin)
		return ErrAuthenticationFailed
	}
	ok, err := s.hasher.Verify(secret, user.SecretHash)
	if err != nil || !ok {
		s.denied(ctx, admin)
		return ErrAuthenticationFailed
	}
	return nil
}

func (s *Service) denied(ctx context.Context, admin string) {
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeProvisionDenied,
		ActorID:  admin,
		Resource: "provision",
	})
}

// UpdateUsers creates or replaces admin/bus-owner accounts.
func (s *Service) UpdateUsers(ctx context.Context, admin, secret string, entries []UserEntry) (map[string]string, error) {
	if err := s.Authenticate(ctx, admin, secret); err != nil {
		return nil, err
	}

	results := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.Name == "" {
			results[entry.Name] = "missing user name"
			continue
		}
		hash, err := s.hasher.Hash(entry.Secret)
		if err != nil {
			results[entry.Name] = err.Error()
			continue
		}
		now := time.Now()
		user := &identity.User{
			Name:       entry.Name,
			SecretHash: hash,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.users.Put(ctx, user); err != nil {
			results[entry.Name] = err.Error()
			continue
		}
		results[entry.Name] = ResultUpdateSuccess
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeUserUpdated,
			ActorID:  admin,
			Resource: "user",
			Metadata: map[string]any{"user": entry.Name},
		})
	}
	return results, nil
}

// DeleteUsers removes accounts; an absent account is itemized, not fatal.
func (s *Service) DeleteUsers(ctx context.Context, admin, secret string, names []string) (map[string]string, error) {
	if err := s.Authenticate(ctx, admin, secret); err != nil {
		return nil, err
	}

	results := make(map[string]string, len(names))
	for _, name := range names {
		err := s.users.Delete(ctx, name)
		switch {
		case err == nil:
			results[name] = ResultUpdateSuccess
			s.auditLogger.Log(ctx, audit.Event{
				Type:     audit.TypeUserDeleted,
				ActorID:  admin,
				Resource: "user",
				Metadata: map[string]any{"user": name},
			})
		case errors.Is(err, identity.ErrUserNotFound):
			results[name] = ResultEntryNotFound
		default:
			results[name] = err.Error()
		}
	}
	return results, nil
}

// ListUsers returns the named accounts, or all accounts when no names are
// given. Absent names are itemized as not found.
func (s *Service) ListUsers(ctx context.Context, admin, secret string, names []string) (map[string]any, error) {
	if err := s.Authenticate(ctx, admin, secret); err != nil {
		return nil, err
	}

	results := make(map[string]any)
	if len(names) == 0 {
		users, err := s.users.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, user := range users {
			results[user.Name] = user
		}
		return results, nil
	}

	for _, name := range names {
		user, err := s.users.Get(ctx, name)
		switch {
		case err == nil:
			results[name] = user
		case errors.Is(err, identity.ErrUserNotFound):
			results[name] = ResultEntryNotFound
		default:
			results[name] = err.Error()
		}
	}
	return results, nil
}

// UpdateClients creates or replaces clients. The anonymous client id is
// reserved and may never be provisioned.
func (s *Service) UpdateClients(ctx context.Context, admin, secret string, entries []ClientEntry) (map[string]string, error) {
	if err := s.Authenticate(ctx, admin, secret); err != nil {
		return nil, err
	}

	results := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.ID == "" {
			results[entry.ID] = "missing client id"
			continue
		}
		if entry.ID == identity.AnonymousClientID {
			results[entry.ID] = identity.ErrReservedClient.Error()
			continue
		}
		hash, err := s.hasher.Hash(entry.Secret)
		if err != nil {
			results[entry.ID] = err.Error()
			continue
		}
		now := time.Now()
		client := &identity.Client{
			ID:          entry.ID,
			SecretHash:  hash,
			SourceURL:   entry.SourceURL,
			RedirectURI: entry.RedirectURI,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.clients.Put(ctx, client); err != nil {
			results[entry.ID] = err.Error()
			continue
		}
		results[entry.ID] = ResultUpdateSuccess
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeClientUpdated,
			ActorID:  admin,
			Resource: "client",
			Metadata: map[string]any{"client_id": entry.ID},
		})
	}
	return results, nil
}

// DeleteClients removes clients; an absent client is itemized, not fatal.
func (s *Service) DeleteClients(ctx context.Context, admin, secret string, ids []string) (map[string]string, error) {
	if err := s.Authenticate(ctx, admin, secret); err != nil {
		return nil, err
	}

	results := make(map[string]string, len(ids))
	for _, id := range ids {
		err := s.clients.Delete(ctx, id)
		switch {
		case err == nil:
			results[id] = ResultUpdateSuccess
			s.auditLogger.Log(ctx, audit.Event{
				Type:     audit.TypeClientDeleted,
				ActorID:  admin,
				Resource: "client",
				Metadata: map[string]any{"client_id": id},
			})
		case errors.Is(err, identity.ErrClientNotFound):
			results[id] = ResultEntryNotFound
		default:
			results[id] = err.Error()
		}
	}
	return results, nil
}

// ListClients returns the named clients, or all clients when no ids are
// given.
func (s *Service) ListClients(ctx context.Context, admin, secret string, ids []string) (map[string]any, error) {
	if err := s.Authenticate(ctx, admin, secret); err != nil {
		return nil, err
	}

	results := make(map[string]any)
	if len(ids) == 0 {
		clients, err := s.clients.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, client := range clients {
			results[client.ID] = client
		}
		return results, nil
	}

	for _, id := range ids {
		client, err := s.clients.Get(ctx, id)
		switch {
		case err == nil:
			results[id] = client
		case errors.Is(err, identity.ErrClientNotFound):
			results[id] = ResultEntryNotFound
		default:
			results[id] = err.Error()
		}
	}
	return results, nil
}

// UpdateBuses creates or replaces bus configs. The owner must be a
// provisioned user; a config naming an unknown owner is itemized with an
// error naming that owner.
func (s *Service) UpdateBuses(ctx context.Context, admin, secret string, configs []*bus.Config) (map[string]string, error) {
	if err := s.Authenticate(ctx, admin, secret); err != nil {
		return nil, err
	}

	results := make(map[string]string, len(configs))
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			results[cfg.Name] = err.Error()
			continue
		}
		if _, err := s.users.Get(ctx, cfg.Owner); err != nil {
			if errors.Is(err, identity.ErrUserNotFound) {
				results[cfg.Name] = fmt.Sprintf("Invalid bus owner: %s", cfg.Owner)
			} else {
				results[cfg.Name] = err.Error()
			}
			continue
		}
		now := time.Now()
		cfg.CreatedAt = now
		cfg.UpdatedAt = now
		if err := s.buses.Put(ctx, cfg); err != nil {
			results[cfg.Name] = err.Error()
			continue
		}
		results[cfg.Name] = ResultUpdateSuccess
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeBusUpdated,
			ActorID:  admin,
			BusName:  cfg.Name,
			Resource: "bus",
		})
	}
	return results, nil
}

// DeleteBuses removes bus configs; an absent bus is itemized, not fatal.
func (s *Service) DeleteBuses(ctx context.Context, admin, secret string, names []string) (map[string]string, error) {
	if err := s.Authenticate(ctx, admin, secret); err != nil {
		return nil, err
	}

	results := make(map[string]string, len(names))
	for _, name := range names {
		err := s.buses.Delete(ctx, name)
		switch {
		case err == nil:
			results[name] = ResultUpdateSuccess
			s.auditLogger.Log(ctx, audit.Event{
				Type:     audit.TypeBusDeleted,
				ActorID:  admin,
				BusName:  name,
				Resource: "bus",
			})
		case errors.Is(err, bus.ErrNotFound):
			results[name] = ResultEntryNotFound
		default:
			results[name] = err.Error()
		}
	}
	return results, nil
}

// ListBuses returns the named bus configs, or all configs when no names
// are given.
func (s *Service) ListBuses(ctx context.Context, admin, secret string, names []string) (map[string]any, error) {
	if err := s.Authenticate(ctx, admin, secret); err != nil {
		return nil, err
	}

	results := make(map[string]any)
	if len(names) == 0 {
		configs, err := s.buses.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, cfg := range configs {
			results[cfg.Name] = cfg
		}
		return results, nil
	}

	for _, name := range names {
		cfg, err := s.buses.Get(ctx, name)
		switch {
		case err == nil:
			results[name] = cfg
		case errors.Is(err, bus.ErrNotFound):
			results[name] = ResultEntryNotFound
		default:
			results[name] = err.Error()
		}
	}
	return results, nil
}

// AddGrants grants each client the space-delimited buses in its entry.
func (s *Service) AddGrants(ctx context.Context, admin, secret string, grants map[string]string) (map[string]string, error) {
	if err := s.Authenticate(ctx, admin, secret); err != nil {
		return nil, err
	}
	return s.applyGrants(ctx, grants, s.grants.AddGrants), nil
}

// RevokeGrants revokes the space-delimited buses from each client.
func (s *Service) RevokeGrants(ctx context.Context, admin, secret string, grants map[string]string) (map[string]string, error) {
	if err := s.Authenticate(ctx, admin, secret); err != nil {
		return nil, err
	}
	return s.applyGrants(ctx, grants, s.grants.RevokeGrants), nil
}

func (s *Service) applyGrants(ctx context.Context, grants map[string]string, apply func(context.Context, string, []string) error) map[string]string {
	results := make(map[string]string, len(grants))
	for clientID, busList := range grants {
		buses := strings.Fields(busList)
		if len(buses) == 0 {
			results[clientID] = "no buses named"
			continue
		}
		if err := apply(ctx, clientID, buses); err != nil {
			results[clientID] = err.Error()
			continue
		}
		results[clientID] = ResultGrantSuccess
	}
	return results
}

// ListGrants maps each named client to its grant records, each rendered
// as a sorted bus list.
func (s *Service) ListGrants(ctx context.Context, admin, secret string, clientIDs []string) (map[string]map[string]string, error) {
	if err := s.Authenticate(ctx, admin, secret); err != nil {
		return nil, err
	}
	return s.grants.ListGrants(ctx, clientIDs)
}
