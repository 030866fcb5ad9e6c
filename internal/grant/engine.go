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

package grant

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/busgate/busgate/internal/audit"
	"github.com/busgate/busgate/internal/bus"
)

// Engine provides grant add/revoke/list semantics. Updates are
// read-modify-write against a freshly re-read grant set; the engine never
// blindly overwrites.
type Engine struct {
	store       Store
	buses       bus.Store
	auditLogger audit.Logger
}

// NewEngine creates a new grant engine.
func NewEngine(store Store, buses bus.Store, auditLogger audit.Logger) *Engine {
	return &Engine{
		store:       store,
		buses:       buses,
		auditLogger: auditLogger,
	}
}

// AddGrants adds the given buses to a client's grant set (idempotent
// union). Every bus must exist; the first unknown bus fails the call with
// an InvalidBusError and no mutation.
func (e *Engine) AddGrants(ctx context.Context, clientID string, busNames []string) error {
	for _, name := range busNames {
		if _, err := e.buses.Get(ctx, name); err != nil {
			if err == bus.ErrNotFound {
				return &InvalidBusError{Bus: name}
			}
			return err
		}
	}

	granted, err := e.grantedSet(ctx, clientID)
	if err != nil {
		return err
	}

	var missing []string
	seen := make(map[string]bool)
	for _, name := range busNames {
		if !granted[name] && !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	now := time.Now()
	g := &Grant{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Buses:     missing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.PutGrant(ctx, g); err != nil {
		return err
	}

	e.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeGrantAdded,
		ActorID:  clientID,
		Resource: "grant",
		Metadata: map[string]any{"grant_id": g.ID, "buses": strings.Join(missing, " ")},
	})
	return nil
}

// RevokeGrants removes the given buses from a client's grant set.
// Revoking a bus that was never granted is a no-op; a grant record left
// without buses is deleted together with its token provenance records.
func (e *Engine) RevokeGrants(ctx context.Context, clientID string, busNames []string) error {
	revoke := make(map[string]bool, len(busNames))
	for _, name := range busNames {
		revoke[name] = true
	}

	grants, err := e.store.GrantsByClient(ctx, clientID)
	if err != nil {
		return err
	}

	for _, g := range grants {
		remaining := g.Buses[:0:0]
		for _, name := range g.Buses {
			if !revoke[name] {
				remaining = append(remaining, name)
			}
		}
		if len(remaining) == len(g.Buses) {
			continue
		}

		if len(remaining) == 0 {
			if err := e.deleteGrant(ctx, g); err != nil {
				return err
			}
		} else {
			g.Buses = remaining
			g.UpdatedAt = time.Now()
			if err := e.store.PutGrant(ctx, g); err != nil {
				return err
			}
		}
	}

	e.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeGrantRevoked,
		ActorID:  clientID,
		Resource: "grant",
		Metadata: map[string]any{"buses": strings.Join(busNames, " ")},
	})
	return nil
}

func (e *Engine) deleteGrant(ctx context.Context, g *Grant) error {
	rels, err := e.store.TokenRelsByAuth(ctx, g.ID)
	if err != nil {
		return err
	}
	for _, rel := range rels {
		if err := e.store.DeleteTokenRel(ctx, rel.ID); err != nil {
			return err
		}
	}
	return e.store.DeleteGrant(ctx, g.ID)
}

// ListGrants maps each requested client to its grant records, each
// rendered as a sorted space-delimited bus list so the output is stable
// across calls. A client without grants yields no entry.
func (e *Engine) ListGrants(ctx context.Context, clientIDs []string) (map[string]map[string]string, error) {
	result := make(map[string]map[string]string)
	for _, clientID := range clientIDs {
		grants, err := e.store.GrantsByClient(ctx, clientID)
		if err != nil {
			return nil, err
		}
		if len(grants) == 0 {
			continue
		}

		entry := make(map[string]string, len(grants))
		for _, g := range grants {
			buses := append([]string(nil), g.Buses...)
			sort.Strings(buses)
			entry[g.ID] = strings.Join(buses, " ")
		}
		result[clientID] = entry
	}
	return result, nil
}

// GrantedBuses returns the union of a client's granted buses.
func (e *Engine) GrantedBuses(ctx context.Context, clientID string) ([]string, error) {
	grants, err := e.store.GrantsByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	var buses []string
	seen := make(map[string]bool)
	for _, g := range grants {
		for _, name := range g.Buses {
			if !seen[name] {
				seen[name] = true
				buses = append(buses, name)
			}
		}
	}
	return buses, nil
}

// LinkToken records that a token was issued under a grant.
func (e *Engine) LinkToken(ctx context.Context, authID, tokenID string) (*TokenRel, error) {
	rel := &TokenRel{
		ID:      uuid.NewString(),
		AuthID:  authID,
		TokenID: tokenID,
	}
	if err := e.store.PutTokenRel(ctx, rel); err != nil {
		return nil, err
	}
	return rel, nil
}

func (e *Engine) grantedSet(ctx context.Context, clientID string) (map[string]bool, error) {
	buses, err := e.GrantedBuses(ctx, clientID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(buses))
	for _, name := range buses {
		set[name] = true
	}
	return set, nil
}
