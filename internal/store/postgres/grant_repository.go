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

package postgres

import (
	"context"
	"fmt"

	"github.com/busgate/busgate/internal/grant"
)

// GrantRepository implements grant.Store
type GrantRepository struct {
	db *DB
}

// NewGrantRepository creates a new grant repository
func NewGrantRepository(db *DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// PutGrant creates or fully replaces a grant record
func (r *GrantRepository) PutGrant(ctx context.Context, g *grant.Grant) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO grants (id, client_id, buses, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET buses = EXCLUDED.buses, updated_at = EXCLUDED.updated_at
	`, g.ID, g.ClientID, g.Buses, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert grant: %w", err)
	}
	return nil
}

// GrantsByClient retrieves all grant records of a client. An unknown
// client yields an empty result, not an error.
func (r *GrantRepository) GrantsByClient(ctx context.Context, clientID string) ([]*grant.Grant, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, client_id, buses, created_at, updated_at
		FROM grants
		WHERE client_id = $1
		ORDER BY created_at
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	var grants []*grant.Grant
	for rows.Next() {
		var g grant.Grant
		if err := rows.Scan(&g.ID, &g.ClientID, &g.Buses, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, &g)
	}
	return grants, rows.Err()
}

// DeleteGrant removes a grant record
func (r *GrantRepository) DeleteGrant(ctx context.Context, id string) error {
	_, err := r.db.pool.Exec(ctx, `DELETE FROM grants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	return nil
}

// PutTokenRel records a token's provenance under a grant
func (r *GrantRepository) PutTokenRel(ctx context.Context, rel *grant.TokenRel) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO grant_token_rels (id, auth_id, token_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, rel.ID, rel.AuthID, rel.TokenID)
	if err != nil {
		return fmt.Errorf("failed to insert token rel: %w", err)
	}
	return nil
}

// TokenRelsByAuth retrieves the provenance records of a grant
func (r *GrantRepository) TokenRelsByAuth(ctx context.Context, authID string) ([]*grant.TokenRel, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, auth_id, token_id
		FROM grant_token_rels
		WHERE auth_id = $1
	`, authID)
	if err != nil {
		return nil, fmt.Errorf("failed to query token rels: %w", err)
	}
	defer rows.Close()

	var rels []*grant.TokenRel
	for rows.Next() {
		var rel grant.TokenRel
		if err := rows.Scan(&rel.ID, &rel.AuthID, &rel.TokenID); err != nil {
			return nil, fmt.Errorf("failed to scan token rel: %w", err)
		}
		rels = append(rels, &rel)
	}
	return rels, rows.Err()
}

// DeleteTokenRel removes a provenance record
func (r *GrantRepository) DeleteTokenRel(ctx context.Context, id string) error {
	_, err := r.db.pool.Exec(ctx, `DELETE FROM grant_token_rels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete token rel: %w", err)
	}
	return nil
}

// DeleteOrphanedTokenRels removes provenance records whose grant is gone.
// The cleanup command runs this periodically.
func (r *GrantRepository) DeleteOrphanedTokenRels(ctx context.Context) (int64, error) {
	tag, err := r.db.pool.Exec(ctx, `
		DELETE FROM grant_token_rels rel
		WHERE NOT EXISTS (SELECT 1 FROM grants g WHERE g.id = rel.auth_id)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphaned token rels: %w", err)
	}
	return tag.RowsAffected(), nil
}
