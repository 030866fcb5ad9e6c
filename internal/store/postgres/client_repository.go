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

	"github.com/jackc/pgx/v5"

	"github.com/busgate/busgate/internal/identity"
)

// ClientRepository implements identity.ClientStore
type ClientRepository struct {
	db *DB
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// Put creates or fully replaces a client
func (r *ClientRepository) Put(ctx context.Context, client *identity.Client) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO clients (id, secret_hash, source_url, redirect_uri, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET secret_hash = EXCLUDED.secret_hash,
			source_url = EXCLUDED.source_url,
			redirect_uri = EXCLUDED.redirect_uri,
			updated_at = EXCLUDED.updated_at
	`, client.ID, client.SecretHash, client.SourceURL, client.RedirectURI,
		client.CreatedAt, client.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert client: %w", err)
	}
	return nil
}

// Get retrieves a client by id
func (r *ClientRepository) Get(ctx context.Context, id string) (*identity.Client, error) {
	var client identity.Client
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, secret_hash, source_url, redirect_uri, created_at, updated_at
		FROM clients
		WHERE id = $1
	`, id).Scan(&client.ID, &client.SecretHash, &client.SourceURL,
		&client.RedirectURI, &client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, identity.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &client, nil
}

// Delete removes a client
func (r *ClientRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrClientNotFound
	}
	return nil
}

// List retrieves all clients
func (r *ClientRepository) List(ctx context.Context) ([]*identity.Client, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, secret_hash, source_url, redirect_uri, created_at, updated_at
		FROM clients
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*identity.Client
	for rows.Next() {
		var client identity.Client
		if err := rows.Scan(&client.ID, &client.SecretHash, &client.SourceURL,
			&client.RedirectURI, &client.CreatedAt, &client.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, &client)
	}
	return clients, rows.Err()
}
