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

// Package identity holds the provisioned principals of the bus: admin and
// bus-owner users, and the clients that request credentials. Secrets are
// stored hashed only; the plaintext never reaches a store.
package identity

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrClientNotFound = errors.New("client not found")
	ErrReservedClient = errors.New("client id is reserved")
)

// AnonymousClientID is the well-known client id for unauthenticated
// subscribers. It may never be provisioned as a real client.
const AnonymousClientID = "anonymous"

// User is an admin or bus-owner account. Admins authenticate provisioning
// requests; bus owners are referenced by BusConfig.Owner.
type User struct {
	Name       string    `json:"USER"`
	SecretHash string    `json:"-"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// Client is a provisioned application allowed to request codes and tokens.
type Client struct {
	ID          string    `json:"USER"`
	SecretHash  string    `json:"-"`
	SourceURL   string    `json:"SOURCE_URL"`
	RedirectURI string    `json:"REDIRECT_URI"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// UserStore defines the interface for user persistence.
type UserStore interface {
	// Put creates or fully replaces a user.
	Put(ctx context.Context, user *User) error

	// Get retrieves a user by name; ErrUserNotFound when absent.
	Get(ctx context.Context, name string) (*User, error)

	// Delete removes a user; ErrUserNotFound when absent.
	Delete(ctx context.Context, name string) error

	// List retrieves all users.
	List(ctx context.Context) ([]*User, error)
}

// ClientStore defines the interface for client persistence.
type ClientStore interface {
	// Put creates or fully replaces a client.
	Put(ctx context.Context, client *Client) error

	// Get retrieves a client by id; ErrClientNotFound when absent.
	Get(ctx context.Context, id string) (*Client, error)

	// Delete removes a client; ErrClientNotFound when absent.
	Delete(ctx context.Context, id string) error

	// List retrieves all clients.
	List(ctx context.Context) ([]*Client, error)
}
