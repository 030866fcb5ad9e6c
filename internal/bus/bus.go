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

// Package bus holds the per-bus configuration records. The core validates
// and stores retention settings; enforcement belongs to the delivery layer.
package bus

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Domain errors
var (
	ErrNotFound     = errors.New("bus not found")
	ErrInvalidOwner = errors.New("invalid bus owner")
)

// Config is the configuration record of a named bus.
type Config struct {
	Name                   string    `json:"BUS_NAME"`
	Owner                  string    `json:"OWNER"`
	RetentionSeconds       int       `json:"RETENTION_TIME_SECONDS,string"`
	RetentionStickySeconds int       `json:"RETENTION_STICKY_TIME_SECONDS,string"`
	CreatedAt              time.Time `json:"created_at,omitempty"`
	UpdatedAt              time.Time `json:"updated_at,omitempty"`
}

// Validate checks the structural invariants of a bus config. Owner
// existence is checked by the caller against the user store.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("bus name is required")
	}
	if c.Owner == "" {
		return fmt.Errorf("bus owner is required")
	}
	if c.RetentionSeconds < 0 {
		return fmt.Errorf("retention time must not be negative")
	}
	if c.RetentionStickySeconds < 0 {
		return fmt.Errorf("sticky retention time must not be negative")
	}
	return nil
}

// Store defines the interface for bus config persistence. Implementations
// must namespace their keys so bus records cannot collide with other
// record kinds sharing the backend.
type Store interface {
	// Put creates or fully replaces a bus config.
	Put(ctx context.Context, config *Config) error

	// Get retrieves a bus config by name; ErrNotFound when absent.
	Get(ctx context.Context, name string) (*Config, error)

	// Delete removes a bus config; ErrNotFound when absent.
	Delete(ctx context.Context, name string) error

	// List retrieves all bus configs.
	List(ctx context.Context) ([]*Config, error)
}
