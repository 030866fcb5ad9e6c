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

package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/busgate/busgate/internal/bus"
)

const (
	busKeyPrefix = "bus:"
	busIndexKey  = "bus:__index"
)

// BusStore keeps bus configs in Redis under the "bus:" namespace. A set
// index tracks the known names so List never scans the keyspace.
type BusStore struct {
	rdb *redis.Client
}

// NewBusStore creates a Redis-backed bus config store.
func NewBusStore(rdb *redis.Client) *BusStore {
	return &BusStore{rdb: rdb}
}

func busKey(name string) string {
	return busKeyPrefix + name
}

// Put creates or fully replaces a bus config.
func (s *BusStore) Put(ctx context.Context, cfg *bus.Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal bus config: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, busKey(cfg.Name), data, 0)
	pipe.SAdd(ctx, busIndexKey, cfg.Name)
	_, err = pipe.Exec(ctx)
	return err
}

// Get retrieves a bus config by name.
func (s *BusStore) Get(ctx context.Context, name string) (*bus.Config, error) {
	data, err := s.rdb.Get(ctx, busKey(name)).Bytes()
	if err == redis.Nil {
		return nil, bus.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var cfg bus.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal bus config: %w", err)
	}
	return &cfg, nil
}

// Delete removes a bus config; bus.ErrNotFound when absent.
func (s *BusStore) Delete(ctx context.Context, name string) error {
	pipe := s.rdb.TxPipeline()
	del := pipe.Del(ctx, busKey(name))
	pipe.SRem(ctx, busIndexKey, name)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if del.Val() == 0 {
		return bus.ErrNotFound
	}
	return nil
}

// List retrieves all bus configs via the name index. Index entries whose
// record vanished are skipped.
func (s *BusStore) List(ctx context.Context) ([]*bus.Config, error) {
	names, err := s.rdb.SMembers(ctx, busIndexKey).Result()
	if err != nil {
		return nil, err
	}

	configs := make([]*bus.Config, 0, len(names))
	for _, name := range names {
		cfg, err := s.Get(ctx, name)
		if err == bus.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}
