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
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/busgate/busgate/internal/access"
)

const accessKeyPrefix = "access:"

// AccessStore keeps access records in Redis. A record with an expiry gets
// a matching TTL, so the store reaps what lazy reads miss.
type AccessStore struct {
	rdb *redis.Client
}

// NewAccessStore creates a Redis-backed access store.
func NewAccessStore(rdb *redis.Client) *AccessStore {
	return &AccessStore{rdb: rdb}
}

func accessKey(id string) string {
	return accessKeyPrefix + id
}

// Put creates or replaces an access record.
func (s *AccessStore) Put(ctx context.Context, a *access.Access) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal access record: %w", err)
	}

	var ttl time.Duration
	if a.ExpiresAt != nil {
		ttl = time.Until(*a.ExpiresAt)
		if ttl <= 0 {
			ttl = time.Millisecond
		}
	}
	return s.rdb.Set(ctx, accessKey(a.ID), data, ttl).Err()
}

// Get retrieves a record by id.
func (s *AccessStore) Get(ctx context.Context, id string) (*access.Access, error) {
	data, err := s.rdb.Get(ctx, accessKey(id)).Bytes()
	if err == redis.Nil {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeAccess(data)
}

// Delete removes a record. Absent records are a no-op.
func (s *AccessStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, accessKey(id)).Err()
}

// Consume atomically retrieves and removes a record via GETDEL; of two
// concurrent consumers exactly one sees the record.
func (s *AccessStore) Consume(ctx context.Context, id string) (*access.Access, error) {
	data, err := s.rdb.GetDel(ctx, accessKey(id)).Bytes()
	if err == redis.Nil {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeAccess(data)
}

func decodeAccess(data []byte) (*access.Access, error) {
	var a access.Access
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("unmarshal access record: %w", err)
	}
	return &a, nil
}
