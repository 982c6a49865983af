package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const opTimeout = 3 * time.Second

// RedisStore keeps sessions in Redis with a sliding TTL. The token is
// the cache key, the value is the JSON-encoded identity. Per-key
// GET/SET/EXPIRE atomicity comes from Redis itself; the pooled client
// needs no application-level lock.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a Redis-backed session store. A non-positive ttl
// falls back to DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Create writes a fresh token -> identity mapping with TTL and returns
// the opaque token.
func (s *RedisStore) Create(ctx context.Context, id Identity) (string, error) {
	payload, err := json.Marshal(id)
	if err != nil {
		return "", fmt.Errorf("encode identity: %w", err)
	}
	token := uuid.NewString()
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := s.client.Set(ctx, token, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Get resolves a token to its identity. A missing key, an undecodable
// value, or an out-of-range role all report "not found" without error.
func (s *RedisStore) Get(ctx context.Context, token string) (Identity, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	val, err := s.client.Get(ctx, token).Bytes()
	if errors.Is(err, redis.Nil) {
		return Identity{}, false, nil
	}
	if err != nil {
		return Identity{}, false, err
	}
	var id Identity
	if err := json.Unmarshal(val, &id); err != nil {
		return Identity{}, false, nil
	}
	if !id.Role.Valid() {
		return Identity{}, false, nil
	}
	return id, true, nil
}

// Refresh restarts the sliding expiration for the token.
func (s *RedisStore) Refresh(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.client.Expire(ctx, token, s.ttl).Err()
}

// Delete removes the token mapping.
func (s *RedisStore) Delete(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := s.client.Del(ctx, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
