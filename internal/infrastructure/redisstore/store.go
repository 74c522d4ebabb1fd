package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "nailbliss/session/internal/domain/session"

	"github.com/redis/go-redis/v9"
)

// Store persists small values in Redis under a per-device prefix, for
// kiosk and headless deployments without an OS keychain.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New wraps client. Keys are written as prefix + ":" + key. A zero ttl
// keeps entries until removed.
func New(client *redis.Client, prefix string, ttl time.Duration) *Store {
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

var _ domain.KeyValueStore = (*Store)(nil)

func (s *Store) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

// Get reads key; a missing entry is reported as ok=false.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

// Set writes key with the configured ttl.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
