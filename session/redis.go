package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a session value survives in redis
const DefaultTTL = 2 * time.Hour

// RedisStore keeps session values in redis under epoch:session:<scope>:<key>.
// Every write refreshes the TTL, so values expire with an idle session.
type RedisStore struct {
	client *redis.Client
	scope  string
	ttl    time.Duration
}

// NewRedisStore creates a redis-backed store for one session scope
func NewRedisStore(client *redis.Client, scope string, ttl time.Duration) (*RedisStore, error) {
	if scope == "" {
		return nil, ErrInvalidScope
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, scope: scope, ttl: ttl}, nil
}

func (s *RedisStore) key(key string) string {
	return fmt.Sprintf("epoch:session:%s:%s", s.scope, key)
}

// Get retrieves a value
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

// Set stores a value
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes a value
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
