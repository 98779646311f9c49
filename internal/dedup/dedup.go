// Package dedup remembers which integration events were already handled.
package dedup

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 72 * time.Hour

// RedisStore keeps one key per handled event id until the TTL expires.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if prefix == "" {
		prefix = "reminder:handled:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) Seen(ctx context.Context, id string) (bool, error) {
	_, err := s.rdb.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Remember marks id handled. It reports false when id was already present.
func (s *RedisStore) Remember(ctx context.Context, id string) (bool, error) {
	return s.rdb.SetNX(ctx, s.key(id), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
}
