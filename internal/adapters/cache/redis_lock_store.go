package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLockStore holds the short actuation locks. A lock is a plain key with
// a TTL; it expires on its own and is never deleted explicitly.
type RedisLockStore struct {
	client *redis.Client
}

func NewRedisLockStore(client *redis.Client) *RedisLockStore {
	return &RedisLockStore{client: client}
}

func (s *RedisLockStore) Check(ctx context.Context, key string) (bool, time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl <= 0 {
		return false, 0, nil
	}
	return true, ttl, nil
}

func (s *RedisLockStore) Acquire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, key, "1", ttl).Err()
}
