package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vlsnet/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// KeyValueStore backs refresh tokens and lockout state with Redis.
type KeyValueStore struct {
	client redis.UniversalClient
}

func NewKeyValueStore(client redis.UniversalClient) *KeyValueStore {
	return &KeyValueStore{client: client}
}

var _ ports.KeyValueStore = (*KeyValueStore)(nil)

func (s *KeyValueStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *KeyValueStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ports.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

func (s *KeyValueStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// incrWithTTL runs server side so a counter never outlives a lost EXPIRE.
var incrWithTTL = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

func (s *KeyValueStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := incrWithTTL.Run(ctx, s.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return n, nil
}

func (s *KeyValueStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n == 1, nil
}

func (s *KeyValueStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
