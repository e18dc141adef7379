package redis

import (
	"context"
	"testing"
	"time"

	"vlsnet/internal/core/ports"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *KeyValueStore) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewKeyValueStore(client)
}

func TestKeyValueStore_SetGetExpire(t *testing.T) {
	mr, store := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "refresh_token:abc", "a@x.com", time.Minute))

	got, err := store.Get(ctx, "refresh_token:abc")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got)

	mr.FastForward(time.Minute + time.Second)

	_, err = store.Get(ctx, "refresh_token:abc")
	assert.ErrorIs(t, err, ports.ErrKeyNotFound)
}

func TestKeyValueStore_IncrAndExists(t *testing.T) {
	mr, store := newTestRedis(t)
	ctx := context.Background()

	n, err := store.IncrWithTTL(ctx, "failed_attempts:a@x.com", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 15*time.Minute, mr.TTL("failed_attempts:a@x.com"))

	mr.FastForward(5 * time.Minute)
	n, err = store.IncrWithTTL(ctx, "failed_attempts:a@x.com", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 10*time.Minute, mr.TTL("failed_attempts:a@x.com"), "expiry is not pushed back")

	ok, err := store.Exists(ctx, "failed_attempts:a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "failed_attempts:a@x.com", "lockout:a@x.com"))
	ok, err = store.Exists(ctx, "failed_attempts:a@x.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeyValueStore_IncrWithTTLHealsCounterWithoutExpiry(t *testing.T) {
	mr, store := newTestRedis(t)
	require.NoError(t, mr.Set("failed_attempts:a@x.com", "3"))

	n, err := store.IncrWithTTL(context.Background(), "failed_attempts:a@x.com", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, time.Minute, mr.TTL("failed_attempts:a@x.com"))
}

func TestKeyValueStore_ServerDown(t *testing.T) {
	mr, store := newTestRedis(t)
	mr.Close()

	_, err := store.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrKeyNotFound)
	assert.Error(t, store.Ping(context.Background()))
}
