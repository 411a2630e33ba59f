package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisAdapter_ClaimAndRelease(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute)

	key := "test-claim"
	client.Del(ctx, idempotencyKeyPrefix+key)

	ok, err := adapter.Claim(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok, "first claim should succeed")

	ok, err = adapter.Claim(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "second claim should fail")

	ttl, err := client.TTL(ctx, idempotencyKeyPrefix+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, adapter.Release(ctx, key))

	ok, err = adapter.Claim(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok, "claim after release should succeed")

	client.Del(ctx, idempotencyKeyPrefix+key)
}

func TestRedisAdapter_ConcurrentClaims(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute)

	key := "test-claim-concurrent"
	client.Del(ctx, idempotencyKeyPrefix+key)
	defer client.Del(ctx, idempotencyKeyPrefix+key)

	testConcurrentClaims(t, adapter.Claim, key)
}

func testConcurrentClaims(t *testing.T, claim func(context.Context, string) (bool, error), key string) {
	var (
		successCount atomic.Int32
		wg           sync.WaitGroup
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := claim(context.Background(), key)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successCount.Load())
}

func TestMemoryIdempotency_ClaimAndRelease(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotency(time.Minute)

	ok, err := store.Claim(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Claim(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Claim(ctx, "k2")
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	require.NoError(t, store.Release(ctx, "k1"))
	ok, err = store.Claim(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryIdempotency_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotency(time.Minute)

	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	ok, err := store.Claim(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	current = current.Add(59 * time.Second)
	ok, _ = store.Claim(ctx, "k")
	assert.False(t, ok, "key still live")

	current = current.Add(time.Second)
	ok, _ = store.Claim(ctx, "k")
	assert.True(t, ok, "key expired")
}

func TestMemoryIdempotency_ConcurrentClaims(t *testing.T) {
	store := NewMemoryIdempotency(time.Minute)
	testConcurrentClaims(t, store.Claim, "concurrent")
}
