package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterSlidingWindow(t *testing.T) {
	limiter := NewMemoryLimiter(Config{Max: 5, Window: 15 * time.Minute})
	clock := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return clock }

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, "login:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, "login:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed, "6th attempt should be rejected")

	allowed, err = limiter.Allow(ctx, "login:10.0.0.2")
	require.NoError(t, err)
	assert.True(t, allowed, "other keys keep their own window")

	clock = clock.Add(15*time.Minute + time.Second)
	allowed, err = limiter.Allow(ctx, "login:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed, "window should have slid past the first attempts")
}

func TestMemoryLimiterCleanup(t *testing.T) {
	limiter := NewMemoryLimiter(Config{Max: 2, Window: time.Minute})
	clock := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return clock }

	ctx := context.Background()
	_, _ = limiter.Allow(ctx, "a")
	clock = clock.Add(30 * time.Second)
	_, _ = limiter.Allow(ctx, "b")
	require.Equal(t, 2, limiter.Len())

	clock = clock.Add(45 * time.Second)
	assert.Equal(t, 1, limiter.Cleanup())
	assert.Equal(t, 1, limiter.Len())
}

func TestMemoryLimiterConcurrentAttempts(t *testing.T) {
	limiter := NewMemoryLimiter(Config{Max: 5, Window: time.Minute})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := limiter.Allow(context.Background(), "login:shared")
			if err == nil && ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, allowed)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestFallbackLimiterUsesSecondaryOnError(t *testing.T) {
	local := NewMemoryLimiter(Config{Max: 1, Window: time.Minute})
	limiter := NewFallbackLimiter(failingLimiter{}, local, nil)

	allowed, err := limiter.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	client.FlushDB(ctx)
	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})
	return client
}

func TestRedisLimiterAllow(t *testing.T) {
	client := setupTestRedis(t)
	limiter := NewRedisLimiter(client, Config{Max: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "login:127.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, "login:127.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "login:127.0.0.1"))
	allowed, err = limiter.Allow(ctx, "login:127.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)
}
