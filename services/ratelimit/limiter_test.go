package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilsat/vigil/core"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	lim := NewMemory(time.Minute, 2)
	lim.now = func() time.Time { return now }

	d := lim.Allow(ctx, "1.2.3.4")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	assert.Equal(t, now.Add(time.Minute), d.ResetAt)

	d = lim.Allow(ctx, "1.2.3.4")
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d = lim.Allow(ctx, "1.2.3.4")
	assert.False(t, d.Allowed)
	assert.Equal(t, 3, d.Count)
	assert.Equal(t, 0, d.Remaining)

	assert.True(t, lim.Allow(ctx, "5.6.7.8").Allowed, "keys are counted separately")

	now = now.Add(time.Minute)
	d = lim.Allow(ctx, "1.2.3.4")
	assert.True(t, d.Allowed, "a new window starts")
	assert.Equal(t, 1, d.Count)
}

func TestNormalizeDefaults(t *testing.T) {
	lim := NewMemory(0, 0)
	assert.Equal(t, defaultWindow, lim.window)
	assert.Equal(t, defaultLimit, lim.limit)
}

func TestDecision_Headers(t *testing.T) {
	resetAt := time.Now().Add(30 * time.Second)

	h := decide(1, 5, resetAt).Headers()
	assert.Equal(t, "5", h["X-RateLimit-Limit"])
	assert.Equal(t, "4", h["X-RateLimit-Remaining"])
	assert.NotContains(t, h, "Retry-After")

	h = decide(6, 5, resetAt).Headers()
	assert.Equal(t, "0", h["X-RateLimit-Remaining"])
	assert.Contains(t, []string{"29", "30"}, h["Retry-After"])

	assert.Equal(t, 1, decide(6, 5, time.Now().Add(-time.Second)).RetryAfter())
}

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	lim := NewRedis(client, time.Minute, 2, nil)

	assert.True(t, lim.Allow(ctx, "ip").Allowed)
	assert.True(t, lim.Allow(ctx, "ip").Allowed)
	d := lim.Allow(ctx, "ip")
	assert.False(t, d.Allowed)
	assert.Equal(t, 3, d.Count)
	assert.WithinDuration(t, time.Now().Add(time.Minute), d.ResetAt, 2*time.Second)

	assert.True(t, mr.Exists("rl:ip"))
	mr.FastForward(time.Minute)
	assert.True(t, lim.Allow(ctx, "ip").Allowed, "the key expired with the window")
}

func TestRedisLimiter_fallback(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	lim := NewRedis(client, time.Minute, 1, nil)
	mr.Close()

	assert.True(t, lim.Allow(ctx, "ip").Allowed)
	assert.False(t, lim.Allow(ctx, "ip").Allowed, "the memory fallback still enforces the limit")
}

func TestRedisLimiter_unexpectedReply(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	orig := hitScript
	hitScript = redis.NewScript(`return {1}`)
	defer func() { hitScript = orig }()

	lim := NewRedis(client, time.Minute, 1, nil)
	d := lim.Allow(context.Background(), "ip")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
}

func TestNew(t *testing.T) {
	conf := &core.Config{RateLimit: core.RateLimitConfig{Window: time.Second, MaxRequests: 3}}

	lim, err := New(conf, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryLimiter{}, lim)

	mr := miniredis.RunT(t)
	conf.Redis.URL = "redis://" + mr.Addr() + "/0"
	lim, err = New(conf, nil)
	require.NoError(t, err)
	require.IsType(t, &RedisLimiter{}, lim)
	defer lim.(*RedisLimiter).Close()
	assert.Equal(t, 3, lim.Allow(context.Background(), "k").Remaining+1)

	conf.Redis.URL = "://nope"
	_, err = New(conf, nil)
	assert.Error(t, err)
}
