package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vigilsat/vigil/core"
)

const redisTimeout = 2 * time.Second

var hitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// RedisLimiter shares counters between API instances.
// Any redis failure falls back to a per-process MemoryLimiter.
type RedisLimiter struct {
	client   *redis.Client
	window   time.Duration
	limit    int
	prefix   string
	fallback *MemoryLimiter
	logger   core.Logger
}

var _ Limiter = (*RedisLimiter)(nil) // interface compliance check

func NewRedis(client *redis.Client, window time.Duration, limit int, logger core.Logger) *RedisLimiter {
	window, limit = normalize(window, limit)
	return &RedisLimiter{
		client:   client,
		window:   window,
		limit:    limit,
		prefix:   "rl:",
		fallback: NewMemory(window, limit),
		logger:   logger,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) Decision {
	if l.client == nil {
		return l.fallback.Allow(ctx, key)
	}

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	res, err := hitScript.Run(ctx, l.client, []string{l.prefix + key}, l.window.Milliseconds()).Result()
	if err != nil {
		l.warn("ratelimit: redis unavailable, using memory", err)
		return l.fallback.Allow(ctx, key)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		l.warn("ratelimit: unexpected redis reply, using memory", nil)
		return l.fallback.Allow(ctx, key)
	}
	count, _ := vals[0].(int64)
	ttl, _ := vals[1].(int64)
	if ttl < 0 {
		ttl = l.window.Milliseconds()
	}
	return decide(int(count), l.limit, time.Now().UTC().Add(time.Duration(ttl)*time.Millisecond))
}

func (l *RedisLimiter) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}

func (l *RedisLimiter) warn(msg string, err error) {
	if l.logger == nil {
		return
	}
	if err != nil {
		l.logger.Warn(msg, err)
		return
	}
	l.logger.Warn(msg)
}
