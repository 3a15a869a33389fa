// Package ratelimit implements the fixed-window request limiter used by the API.
package ratelimit

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/vigilsat/vigil/core"
)

const (
	defaultWindow = 15 * time.Minute
	defaultLimit  = 100
)

// Decision is the outcome of one hit on a key.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window resets (at least 1).
func (d Decision) RetryAfter() int {
	secs := int(math.Ceil(time.Until(d.ResetAt).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Headers returns the X-RateLimit-* response headers for the decision.
func (d Decision) Headers() map[string]string {
	h := map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(d.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(d.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(d.ResetAt.Unix(), 10),
	}
	if !d.Allowed {
		h["Retry-After"] = strconv.Itoa(d.RetryAfter())
	}
	return h
}

// Limiter counts hits per key over a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string) Decision
}

// New returns a redis limiter when conf.Redis.URL is set, an in-memory one otherwise.
func New(conf *core.Config, logger core.Logger) (Limiter, error) {
	window, limit := conf.RateLimit.Window, conf.RateLimit.MaxRequests
	if conf.Redis.URL == "" {
		return NewMemory(window, limit), nil
	}
	opts, err := redis.ParseURL(conf.Redis.URL)
	if err != nil {
		return nil, errors.Wrap(err, "ratelimit.redis.ParseURL()")
	}
	return NewRedis(redis.NewClient(opts), window, limit, logger), nil
}

func normalize(window time.Duration, limit int) (time.Duration, int) {
	if window <= 0 {
		window = defaultWindow
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	return window, limit
}

func decide(count, limit int, resetAt time.Time) Decision {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= limit,
		Count:     count,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

type memoryEntry struct {
	count   int
	resetAt time.Time
}

type MemoryLimiter struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	items  map[string]memoryEntry
	now    func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil) // interface compliance check

func NewMemory(window time.Duration, limit int) *MemoryLimiter {
	window, limit = normalize(window, limit)
	return &MemoryLimiter{
		window: window,
		limit:  limit,
		items:  make(map[string]memoryEntry),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) Decision {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanup(now)
	curr, ok := l.items[key]
	if !ok || !now.Before(curr.resetAt) {
		curr = memoryEntry{resetAt: now.Add(l.window)}
	}
	curr.count++
	l.items[key] = curr
	return decide(curr.count, l.limit, curr.resetAt)
}

// cleanup must be called with the lock held.
func (l *MemoryLimiter) cleanup(now time.Time) {
	for k, v := range l.items {
		if !now.Before(v.resetAt) {
			delete(l.items, k)
		}
	}
}
