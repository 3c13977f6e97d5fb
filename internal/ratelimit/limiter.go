// Package ratelimit throttles the unauthenticated auth endpoints with fixed
// window counters, kept in Redis when configured and in process otherwise.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrUnavailable = errors.New("rate limit backend unavailable")

// Decision is the outcome of one counted hit.
type Decision struct {
	Allowed bool
	Count   int64
	RetryAt time.Time
}

// Limiter counts a hit against key and reports whether it stays in budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

type Config struct {
	Max    int
	Window time.Duration
	Prefix string
}

func (c Config) withDefaults() Config {
	if c.Max < 1 {
		c.Max = 20
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.Prefix == "" {
		c.Prefix = "rl"
	}
	return c
}

// RedisLimiter keeps one counter per key that expires with the window.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
	now    func() time.Time
}

func NewRedisLimiter(rdb redis.UniversalClient, cfg Config) *RedisLimiter {
	return &RedisLimiter{redis: rdb, config: cfg.withDefaults(), now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := l.config.Prefix + ":" + key
	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.config.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	d := Decision{Allowed: count <= int64(l.config.Max), Count: count}
	if d.Allowed {
		return d, nil
	}
	ttl, err := l.redis.TTL(ctx, k).Result()
	if err != nil || ttl <= 0 {
		// key lost its expiry; restore it so the client is not blocked forever
		_ = l.redis.Expire(ctx, k, l.config.Window).Err()
		ttl = l.config.Window
	}
	d.RetryAt = l.now().Add(ttl)
	return d, nil
}

// MemoryLimiter is the single-instance fallback when no Redis is configured.
type MemoryLimiter struct {
	mu      sync.Mutex
	config  Config
	now     func() time.Time
	windows map[string]*window
}

type window struct {
	count   int64
	resetAt time.Time
}

func NewMemoryLimiter(cfg Config, now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{config: cfg.withDefaults(), now: now, windows: map[string]*window{}}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		l.sweep(now)
		w = &window{resetAt: now.Add(l.config.Window)}
		l.windows[key] = w
	}
	w.count++
	d := Decision{Allowed: w.count <= int64(l.config.Max), Count: w.count}
	if !d.Allowed {
		d.RetryAt = w.resetAt
	}
	return d, nil
}

func (l *MemoryLimiter) sweep(now time.Time) {
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
}
