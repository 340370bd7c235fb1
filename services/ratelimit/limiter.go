package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Limiter counts attempts per key in fixed windows.
type Limiter interface {
	// Allow records an attempt for key and reports whether it is within the limit.
	Allow(ctx context.Context, key string) (bool, error)
}

var nowFunc = time.Now // mockable

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps counters in process. Use RedisLimiter when running more than one instance.
type MemoryLimiter struct {
	limit  int
	period time.Duration

	mu      sync.Mutex
	windows map[string]*window
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter(limit int, period time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		period:  period,
		windows: make(map[string]*window),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := nowFunc()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		if len(l.windows) > 10000 {
			l.sweep(now)
		}
		w = &window{resetAt: now.Add(l.period)}
		l.windows[key] = w
	}
	w.count++
	return w.count <= l.limit, nil
}

// sweep drops expired windows. Callers hold l.mu.
func (l *MemoryLimiter) sweep(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}

type redisCounter interface {
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// RedisLimiter shares counters between instances through Redis.
type RedisLimiter struct {
	client redisCounter
	prefix string
	limit  int
	period time.Duration
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client *redis.Client, prefix string, limit int, period time.Duration) *RedisLimiter {
	return newRedisLimiter(client, prefix, limit, period)
}

func newRedisLimiter(client redisCounter, prefix string, limit int, period time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, period: period}
}

// Allow opens the window and counts the attempt in one transaction, so a counter never
// lives without its expiry.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	key = l.prefix + key
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, l.period)
		incr = pipe.Incr(ctx, key)
		return nil
	})
	// SET NX replies nil when the window is already open
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, errors.Wrap(err, "counting attempt")
	}
	n, err := incr.Result()
	if err != nil {
		return false, errors.Wrap(err, "counting attempt")
	}
	return n <= int64(l.limit), nil
}
