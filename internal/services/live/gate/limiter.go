package gate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/siu-labs/livegate/internal/platform/id"
)

const rateKeyPrefix = "livegate:ratelimit:"

// Limiter admits or rejects one request for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter is a per-key token bucket: limit requests per window, with
// the bucket refilling evenly across the window.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	limiters map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter builds an in-process limiter; now defaults to time.Now.
func NewMemoryLimiter(limit int, window time.Duration, now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{limit: limit, window: window, now: now, limiters: map[string]*bucket{}}
}

// Allow consumes one token for key.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()
	key = strings.ToLower(key)

	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.limiters[key]
	if !ok {
		l.prune(now)
		b = &bucket{limiter: rate.NewLimiter(rate.Every(l.refillInterval()), l.limit)}
		l.limiters[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1), nil
}

// refillInterval is the time to regain one request. It never rounds down to
// zero, which rate.Every would treat as unlimited.
func (l *MemoryLimiter) refillInterval() time.Duration {
	return max(l.window/time.Duration(l.limit), time.Nanosecond)
}

// prune drops buckets idle for a full window; they would be full again.
func (l *MemoryLimiter) prune(now time.Time) {
	for key, b := range l.limiters {
		if now.Sub(b.lastSeen) >= l.window {
			delete(l.limiters, key)
		}
	}
}

// RedisLimiter is a sliding-window log kept in a sorted set per key.
type RedisLimiter struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter builds a Redis-backed limiter; now defaults to time.Now.
func NewRedisLimiter(client redis.UniversalClient, limit int, window time.Duration, now func() time.Time) *RedisLimiter {
	if now == nil {
		now = time.Now
	}
	return &RedisLimiter{client: client, limit: limit, window: window, now: now}
}

// Allow records the request and admits it when the window holds at most
// limit entries. Rejected requests are recorded too.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	member, err := id.NewID()
	if err != nil {
		return false, fmt.Errorf("rate limit member: %w", err)
	}
	now := l.now().UnixNano()
	key = rateKeyPrefix + strings.ToLower(key)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now-l.window.Nanoseconds()))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: member})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit pipeline: %w", err)
	}
	return count.Val() <= int64(l.limit), nil
}
