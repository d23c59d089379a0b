package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/siu-labs/livegate/internal/services/live/chain"
)

const decisionKeyPrefix = "livegate:decision:"

// MemoryCache is an in-process DecisionCache with a fixed TTL.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[chain.CacheKey]memoryEntry
}

type memoryEntry struct {
	decision  chain.Decision
	expiresAt time.Time
}

// NewMemoryCache builds a cache; now defaults to time.Now.
func NewMemoryCache(ttl time.Duration, now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{ttl: ttl, now: now, entries: map[chain.CacheKey]memoryEntry{}}
}

// Get returns a live entry for key.
func (c *MemoryCache) Get(_ context.Context, key chain.CacheKey) (chain.Decision, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return chain.Decision{}, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return chain.Decision{}, false, nil
	}
	return entry.decision, true, nil
}

// Set stores decision until the TTL passes and drops expired entries.
func (c *MemoryCache) Set(_ context.Context, key chain.CacheKey, decision chain.Decision) error {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = memoryEntry{decision: decision, expiresAt: now.Add(c.ttl)}
	return nil
}

// RedisCache stores decisions as JSON values with SET EX.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCache builds a Redis-backed DecisionCache.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get reads a decision; a missing key is a miss.
func (c *RedisCache) Get(ctx context.Context, key chain.CacheKey) (chain.Decision, bool, error) {
	raw, err := c.client.Get(ctx, decisionKeyPrefix+key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return chain.Decision{}, false, nil
	}
	if err != nil {
		return chain.Decision{}, false, fmt.Errorf("get decision: %w", err)
	}
	var decision chain.Decision
	if err := json.Unmarshal(raw, &decision); err != nil {
		return chain.Decision{}, false, fmt.Errorf("decode decision: %w", err)
	}
	return decision, true, nil
}

// Set writes a decision with the cache TTL.
func (c *RedisCache) Set(ctx context.Context, key chain.CacheKey, decision chain.Decision) error {
	raw, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}
	if err := c.client.Set(ctx, decisionKeyPrefix+key.String(), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set decision: %w", err)
	}
	return nil
}
