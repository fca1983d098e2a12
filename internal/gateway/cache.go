package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores successful text answers. Only real answers are cached,
// never fallbacks.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// cacheKey hashes the operation, language and input so arbitrarily long
// article bodies map to fixed-size keys.
func cacheKey(op, lang, text string) string {
	sum := sha256.Sum256([]byte(op + "|" + lang + "|" + text))
	return "nexusmena:ai:" + op + ":" + hex.EncodeToString(sum[:])
}

// cached and store log and swallow cache failures; a broken cache only
// costs an extra provider call.
func (g *Gateway) cached(ctx context.Context, key string) (string, bool) {
	if g.cache == nil {
		return "", false
	}
	v, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		g.logger.Warn("cache read failed", "error", err)
		return "", false
	}
	return v, ok
}

func (g *Gateway) store(ctx context.Context, key, value string) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Set(ctx, key, value); err != nil {
		g.logger.Warn("cache write failed", "error", err)
	}
}

// ============================================================
// In-memory cache
// ============================================================

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryCache is a process-local TTL cache. Expired entries are dropped
// lazily on read and swept when the cache grows past its limit.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	limit   int
	now     func() time.Time
}

// NewMemoryCache returns a cache holding at most limit entries for ttl each.
func NewMemoryCache(ttl time.Duration, limit int) *MemoryCache {
	if limit <= 0 {
		limit = 1024
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		limit:   limit,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if len(c.entries) >= c.limit {
		for k, e := range c.entries {
			if now.After(e.expires) {
				delete(c.entries, k)
			}
		}
		// still full: evict an arbitrary entry
		if len(c.entries) >= c.limit {
			for k := range c.entries {
				delete(c.entries, k)
				break
			}
		}
	}
	c.entries[key] = memoryEntry{value: value, expires: now.Add(c.ttl)}
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ============================================================
// Redis cache
// ============================================================

// RedisCache shares answers across server instances.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache connects to addr and verifies the connection with PING.
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("gateway: connecting to redis at %s: %w", addr, err)
	}
	return &RedisCache{rdb: rdb, ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	if err := c.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
