package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/garyjia/access-portal/internal/application/port"
	"github.com/garyjia/access-portal/internal/domain/entity"
)

// KeyPrefix namespaces every cache key
const KeyPrefix = "blng-applications:"

// RedisCache stores entries as JSON with a native key TTL
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisCache creates a cache on client. A non-positive ttl means DefaultTTL.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{
		client: client,
		prefix: KeyPrefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (c *RedisCache) key(receipt string) string {
	return c.prefix + receipt
}

func (c *RedisCache) Save(ctx context.Context, app *entity.Application) error {
	if app == nil || app.Receipt == "" {
		return nil
	}
	return c.write(ctx, &port.CacheEntry{
		Receipt:  app.Receipt,
		Type:     app.Type,
		Status:   app.Status,
		Data:     app,
		CachedAt: c.now(),
	})
}

func (c *RedisCache) write(ctx context.Context, entry *port.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, c.key(entry.Receipt), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, receipt string) (*port.CacheEntry, bool, error) {
	data, err := c.client.Get(ctx, c.key(receipt)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var entry port.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &entry, true, nil
}

// Clear deletes every key under the cache prefix
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Purge is a no-op: redis expires keys itself
func (c *RedisCache) Purge(context.Context) (int, error) {
	return 0, nil
}

var _ port.ApplicationCache = (*RedisCache)(nil)
