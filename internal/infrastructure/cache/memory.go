// Package cache mirrors recently touched applications so status lookups
// can degrade gracefully when the store is unavailable.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/garyjia/access-portal/internal/application/port"
	"github.com/garyjia/access-portal/internal/domain/entity"
)

// DefaultTTL is how long an entry stays visible after its last write
const DefaultTTL = 24 * time.Hour

// MemoryCache is a process-local ApplicationCache
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*port.CacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// MemoryOption configures a MemoryCache
type MemoryOption func(*MemoryCache)

// WithTTL overrides DefaultTTL
func WithTTL(ttl time.Duration) MemoryOption {
	return func(c *MemoryCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewMemoryCache creates an empty cache
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]*port.CacheEntry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryCache) Save(_ context.Context, app *entity.Application) error {
	if app == nil || app.Receipt == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[app.Receipt] = &port.CacheEntry{
		Receipt:  app.Receipt,
		Type:     app.Type,
		Status:   app.Status,
		Data:     app.Clone(),
		CachedAt: c.now(),
	}
	return nil
}

// Get purges expired entries before looking up receipt
func (c *MemoryCache) Get(_ context.Context, receipt string) (*port.CacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeLocked()

	entry, ok := c.entries[receipt]
	if !ok {
		return nil, false, nil
	}
	return copyEntry(entry), true, nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]*port.CacheEntry)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Purge(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeLocked(), nil
}

func (c *MemoryCache) purgeLocked() int {
	cutoff := c.now().Add(-c.ttl)
	removed := 0
	for key, entry := range c.entries {
		if !entry.CachedAt.After(cutoff) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func copyEntry(e *port.CacheEntry) *port.CacheEntry {
	cp := *e
	cp.Data = e.Data.Clone()
	return &cp
}

var _ port.ApplicationCache = (*MemoryCache)(nil)
