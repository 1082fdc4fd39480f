package port

import (
	"context"
	"time"

	"github.com/garyjia/access-portal/internal/domain/entity"
)

// CacheEntry is one mirrored application
type CacheEntry struct {
	Receipt  string              `json:"receipt"`
	Type     entity.Type         `json:"type"`
	Status   entity.Status       `json:"status"`
	Data     *entity.Application `json:"data"`
	CachedAt time.Time           `json:"cached_at"`
}

// ApplicationCache is a best-effort mirror of recently touched applications.
// It is never authoritative; entries older than the TTL are invisible.
type ApplicationCache interface {
	Save(ctx context.Context, app *entity.Application) error
	// Get returns false when the receipt is absent or expired
	Get(ctx context.Context, receipt string) (*CacheEntry, bool, error)
	Clear(ctx context.Context) error
	// Purge drops expired entries and reports how many were removed
	Purge(ctx context.Context) (int, error)
}
