package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/garyjia/access-portal/internal/application/port"
)

// DefaultJanitorSchedule purges expired cache entries every ten minutes
const DefaultJanitorSchedule = "@every 10m"

// CacheJanitor periodically drops expired entries from the application cache
type CacheJanitor struct {
	cache    port.ApplicationCache
	schedule string
	logger   *zap.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewCacheJanitor creates a janitor; an empty schedule uses DefaultJanitorSchedule
func NewCacheJanitor(cache port.ApplicationCache, schedule string, logger *zap.Logger) *CacheJanitor {
	if schedule == "" {
		schedule = DefaultJanitorSchedule
	}
	return &CacheJanitor{
		cache:    cache,
		schedule: schedule,
		logger:   logger,
	}
}

// Name implements Worker
func (j *CacheJanitor) Name() string {
	return "cache-janitor"
}

// Start schedules the purge job
func (j *CacheJanitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cron != nil {
		return fmt.Errorf("cache janitor already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New()
	if _, err := c.AddFunc(j.schedule, func() { _, _ = j.RunOnce(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("invalid janitor schedule %q: %w", j.schedule, err)
	}
	c.Start()

	j.cron = c
	j.cancel = cancel
	j.logger.Info("Cache janitor scheduled", zap.String("schedule", j.schedule))
	return nil
}

// Stop cancels the schedule and waits for a running purge to finish
func (j *CacheJanitor) Stop() error {
	j.mu.Lock()
	c, cancel := j.cron, j.cancel
	j.cron, j.cancel = nil, nil
	j.mu.Unlock()

	if c == nil {
		return nil
	}
	cancel()
	<-c.Stop().Done()
	return nil
}

// RunOnce purges expired entries immediately
func (j *CacheJanitor) RunOnce(ctx context.Context) (int, error) {
	removed, err := j.cache.Purge(ctx)
	if err != nil {
		j.logger.Error("Cache purge failed", zap.Error(err))
		return 0, err
	}
	if removed > 0 {
		j.logger.Info("Expired cache entries purged", zap.Int("removed", removed))
	}
	return removed, nil
}

var _ Worker = (*CacheJanitor)(nil)
