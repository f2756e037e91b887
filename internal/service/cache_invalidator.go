package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-project-tracker/pkg/cache"
	"github.com/noah-isme/edu-project-tracker/pkg/jobs"
)

// JobTypeCacheInvalidate identifies cache invalidation jobs.
const JobTypeCacheInvalidate = "cache.invalidate"

// DashboardCachePattern matches every cached dashboard payload.
var DashboardCachePattern = cache.Key("dashboard", "*")

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// CacheInvalidator drops derived payloads after writes. With a queue attached
// the work runs in the background, otherwise inline.
type CacheInvalidator struct {
	cache  cacheInvalidator
	queue  jobEnqueuer
	logger *zap.Logger
}

// NewCacheInvalidator constructs CacheInvalidator.
func NewCacheInvalidator(c cacheInvalidator, logger *zap.Logger) *CacheInvalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheInvalidator{cache: c, logger: logger}
}

// UseQueue routes invalidations through queue.
func (i *CacheInvalidator) UseQueue(queue jobEnqueuer) {
	i.queue = queue
}

// Handle is the jobs.Handler for invalidation jobs.
func (i *CacheInvalidator) Handle(ctx context.Context, job jobs.Job) error {
	pattern, ok := job.Payload.(string)
	if !ok || pattern == "" {
		return fmt.Errorf("job %s: invalid cache pattern payload", job.ID)
	}
	return i.cache.Invalidate(ctx, pattern)
}

// DashboardChanged schedules the dashboard cache for eviction.
func (i *CacheInvalidator) DashboardChanged(ctx context.Context) {
	if i == nil || i.cache == nil {
		return
	}
	if i.queue != nil {
		err := i.queue.TryEnqueue(jobs.Job{Type: JobTypeCacheInvalidate, Payload: DashboardCachePattern})
		if err == nil {
			return
		}
		i.logger.Warn("invalidation queue unavailable, evicting inline", zap.Error(err))
	}
	_ = i.cache.Invalidate(ctx, DashboardCachePattern)
}

type changeNotifier interface {
	DashboardChanged(ctx context.Context)
}

func notifyChanged(ctx context.Context, n changeNotifier) {
	if n == nil {
		return
	}
	n.DashboardChanged(ctx)
}
