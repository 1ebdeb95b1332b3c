package jobs

import (
	"context"

	"github.com/wonny/eqindex/pkg/logger"
)

// Sweeper is an in-process cache whose expired entries must be dropped explicitly
type Sweeper interface {
	Sweep() int
	Len() int
}

// CacheCleanupJob sweeps the in-process result cache.
// Only registered when Redis is unavailable; Redis expires keys itself.
type CacheCleanupJob struct {
	cache  Sweeper
	logger *logger.Logger
}

// NewCacheCleanupJob creates a new cache cleanup job
func NewCacheCleanupJob(cache Sweeper, log *logger.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		cache:  cache,
		logger: log.WithComponent("cache_cleanup"),
	}
}

func (j *CacheCleanupJob) Name() string { return "cache_cleanup" }

// Schedule runs at the top of every hour
func (j *CacheCleanupJob) Schedule() string { return "0 0 * * * *" }

func (j *CacheCleanupJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	removed := j.cache.Sweep()
	j.logger.WithFields(map[string]interface{}{
		"removed":   removed,
		"remaining": j.cache.Len(),
	}).Debug("Result cache swept")

	return nil
}
