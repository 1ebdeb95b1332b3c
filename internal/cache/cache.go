package cache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wonny/eqindex/internal/metrics"
	"github.com/wonny/eqindex/pkg/logger"
)

// Backend stores opaque payloads by key
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// writeTimeout bounds a background cache write
const writeTimeout = 5 * time.Second

// ResultCache memoizes read results as JSON.
// Backend failures are logged and treated as misses; they never fail a read.
// Writes run in the background so a slow backend never delays a read.
type ResultCache struct {
	backend Backend
	ttl     time.Duration
	logger  *logger.Logger
	metrics *metrics.Metrics

	// generation moves on every invalidation; a write loaded under an older
	// generation is dropped instead of resurrecting stale data
	generation atomic.Uint64
	// writes are held shared while in flight and exclusively by invalidation
	writes  sync.RWMutex
	pending sync.WaitGroup
}

// New creates a result cache. A nil backend disables caching.
func New(backend Backend, ttl time.Duration, log *logger.Logger, m *metrics.Metrics) *ResultCache {
	return &ResultCache{
		backend: backend,
		ttl:     ttl,
		logger:  log.WithComponent("cache"),
		metrics: m,
	}
}

// Enabled reports whether a backend is configured
func (c *ResultCache) Enabled() bool {
	return c != nil && c.backend != nil
}

// Fetch returns the cached result for (resource, operation, args) or calls load
// and stores its result
func Fetch[T any](ctx context.Context, c *ResultCache, resource, operation string, args Args, load func(ctx context.Context) (T, error)) (T, error) {
	if !c.Enabled() {
		return load(ctx)
	}

	key, err := Key(resource, operation, args)
	if err != nil {
		c.logger.WithError(err).Warn("Cache key build failed, bypassing cache")
		c.metrics.CacheRequest(resource, metrics.CacheError)
		return load(ctx)
	}

	gen := c.generation.Load()
	data, found, err := c.backend.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.WithError(err).WithField("key", key).Warn("Cache get failed")
		c.metrics.CacheRequest(resource, metrics.CacheError)
	case !found:
		c.metrics.CacheRequest(resource, metrics.CacheMiss)
	default:
		var cached T
		decodeErr := json.Unmarshal(data, &cached)
		if decodeErr == nil {
			c.metrics.CacheRequest(resource, metrics.CacheHit)
			return cached, nil
		}
		c.logger.WithError(decodeErr).WithField("key", key).Warn("Cache decode failed")
		c.metrics.CacheRequest(resource, metrics.CacheError)
	}

	result, err := load(ctx)
	if err != nil {
		return result, err
	}

	data, err = json.Marshal(result)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache encode failed")
		return result, nil
	}

	c.pending.Add(1)
	go c.store(context.WithoutCancel(ctx), gen, key, data)
	return result, nil
}

func (c *ResultCache) store(ctx context.Context, gen uint64, key string, data []byte) {
	defer c.pending.Done()

	c.writes.RLock()
	defer c.writes.RUnlock()
	if c.generation.Load() != gen {
		c.logger.WithField("key", key).Debug("Cache write dropped after invalidation")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache set failed")
	}
}

// Wait blocks until background writes started by earlier reads have finished.
// It must not race with new reads.
func (c *ResultCache) Wait() {
	if c.Enabled() {
		c.pending.Wait()
	}
}

// InvalidateResources drops every cached read of the given resources.
// Failures are logged only.
func (c *ResultCache) InvalidateResources(ctx context.Context, resources ...string) {
	if !c.Enabled() {
		return
	}

	c.generation.Add(1)
	c.writes.Lock()
	defer c.writes.Unlock()

	for _, resource := range resources {
		if err := c.backend.InvalidatePrefix(ctx, ResourcePrefix(resource)); err != nil {
			c.logger.WithError(err).WithField("resource", resource).Warn("Cache invalidation failed")
			continue
		}
		c.logger.WithField("resource", resource).Debug("Cache invalidated")
	}
}
