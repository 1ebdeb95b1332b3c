package commands

import (
	"context"
	"fmt"

	"github.com/wonny/eqindex/internal/api/events"
	"github.com/wonny/eqindex/internal/cache"
	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/export"
	"github.com/wonny/eqindex/internal/external/wikipedia"
	"github.com/wonny/eqindex/internal/external/yahoo"
	"github.com/wonny/eqindex/internal/index"
	"github.com/wonny/eqindex/internal/methodology"
	"github.com/wonny/eqindex/internal/metrics"
	"github.com/wonny/eqindex/internal/s0_data"
	"github.com/wonny/eqindex/internal/s0_data/collector"
	"github.com/wonny/eqindex/internal/s0_data/quality"
	"github.com/wonny/eqindex/pkg/config"
	"github.com/wonny/eqindex/pkg/database"
	"github.com/wonny/eqindex/pkg/httputil"
	"github.com/wonny/eqindex/pkg/logger"
	"github.com/wonny/eqindex/pkg/redis"
)

// app holds every wired component shared by the commands
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *database.DB
	redis  *redis.Client
	memory *cache.Memory // nil when results are cached in Redis

	metrics  *metrics.Metrics
	dataRepo *s0_data.Repository
	repo     *index.Repository
	cache    *cache.ResultCache

	builder   *index.Builder
	service   *index.Service
	exporter  *export.Exporter
	collector *collector.Collector

	hub *events.Hub // nil unless withEventHub

	methodology     *methodology.Methodology // nil unless INDEX_METHODOLOGY is set
	methodologyHash string
}

type appOptions struct {
	eventHub bool
}

type appOption func(*appOptions)

// withEventHub publishes build and acquisition events to websocket subscribers
func withEventHub() appOption {
	return func(o *appOptions) { o.eventHub = true }
}

// newApp loads config and connects every dependency. Callers must Close it.
func newApp(opts ...appOption) (*app, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	var (
		m    *methodology.Methodology
		hash string
	)
	if cfg.MethodologyFile != "" {
		m, _, err = methodology.Load(cfg.MethodologyFile)
		if err != nil {
			return nil, fmt.Errorf("load methodology %s: %w", cfg.MethodologyFile, err)
		}
		if hash, err = methodology.Hash(m); err != nil {
			return nil, fmt.Errorf("hash methodology: %w", err)
		}
		m.Apply(cfg)
		log.WithFields(map[string]interface{}{
			"index_id": m.Meta.IndexID,
			"size":     cfg.Index.Size,
			"hash":     hash,
		}).Info("Methodology loaded")
	}

	db, err := database.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	a := &app{cfg: cfg, log: log, db: db, methodology: m, methodologyHash: hash}
	if cfg.MetricsEnabled {
		a.metrics = metrics.New()
	}

	a.redis, err = redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, caching results in process")
		a.redis = redis.Disabled()
	}

	var backend cache.Backend
	if a.redis.Enabled() {
		backend = redis.NewCache(a.redis, "eqindex")
	} else {
		a.memory = cache.NewMemory()
		backend = a.memory
	}
	a.cache = cache.New(backend, cfg.Redis.Expiry, log, a.metrics)

	var publisher contracts.EventPublisher = contracts.NopPublisher{}
	if o.eventHub {
		a.hub = events.NewHub(log)
		publisher = a.hub
	}

	a.dataRepo = s0_data.NewRepository(db.Pool)
	a.repo = index.NewRepository(db.Pool)

	a.builder = index.NewBuilder(
		index.NewSelector(a.dataRepo, cfg.Index.Size, log),
		a.dataRepo,
		a.repo,
		a.cache,
		log,
		index.WithMetrics(a.metrics),
		index.WithEvents(publisher),
	)
	a.service = index.NewService(a.repo, a.cache, log)
	a.exporter = export.NewExporter(a.service, cfg.ExportDir, log)

	httpClient := httputil.New(log)
	if a.redis.Enabled() {
		httpClient = httpClient.WithRateLimiter(redis.NewRateLimiter(a.redis, "eqindex"), redis.YahooRateLimit(cfg.Yahoo.RatePerSec))
	} else {
		httpClient = httpClient.WithLocalLimit(cfg.Yahoo.RatePerSec)
	}
	a.collector = collector.NewCollector(
		yahoo.NewClient(httpClient, cfg.Yahoo.BaseURL, log),
		wikipedia.NewClient(httputil.New(log), cfg.Wikipedia.SP500URL, log),
		a.dataRepo,
		cfg.Acquisition.Workers,
		log,
	).WithEvents(publisher)

	return a, nil
}

// qualityConfig returns the methodology thresholds, or defaults for the configured size
func (a *app) qualityConfig() quality.Config {
	if a.methodology != nil {
		return a.methodology.QualityConfig()
	}
	return quality.DefaultConfig(a.cfg.Index.Size)
}

// Close releases connections
func (a *app) Close() {
	a.cache.Wait()
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis")
	}
	a.db.Close()
}

// ping checks the database before a command does real work
func (a *app) ping(ctx context.Context) error {
	if err := a.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}
