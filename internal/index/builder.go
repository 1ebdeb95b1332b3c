package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/metrics"
	"github.com/wonny/eqindex/pkg/logger"
)

// Cached resources derived from a build
const (
	ResourcePerformance = "index_performance"
	ResourceComposition = "index_composition"
	ResourceChanges     = "composition_changes"
)

// Invalidator drops cached reads of a resource
type Invalidator interface {
	InvalidateResources(ctx context.Context, resources ...string)
}

// Builder turns observations over a date range into compositions,
// a performance series and a change ledger.
//
// Builds are expected to run one at a time. The already-built check is a
// plain read before the write transaction, so two concurrent builds of
// overlapping ranges can both pass it.
type Builder struct {
	selector *Selector
	dates    contracts.ObservationReader
	store    contracts.IndexStore
	cache    Invalidator
	events   contracts.EventPublisher
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
}

// BuilderOption customizes a Builder
type BuilderOption func(*Builder)

// WithClock overrides the clock used to resolve an open end date
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

// WithEvents publishes a completion event after each successful build
func WithEvents(p contracts.EventPublisher) BuilderOption {
	return func(b *Builder) { b.events = p }
}

// WithMetrics records build outcomes
func WithMetrics(m *metrics.Metrics) BuilderOption {
	return func(b *Builder) { b.metrics = m }
}

// NewBuilder creates a builder. cache may be nil.
func NewBuilder(selector *Selector, observations contracts.ObservationReader, store contracts.IndexStore, cache Invalidator, log *logger.Logger, opts ...BuilderOption) *Builder {
	b := &Builder{
		selector: selector,
		dates:    observations,
		store:    store,
		cache:    cache,
		events:   contracts.NopPublisher{},
		logger:   log.WithComponent("index_builder"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs one build over r. It either persists the whole range or nothing.
func (b *Builder) Build(ctx context.Context, r contracts.DateRange) (*contracts.BuildSummary, error) {
	start := time.Now()

	summary, err := b.build(ctx, r)
	b.metrics.ObserveBuild(buildStatus(err), time.Since(start))
	if err != nil {
		return nil, err
	}

	b.events.Publish(contracts.EventIndexBuilt, summary)
	return summary, nil
}

func buildStatus(err error) string {
	switch {
	case err == nil:
		return metrics.BuildSuccess
	case errors.Is(err, contracts.ErrAlreadyBuilt):
		return metrics.BuildAlreadyBuilt
	case contracts.IsValidation(err):
		return metrics.BuildInvalid
	default:
		return metrics.BuildFailed
	}
}

func (b *Builder) build(ctx context.Context, r contracts.DateRange) (*contracts.BuildSummary, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	r = r.Resolve(b.now())
	if err := r.Validate(); err != nil {
		return nil, err
	}

	log := b.logger.WithFields(map[string]interface{}{
		"start_date": r.Start,
		"end_date":   r.End,
	})

	// An inception date has no performance row, so a range that only reaches
	// back to an earlier build's first date is not seen as built.
	existing, err := b.store.CountPerformanceRows(ctx, r)
	if err != nil {
		return nil, &contracts.UpstreamError{Op: "count performance rows", Err: err}
	}
	if existing > 0 {
		log.WithField("existing_rows", existing).Warn("Index already built for range")
		return nil, &contracts.AlreadyBuiltError{Range: r, ExistingRows: existing}
	}

	dates, err := b.dates.DistinctDates(ctx, r)
	if err != nil {
		return nil, &contracts.UpstreamError{Op: "list trading dates", Err: err}
	}

	result, err := b.compute(ctx, dates)
	if err != nil {
		return nil, err
	}

	if len(result.compositions) > 0 {
		err = b.store.Atomically(ctx, func(w contracts.IndexWriter) error {
			if err := w.AppendCompositions(ctx, result.compositions); err != nil {
				return fmt.Errorf("append compositions: %w", err)
			}
			if err := w.AppendPerformance(ctx, result.performance); err != nil {
				return fmt.Errorf("append performance: %w", err)
			}
			if err := w.AppendChanges(ctx, result.changes); err != nil {
				return fmt.Errorf("append changes: %w", err)
			}
			return nil
		})
		if err != nil {
			return nil, &contracts.UpstreamError{Op: "persist build", Err: err}
		}
	}

	if b.cache != nil {
		b.cache.InvalidateResources(ctx, ResourcePerformance, ResourceComposition, ResourceChanges)
	}

	log.WithFields(map[string]interface{}{
		"trading_dates":       len(dates),
		"performance_points":  len(result.performance),
		"composition_changes": len(result.changes),
	}).Info("Index build completed")

	return &contracts.BuildSummary{
		StartDate:          r.Start,
		EndDate:            r.End,
		TradingDays:        len(result.performance),
		CompositionChanges: len(result.changes),
	}, nil
}

type buildResult struct {
	compositions []contracts.CompositionEntry
	performance  []contracts.PerformancePoint
	changes      []contracts.ChangeEvent
}

// compute walks dates in order. Each date is compared with the previous
// non-empty composition held in memory; the first one only seeds it.
func (b *Builder) compute(ctx context.Context, dates []string) (*buildResult, error) {
	result := &buildResult{
		performance: []contracts.PerformancePoint{},
		changes:     []contracts.ChangeEvent{},
	}

	var prior []contracts.RankedStock
	series := &ReturnSeries{}

	for _, date := range dates {
		ranked, err := b.selector.Select(ctx, date)
		if err != nil {
			return nil, &contracts.UpstreamError{Op: "select composition", Err: err}
		}
		if len(ranked) == 0 {
			continue
		}

		result.compositions = append(result.compositions, EqualWeight(date, ranked)...)

		if prior != nil {
			result.performance = append(result.performance, series.Next(date, ranked, prior))
			result.changes = append(result.changes, Detect(date, tickersOf(ranked), tickersOf(prior))...)
		}
		prior = ranked
	}

	return result, nil
}
