package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/pkg/logger"
)

// DefaultSize is the number of constituents selected per date
const DefaultSize = 100

// Selector picks the top-K stocks by market cap for a trading date
type Selector struct {
	store  contracts.ObservationReader
	size   int
	logger *logger.Logger
}

// NewSelector creates a selector. A non-positive size falls back to DefaultSize.
func NewSelector(store contracts.ObservationReader, size int, log *logger.Logger) *Selector {
	if size <= 0 {
		size = DefaultSize
	}
	return &Selector{
		store:  store,
		size:   size,
		logger: log.WithComponent("selector"),
	}
}

// Size returns K
func (s *Selector) Size() int {
	return s.size
}

// Select returns up to K stocks for date, market cap descending then ticker ascending.
// A date without observations yields an empty slice and no error.
func (s *Selector) Select(ctx context.Context, date string) ([]contracts.RankedStock, error) {
	ranked, err := s.store.TopByMarketCap(ctx, date, s.size)
	if err != nil {
		return nil, fmt.Errorf("failed to rank stocks for %s: %w", date, err)
	}

	if len(ranked) == 0 {
		s.logger.WithField("date", date).Warn("No observations for date, skipping")
		return nil, nil
	}

	sortRanked(ranked)
	if len(ranked) > s.size {
		ranked = ranked[:s.size]
	}
	return ranked, nil
}

// Weights returns the equal-weighted composition for date
func (s *Selector) Weights(ctx context.Context, date string) ([]contracts.CompositionEntry, error) {
	ranked, err := s.Select(ctx, date)
	if err != nil {
		return nil, err
	}
	return EqualWeight(date, ranked), nil
}

// EqualWeight assigns 1/len(ranked) to every stock
func EqualWeight(date string, ranked []contracts.RankedStock) []contracts.CompositionEntry {
	if len(ranked) == 0 {
		return nil
	}

	weight := 1.0 / float64(len(ranked))
	entries := make([]contracts.CompositionEntry, len(ranked))
	for i, r := range ranked {
		entries[i] = contracts.CompositionEntry{Date: date, Ticker: r.Ticker, Weight: weight}
	}
	return entries
}

func sortRanked(ranked []contracts.RankedStock) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].MarketCap != ranked[j].MarketCap {
			return ranked[i].MarketCap > ranked[j].MarketCap
		}
		return ranked[i].Ticker < ranked[j].Ticker
	})
}

func tickersOf(ranked []contracts.RankedStock) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Ticker
	}
	return out
}
