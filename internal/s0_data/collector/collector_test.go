package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/external/yahoo"
	"github.com/wonny/eqindex/internal/memstore"
	"github.com/wonny/eqindex/pkg/logger"
)

type fakeSource struct {
	mu       sync.Mutex
	bars     map[string][]yahoo.Bar
	quotes   map[string]yahoo.Quote
	quoteErr error
	calls    int
}

func (f *fakeSource) DailyBars(_ context.Context, ticker string, _, _ time.Time) ([]yahoo.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	bars, ok := f.bars[ticker]
	if !ok {
		return nil, errors.New("404 not found")
	}
	return bars, nil
}

func (f *fakeSource) Quotes(context.Context, []string) (map[string]yahoo.Quote, error) {
	return f.quotes, f.quoteErr
}

type fakeUniverse struct {
	stocks []contracts.Stock
	err    error
}

func (f fakeUniverse) SP500(context.Context) ([]contracts.Stock, error) {
	return f.stocks, f.err
}

type capturePublisher struct{ events []string }

func (p *capturePublisher) Publish(t string, _ interface{}) { p.events = append(p.events, t) }

func bars(closes ...float64) []yahoo.Bar {
	out := make([]yahoo.Bar, len(closes))
	for i, c := range closes {
		out[i] = yahoo.Bar{Date: time.Date(2024, 1, 2+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), Close: c, Volume: 1000}
	}
	return out
}

func TestBuildObservations(t *testing.T) {
	barsByTicker := map[string][]yahoo.Bar{
		"AAPL": bars(100, 110),
		"MSFT": bars(200),
		"NONE": bars(5),
	}

	t.Run("shares and quoted cap", func(t *testing.T) {
		quotes := map[string]yahoo.Quote{
			"AAPL": {SharesOutstanding: 10},
			"MSFT": {MarketCap: 5000},
		}
		rows, estimated := BuildObservations(barsByTicker, quotes)
		assert.False(t, estimated)
		require.Len(t, rows, 3)
		assert.Equal(t, 1000.0, rows[0].MarketCap)
		assert.Equal(t, 1100.0, rows[1].MarketCap)
		assert.Equal(t, 5000.0, rows[2].MarketCap)
	})

	t.Run("estimate when most caps are missing", func(t *testing.T) {
		rows, estimated := BuildObservations(barsByTicker, nil)
		assert.True(t, estimated)
		require.Len(t, rows, 4)
		// AAPL: avg close 105 * avg volume 1000 * 100
		assert.Equal(t, 105.0*1000*100, rows[0].MarketCap)
		assert.Equal(t, rows[0].MarketCap, rows[1].MarketCap)
	})

	t.Run("no estimate at threshold", func(t *testing.T) {
		many := map[string][]yahoo.Bar{}
		quotes := map[string]yahoo.Quote{}
		for _, tk := range []string{"A", "B", "C", "D", "E"} {
			many[tk] = bars(1)
		}
		quotes["A"] = yahoo.Quote{MarketCap: 1}
		rows, estimated := BuildObservations(many, quotes)
		assert.False(t, estimated)
		assert.Len(t, rows, 1)
	})
}

func TestAcquireBootstrapsUniverse(t *testing.T) {
	store := memstore.New()
	source := &fakeSource{
		bars: map[string][]yahoo.Bar{"AAPL": bars(100, 101), "MSFT": bars(200, 202)},
		quotes: map[string]yahoo.Quote{
			"AAPL": {MarketCap: 3e12},
			"MSFT": {MarketCap: 2e12},
		},
	}
	universe := fakeUniverse{stocks: []contracts.Stock{
		{Ticker: "AAPL", Name: "Apple Inc."},
		{Ticker: "MSFT", Name: "Microsoft"},
		{Ticker: "GONE", Name: "Delisted Co"},
	}}
	events := &capturePublisher{}

	c := NewCollector(source, universe, store, 2, logger.Nop()).WithEvents(events)
	c.now = func() time.Time { return time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC) }

	result, err := c.Acquire(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, &contracts.AcquisitionResult{
		StartDate:          "2024-01-01",
		EndDate:            "2024-01-31",
		Tickers:            3,
		StocksUpserted:     3,
		ObservationsStored: 4,
		TickersFailed:      1,
	}, result)
	assert.Equal(t, []string{contracts.EventDataAcquired}, events.events)

	// second run reuses stored tickers and stores nothing new
	again, err := c.Acquire(context.Background(), 30)
	require.NoError(t, err)
	assert.Zero(t, again.StocksUpserted)
	assert.Zero(t, again.ObservationsStored)
}

func TestAcquireQuoteFailureFallsBackToEstimate(t *testing.T) {
	store := memstore.New()
	_, err := store.UpsertStocks(context.Background(), []contracts.Stock{{Ticker: "AAPL"}})
	require.NoError(t, err)

	source := &fakeSource{bars: map[string][]yahoo.Bar{"AAPL": bars(100)}, quoteErr: errors.New("401 unauthorized")}
	result, err := NewCollector(source, fakeUniverse{}, store, 1, logger.Nop()).Acquire(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, result.MarketCapEstimated)
	assert.Equal(t, 1, result.ObservationsStored)
}

func TestAcquireErrors(t *testing.T) {
	t.Run("invalid days", func(t *testing.T) {
		_, err := NewCollector(&fakeSource{}, fakeUniverse{}, memstore.New(), 1, logger.Nop()).Acquire(context.Background(), 0)
		assert.True(t, contracts.IsValidation(err))
	})

	t.Run("universe unavailable", func(t *testing.T) {
		_, err := NewCollector(&fakeSource{}, fakeUniverse{err: errors.New("timeout")}, memstore.New(), 1, logger.Nop()).Acquire(context.Background(), 5)
		assert.ErrorIs(t, err, contracts.ErrUpstreamUnavailable)
	})

	t.Run("every ticker fails", func(t *testing.T) {
		store := memstore.New()
		_, err := store.UpsertStocks(context.Background(), []contracts.Stock{{Ticker: "AAPL"}})
		require.NoError(t, err)
		_, err = NewCollector(&fakeSource{}, fakeUniverse{}, store, 1, logger.Nop()).Acquire(context.Background(), 5)
		assert.ErrorIs(t, err, contracts.ErrUpstreamUnavailable)
	})

	t.Run("cancelled", func(t *testing.T) {
		store := memstore.New()
		_, err := store.UpsertStocks(context.Background(), []contracts.Stock{{Ticker: "AAPL"}})
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = NewCollector(&fakeSource{}, fakeUniverse{}, store, 1, logger.Nop()).Acquire(ctx, 5)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
