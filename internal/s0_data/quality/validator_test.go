package quality

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/memstore"
)

func seed(t *testing.T) *memstore.Store {
	t.Helper()
	ctx := context.Background()
	s := memstore.New()

	_, err := s.UpsertStocks(ctx, []contracts.Stock{
		{Ticker: "AAPL"}, {Ticker: "MSFT"}, {Ticker: "GOOG"}, {Ticker: "AMZN"},
	})
	require.NoError(t, err)

	_, err = s.InsertObservations(ctx, []contracts.Observation{
		{Date: "2024-01-02", Ticker: "AAPL", Close: 100, Volume: 10, MarketCap: 400},
		{Date: "2024-01-02", Ticker: "MSFT", Close: 100, Volume: 10, MarketCap: 300},
		{Date: "2024-01-02", Ticker: "GOOG", Close: 100, Volume: 10, MarketCap: 200},
		{Date: "2024-01-02", Ticker: "AMZN", Close: 100, Volume: 10, MarketCap: 100},
		{Date: "2024-01-03", Ticker: "AAPL", Close: 101, Volume: 10, MarketCap: 404},
		{Date: "2024-01-03", Ticker: "MSFT", Close: 99, Volume: 0, MarketCap: 297},
	})
	require.NoError(t, err)
	return s
}

func TestGate_Check(t *testing.T) {
	gate := NewGate(seed(t), DefaultConfig(3))

	report, err := gate.Check(context.Background(), contracts.DateRange{Start: "2024-01-01", End: "2024-01-31"})
	require.NoError(t, err)

	assert.Equal(t, 4, report.TotalStocks)
	assert.False(t, report.Passed)
	require.Len(t, report.Dates, 2)

	full := report.Dates[0]
	assert.Equal(t, "2024-01-02", full.Date)
	assert.InDelta(t, 1.0, full.Coverage["price"], 1e-9)
	assert.InDelta(t, 1.0, full.Score, 1e-9)
	assert.Equal(t, 3, full.Constituents)
	assert.Empty(t, full.Issues)

	thin := report.Dates[1]
	assert.Equal(t, "2024-01-03", thin.Date)
	assert.InDelta(t, 0.5, thin.Coverage["price"], 1e-9)
	assert.InDelta(t, 0.25, thin.Coverage["volume"], 1e-9)
	assert.InDelta(t, 0.5*0.6+0.25*0.4, thin.Score, 1e-9)
	assert.Equal(t, 2, thin.Constituents)
	assert.Len(t, thin.Issues, 3)

	failing := report.Failing()
	require.Len(t, failing, 1)
	assert.Equal(t, "2024-01-03", failing[0].Date)
}

func TestGate_CheckPassing(t *testing.T) {
	gate := NewGate(seed(t), DefaultConfig(3))

	report, err := gate.Check(context.Background(), contracts.DateRange{Start: "2024-01-02", End: "2024-01-02"})
	require.NoError(t, err)

	assert.True(t, report.Passed)
	assert.Len(t, report.Dates, 1)
	assert.Empty(t, report.Failing())
}

func TestGate_CheckEmptyStore(t *testing.T) {
	gate := NewGate(memstore.New(), DefaultConfig(100))

	report, err := gate.Check(context.Background(), contracts.DateRange{Start: "2024-01-02"})
	require.NoError(t, err)

	assert.Zero(t, report.TotalStocks)
	assert.Empty(t, report.Dates)
	assert.True(t, report.Passed)
}

func TestGate_CheckErrors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name string
		op   string
		r    contracts.DateRange
	}{
		{name: "invalid range", r: contracts.DateRange{Start: "2024-02-01", End: "2024-01-01"}},
		{name: "count failure", op: "CountStocks", r: contracts.DateRange{Start: "2024-01-01"}},
		{name: "coverage failure", op: "Coverage", r: contracts.DateRange{Start: "2024-01-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seed(t)
			if tt.op != "" {
				s.FailOn(tt.op, boom)
			}

			_, err := NewGate(s, DefaultConfig(3)).Check(context.Background(), tt.r)
			require.Error(t, err)
			if tt.op != "" {
				assert.ErrorIs(t, err, boom)
			}
		})
	}
}

func TestRatio(t *testing.T) {
	assert.Zero(t, ratio(3, 0))
	assert.InDelta(t, 0.5, ratio(1, 2), 1e-9)
	assert.Equal(t, 1.0, ratio(5, 2))
}
