package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/memstore"
	"github.com/wonny/eqindex/pkg/logger"
)

const floatTolerance = 1e-12

var fixedNow = time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)

func obs(date, ticker string, close, marketCap float64) contracts.Observation {
	return contracts.Observation{Date: date, Ticker: ticker, Open: close, High: close, Low: close, Close: close, Volume: 1000, MarketCap: marketCap}
}

// seedScenario loads three trading days where MSFT drops out on D2 and GOOG enters.
func seedScenario(t *testing.T, store *memstore.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.UpsertStocks(ctx, []contracts.Stock{
		{Ticker: "AAPL", Name: "Apple Inc.", Sector: "Information Technology"},
		{Ticker: "MSFT", Name: "Microsoft", Sector: "Information Technology"},
		{Ticker: "GOOG", Name: "Alphabet Inc.", Sector: "Communication Services"},
	})
	require.NoError(t, err)

	_, err = store.InsertObservations(ctx, []contracts.Observation{
		obs("2024-01-02", "AAPL", 100, 3e12),
		obs("2024-01-02", "MSFT", 200, 2e12),
		obs("2024-01-02", "GOOG", 50, 1e12),

		obs("2024-01-03", "AAPL", 110, 3e12),
		obs("2024-01-03", "MSFT", 210, 1e12),
		obs("2024-01-03", "GOOG", 55, 2e12),

		obs("2024-01-04", "AAPL", 121, 3e12),
		obs("2024-01-04", "MSFT", 220, 1e12),
		obs("2024-01-04", "GOOG", 55, 2e12),
	})
	require.NoError(t, err)
}

type recordingInvalidator struct {
	resources []string
}

func (r *recordingInvalidator) InvalidateResources(_ context.Context, resources ...string) {
	r.resources = append(r.resources, resources...)
}

type recordingPublisher struct {
	events []string
}

func (p *recordingPublisher) Publish(eventType string, _ interface{}) {
	p.events = append(p.events, eventType)
}

func newTestBuilder(store *memstore.Store, size int, opts ...BuilderOption) *Builder {
	log := logger.Nop()
	opts = append([]BuilderOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewBuilder(NewSelector(store, size, log), store, store, nil, log, opts...)
}
