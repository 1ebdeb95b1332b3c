package contracts

import "context"

// ⭐ SSOT: store contracts are defined here only

// ObservationReader reads daily observations
type ObservationReader interface {
	// DistinctDates returns dates with observations in range, ascending
	DistinctDates(ctx context.Context, r DateRange) ([]string, error)
	// TopByMarketCap returns up to limit stocks for date, largest market cap first
	TopByMarketCap(ctx context.Context, date string, limit int) ([]RankedStock, error)
}

// MarketDataRepository is the write side used by acquisition
type MarketDataRepository interface {
	Tickers(ctx context.Context) ([]string, error)
	UpsertStocks(ctx context.Context, stocks []Stock) (int, error)
	// InsertObservations ignores rows whose (date, ticker) already exists
	InsertObservations(ctx context.Context, rows []Observation) (int, error)
}

// IndexWriter persists derived index artifacts
type IndexWriter interface {
	// AppendCompositions replaces existing rows for every date present in rows
	AppendCompositions(ctx context.Context, rows []CompositionEntry) error
	AppendPerformance(ctx context.Context, rows []PerformancePoint) error
	AppendChanges(ctx context.Context, rows []ChangeEvent) error
}

// IndexStore is what a build needs from storage
type IndexStore interface {
	CountPerformanceRows(ctx context.Context, r DateRange) (int, error)
	TickersInComposition(ctx context.Context, date string) ([]string, error)
	// Atomically runs fn in one transaction; any error rolls everything back
	Atomically(ctx context.Context, fn func(w IndexWriter) error) error
}

// IndexQueryRepository serves the read APIs
type IndexQueryRepository interface {
	Performance(ctx context.Context, r DateRange) ([]PerformancePoint, error)
	// Composition is ordered by market cap descending
	Composition(ctx context.Context, date string) ([]CompositionDetail, error)
	// Changes is ordered by (date, event, ticker)
	Changes(ctx context.Context, r DateRange) ([]ChangeDetail, error)
	CompositionDates(ctx context.Context, r DateRange) ([]string, error)
	TickersInComposition(ctx context.Context, date string) ([]string, error)
}

// CoverageReader reports how complete stored observations are
type CoverageReader interface {
	CountStocks(ctx context.Context) (int, error)
	// Coverage returns one entry per trading date in range, ascending
	Coverage(ctx context.Context, r DateRange) ([]DateCoverage, error)
}
