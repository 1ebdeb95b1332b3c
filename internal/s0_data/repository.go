package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/pkg/database"
)

// Repository persists stock metadata and daily observations
// ⭐ SSOT: stocks and daily_data are only touched here
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Tickers returns every ticker with metadata, sorted
func (r *Repository) Tickers(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT ticker FROM stocks ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("query tickers: %w", err)
	}

	tickers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan tickers: %w", err)
	}
	return tickers, nil
}

// UpsertStocks inserts or updates ticker metadata.
// Returns the number of rows affected.
func (r *Repository) UpsertStocks(ctx context.Context, stocks []contracts.Stock) (int, error) {
	if len(stocks) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, s := range stocks {
		batch.Queue(`
			INSERT INTO stocks (ticker, name, sector, exchange, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (ticker) DO UPDATE SET
				name = EXCLUDED.name,
				sector = EXCLUDED.sector,
				exchange = EXCLUDED.exchange,
				updated_at = NOW()
		`, s.Ticker, s.Name, s.Sector, s.Exchange)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	count := 0
	for range stocks {
		if _, err := br.Exec(); err != nil {
			return count, fmt.Errorf("upserting stock: %w", err)
		}
		count++
	}
	return count, nil
}

// InsertObservations stores daily bars, ignoring (date, ticker) pairs that already exist.
// Returns the number of rows actually inserted.
func (r *Repository) InsertObservations(ctx context.Context, rows []contracts.Observation) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, o := range rows {
		date, err := database.DateArg(o.Date)
		if err != nil {
			return 0, err
		}
		batch.Queue(`
			INSERT INTO daily_data (date, ticker, open, high, low, close, volume, market_cap)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (date, ticker) DO NOTHING
		`, date, o.Ticker, o.Open, o.High, o.Low, o.Close, o.Volume, o.MarketCap)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range rows {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("inserting observation: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// DistinctDates returns trading dates in range, ascending
func (r *Repository) DistinctDates(ctx context.Context, dr contracts.DateRange) ([]string, error) {
	start, err := database.DateArg(dr.Start)
	if err != nil {
		return nil, err
	}
	end, err := database.OptionalDateArg(dr.End)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT date
		FROM daily_data
		WHERE date >= $1 AND ($2::date IS NULL OR date <= $2::date)
		ORDER BY date
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query distinct dates: %w", err)
	}

	dates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var d time.Time
		err := row.Scan(&d)
		return database.FormatDate(d), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan distinct dates: %w", err)
	}
	return dates, nil
}

// TopByMarketCap returns the largest stocks on date
func (r *Repository) TopByMarketCap(ctx context.Context, date string, limit int) ([]contracts.RankedStock, error) {
	d, err := database.DateArg(date)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT ticker, market_cap, close
		FROM daily_data
		WHERE date = $1 AND market_cap IS NOT NULL
		ORDER BY market_cap DESC, ticker ASC
		LIMIT $2
	`, d, limit)
	if err != nil {
		return nil, fmt.Errorf("query top by market cap: %w", err)
	}

	ranked, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (contracts.RankedStock, error) {
		var s contracts.RankedStock
		err := row.Scan(&s.Ticker, &s.MarketCap, &s.Close)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan top by market cap: %w", err)
	}
	return ranked, nil
}

// ObservationBounds returns the earliest and latest observation dates.
// Both are "" when nothing is stored.
func (r *Repository) ObservationBounds(ctx context.Context) (string, string, error) {
	var earliest, latest *time.Time
	err := r.pool.QueryRow(ctx, `SELECT MIN(date), MAX(date) FROM daily_data`).Scan(&earliest, &latest)
	if err != nil {
		return "", "", fmt.Errorf("query observation bounds: %w", err)
	}
	if earliest == nil || latest == nil {
		return "", "", nil
	}
	return database.FormatDate(*earliest), database.FormatDate(*latest), nil
}

// CountStocks returns the number of tickers with metadata
func (r *Repository) CountStocks(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stocks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("query stock count: %w", err)
	}
	return count, nil
}

// Coverage counts observations per trading date in range
func (r *Repository) Coverage(ctx context.Context, dr contracts.DateRange) ([]contracts.DateCoverage, error) {
	start, err := database.DateArg(dr.Start)
	if err != nil {
		return nil, err
	}
	end, err := database.OptionalDateArg(dr.End)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT date, COUNT(*), COUNT(*) FILTER (WHERE volume > 0)
		FROM daily_data
		WHERE date >= $1 AND ($2::date IS NULL OR date <= $2::date)
		GROUP BY date
		ORDER BY date
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query coverage: %w", err)
	}

	coverage, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (contracts.DateCoverage, error) {
		var (
			d time.Time
			c contracts.DateCoverage
		)
		err := row.Scan(&d, &c.Observations, &c.WithVolume)
		c.Date = database.FormatDate(d)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan coverage: %w", err)
	}
	return coverage, nil
}

var (
	_ contracts.ObservationReader    = (*Repository)(nil)
	_ contracts.MarketDataRepository = (*Repository)(nil)
	_ contracts.CoverageReader       = (*Repository)(nil)
)
