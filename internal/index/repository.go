package index

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/pkg/database"
)

// Repository persists and reads derived index artifacts
// ⭐ SSOT: index_composition, index_performance and composition_changes are only touched here
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func rangeArgs(r contracts.DateRange) (time.Time, *time.Time, error) {
	start, err := database.DateArg(r.Start)
	if err != nil {
		return time.Time{}, nil, err
	}
	end, err := database.OptionalDateArg(r.End)
	if err != nil {
		return time.Time{}, nil, err
	}
	return start, end, nil
}

// CountPerformanceRows counts performance points in range
func (r *Repository) CountPerformanceRows(ctx context.Context, dr contracts.DateRange) (int, error) {
	start, end, err := rangeArgs(dr)
	if err != nil {
		return 0, err
	}

	var count int
	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM index_performance
		WHERE date >= $1 AND ($2::date IS NULL OR date <= $2::date)
	`, start, end).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count performance rows: %w", err)
	}
	return count, nil
}

// TickersInComposition returns the constituents of date, sorted
func (r *Repository) TickersInComposition(ctx context.Context, date string) ([]string, error) {
	d, err := database.DateArg(date)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT ticker FROM index_composition WHERE date = $1 ORDER BY ticker`, d)
	if err != nil {
		return nil, fmt.Errorf("query composition tickers: %w", err)
	}

	tickers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan composition tickers: %w", err)
	}
	return tickers, nil
}

// Atomically runs fn inside one transaction
func (r *Repository) Atomically(ctx context.Context, fn func(w contracts.IndexWriter) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&txWriter{tx: tx})
	})
}

// txWriter writes index artifacts through an open transaction
type txWriter struct {
	tx pgx.Tx
}

// AppendCompositions deletes existing rows for the affected dates then copies the new ones
func (w *txWriter) AppendCompositions(ctx context.Context, rows []contracts.CompositionEntry) error {
	if len(rows) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var dates []time.Time
	copyRows := make([][]interface{}, 0, len(rows))
	for _, e := range rows {
		d, err := database.DateArg(e.Date)
		if err != nil {
			return err
		}
		if _, ok := seen[e.Date]; !ok {
			seen[e.Date] = struct{}{}
			dates = append(dates, d)
		}
		copyRows = append(copyRows, []interface{}{d, e.Ticker, e.Weight})
	}

	if _, err := w.tx.Exec(ctx, `DELETE FROM index_composition WHERE date = ANY($1)`, dates); err != nil {
		return fmt.Errorf("delete compositions: %w", err)
	}

	_, err := w.tx.CopyFrom(ctx,
		pgx.Identifier{"index_composition"},
		[]string{"date", "ticker", "weight"},
		pgx.CopyFromRows(copyRows),
	)
	if err != nil {
		return fmt.Errorf("copy compositions: %w", err)
	}
	return nil
}

// AppendPerformance copies performance points
func (w *txWriter) AppendPerformance(ctx context.Context, rows []contracts.PerformancePoint) error {
	if len(rows) == 0 {
		return nil
	}

	copyRows := make([][]interface{}, 0, len(rows))
	for _, p := range rows {
		d, err := database.DateArg(p.Date)
		if err != nil {
			return err
		}
		copyRows = append(copyRows, []interface{}{d, p.DailyReturn, p.CumulativeReturn})
	}

	_, err := w.tx.CopyFrom(ctx,
		pgx.Identifier{"index_performance"},
		[]string{"date", "daily_return", "cumulative_return"},
		pgx.CopyFromRows(copyRows),
	)
	if err != nil {
		return fmt.Errorf("copy performance: %w", err)
	}
	return nil
}

// AppendChanges copies change events
func (w *txWriter) AppendChanges(ctx context.Context, rows []contracts.ChangeEvent) error {
	if len(rows) == 0 {
		return nil
	}

	copyRows := make([][]interface{}, 0, len(rows))
	for _, c := range rows {
		d, err := database.DateArg(c.Date)
		if err != nil {
			return err
		}
		copyRows = append(copyRows, []interface{}{d, c.Ticker, string(c.Event)})
	}

	_, err := w.tx.CopyFrom(ctx,
		pgx.Identifier{"composition_changes"},
		[]string{"date", "ticker", "event"},
		pgx.CopyFromRows(copyRows),
	)
	if err != nil {
		return fmt.Errorf("copy changes: %w", err)
	}
	return nil
}

// Performance returns points in range ordered by date
func (r *Repository) Performance(ctx context.Context, dr contracts.DateRange) ([]contracts.PerformancePoint, error) {
	start, end, err := rangeArgs(dr)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT date, daily_return, cumulative_return
		FROM index_performance
		WHERE date >= $1 AND ($2::date IS NULL OR date <= $2::date)
		ORDER BY date
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query performance: %w", err)
	}

	points, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (contracts.PerformancePoint, error) {
		var p contracts.PerformancePoint
		var d time.Time
		err := row.Scan(&d, &p.DailyReturn, &p.CumulativeReturn)
		p.Date = database.FormatDate(d)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan performance: %w", err)
	}
	return points, nil
}

// Composition joins constituents of date with metadata and the day's bar
func (r *Repository) Composition(ctx context.Context, date string) ([]contracts.CompositionDetail, error) {
	d, err := database.DateArg(date)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT ic.ticker,
		       COALESCE(s.name, ''),
		       COALESCE(s.sector, ''),
		       ic.weight,
		       COALESCE(dd.close, 0),
		       COALESCE(dd.market_cap, 0)
		FROM index_composition ic
		LEFT JOIN stocks s ON s.ticker = ic.ticker
		LEFT JOIN daily_data dd ON dd.ticker = ic.ticker AND dd.date = ic.date
		WHERE ic.date = $1
		ORDER BY dd.market_cap DESC NULLS LAST, ic.ticker
	`, d)
	if err != nil {
		return nil, fmt.Errorf("query composition: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (contracts.CompositionDetail, error) {
		var c contracts.CompositionDetail
		err := row.Scan(&c.Ticker, &c.Name, &c.Sector, &c.Weight, &c.Price, &c.MarketCap)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan composition: %w", err)
	}
	return entries, nil
}

// Changes joins change events in range with metadata, ordered by (date, event, ticker)
func (r *Repository) Changes(ctx context.Context, dr contracts.DateRange) ([]contracts.ChangeDetail, error) {
	start, end, err := rangeArgs(dr)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT cc.date, cc.ticker, COALESCE(s.name, ''), COALESCE(s.sector, ''), cc.event
		FROM composition_changes cc
		LEFT JOIN stocks s ON s.ticker = cc.ticker
		WHERE cc.date >= $1 AND ($2::date IS NULL OR cc.date <= $2::date)
		ORDER BY cc.date, cc.event, cc.ticker
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}

	changes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (contracts.ChangeDetail, error) {
		var c contracts.ChangeDetail
		var d time.Time
		var event string
		err := row.Scan(&d, &c.Ticker, &c.Name, &c.Sector, &event)
		c.Date = database.FormatDate(d)
		c.Event = contracts.EventType(event)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan changes: %w", err)
	}
	return changes, nil
}

// CompositionDates returns dates that have a stored composition, ascending
func (r *Repository) CompositionDates(ctx context.Context, dr contracts.DateRange) ([]string, error) {
	start, end, err := rangeArgs(dr)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT date
		FROM index_composition
		WHERE date >= $1 AND ($2::date IS NULL OR date <= $2::date)
		ORDER BY date
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query composition dates: %w", err)
	}

	dates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var d time.Time
		err := row.Scan(&d)
		return database.FormatDate(d), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan composition dates: %w", err)
	}
	return dates, nil
}

// LatestPerformanceDate returns the newest built date, or "" when nothing is built
func (r *Repository) LatestPerformanceDate(ctx context.Context) (string, error) {
	var latest *time.Time
	if err := r.pool.QueryRow(ctx, `SELECT MAX(date) FROM index_performance`).Scan(&latest); err != nil {
		return "", fmt.Errorf("query latest performance date: %w", err)
	}
	if latest == nil {
		return "", nil
	}
	return database.FormatDate(*latest), nil
}

var (
	_ contracts.IndexStore           = (*Repository)(nil)
	_ contracts.IndexQueryRepository = (*Repository)(nil)
)
