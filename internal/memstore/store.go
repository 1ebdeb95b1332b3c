// Package memstore is an in-memory implementation of every store contract.
// It backs tests and local dry runs.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/wonny/eqindex/internal/contracts"
)

type obsKey struct {
	date   string
	ticker string
}

// Store keeps all tables in maps guarded by one mutex
type Store struct {
	mu           sync.RWMutex
	stocks       map[string]contracts.Stock
	observations map[obsKey]contracts.Observation
	compositions map[string][]contracts.CompositionEntry
	performance  map[string]contracts.PerformancePoint
	changes      []contracts.ChangeEvent
	failures     map[string]error
}

// New creates an empty store
func New() *Store {
	return &Store{
		stocks:       make(map[string]contracts.Stock),
		observations: make(map[obsKey]contracts.Observation),
		compositions: make(map[string][]contracts.CompositionEntry),
		performance:  make(map[string]contracts.PerformancePoint),
		failures:     make(map[string]error),
	}
}

// FailOn makes the named operation return err until cleared with a nil err
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) fail(op string) error {
	return s.failures[op]
}

func inRange(date string, r contracts.DateRange) bool {
	if date < r.Start {
		return false
	}
	return r.End == "" || date <= r.End
}

// --- market data ---

// Tickers returns every known ticker, sorted
func (s *Store) Tickers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("Tickers"); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(s.stocks))
	for t := range s.stocks {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// UpsertStocks inserts or replaces metadata
func (s *Store) UpsertStocks(_ context.Context, stocks []contracts.Stock) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpsertStocks"); err != nil {
		return 0, err
	}

	for _, st := range stocks {
		s.stocks[st.Ticker] = st
	}
	return len(stocks), nil
}

// InsertObservations ignores rows whose (date, ticker) already exists
func (s *Store) InsertObservations(_ context.Context, rows []contracts.Observation) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("InsertObservations"); err != nil {
		return 0, err
	}

	inserted := 0
	for _, row := range rows {
		k := obsKey{row.Date, row.Ticker}
		if _, exists := s.observations[k]; exists {
			continue
		}
		s.observations[k] = row
		inserted++
	}
	return inserted, nil
}

// DistinctDates returns observation dates in range, ascending
func (s *Store) DistinctDates(_ context.Context, r contracts.DateRange) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("DistinctDates"); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for k := range s.observations {
		if inRange(k.date, r) {
			seen[k.date] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

// TopByMarketCap returns the largest stocks on date, ties broken by ticker
func (s *Store) TopByMarketCap(_ context.Context, date string, limit int) ([]contracts.RankedStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("TopByMarketCap"); err != nil {
		return nil, err
	}

	var out []contracts.RankedStock
	for k, obs := range s.observations {
		if k.date == date {
			out = append(out, contracts.RankedStock{Ticker: obs.Ticker, MarketCap: obs.MarketCap, Close: obs.Close})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MarketCap != out[j].MarketCap {
			return out[i].MarketCap > out[j].MarketCap
		}
		return out[i].Ticker < out[j].Ticker
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountStocks returns the number of tickers with metadata
func (s *Store) CountStocks(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("CountStocks"); err != nil {
		return 0, err
	}
	return len(s.stocks), nil
}

// Coverage counts observations per date in range, ascending
func (s *Store) Coverage(_ context.Context, r contracts.DateRange) ([]contracts.DateCoverage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("Coverage"); err != nil {
		return nil, err
	}

	byDate := make(map[string]*contracts.DateCoverage)
	for k, obs := range s.observations {
		if !inRange(k.date, r) {
			continue
		}
		c, ok := byDate[k.date]
		if !ok {
			c = &contracts.DateCoverage{Date: k.date}
			byDate[k.date] = c
		}
		c.Observations++
		if obs.Volume > 0 {
			c.WithVolume++
		}
	}

	out := make([]contracts.DateCoverage, 0, len(byDate))
	for _, c := range byDate {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// --- index artifacts ---

// CountPerformanceRows counts performance points in range
func (s *Store) CountPerformanceRows(_ context.Context, r contracts.DateRange) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("CountPerformanceRows"); err != nil {
		return 0, err
	}

	n := 0
	for d := range s.performance {
		if inRange(d, r) {
			n++
		}
	}
	return n, nil
}

// TickersInComposition returns the constituents of date, sorted
func (s *Store) TickersInComposition(_ context.Context, date string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("TickersInComposition"); err != nil {
		return nil, err
	}

	entries := s.compositions[date]
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Ticker)
	}
	sort.Strings(out)
	return out, nil
}

// Atomically stages writes and applies them only if fn and every write succeed
func (s *Store) Atomically(ctx context.Context, fn func(w contracts.IndexWriter) error) error {
	tx := &stagedWriter{store: s}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("Commit"); err != nil {
		return err
	}

	byDate := make(map[string][]contracts.CompositionEntry)
	for _, e := range tx.compositions {
		byDate[e.Date] = append(byDate[e.Date], e)
	}
	for d, entries := range byDate {
		s.compositions[d] = entries
	}
	for _, p := range tx.performance {
		s.performance[p.Date] = p
	}
	s.changes = append(s.changes, tx.changes...)
	return nil
}

type stagedWriter struct {
	store        *Store
	compositions []contracts.CompositionEntry
	performance  []contracts.PerformancePoint
	changes      []contracts.ChangeEvent
}

func (w *stagedWriter) check(op string) error {
	w.store.mu.RLock()
	defer w.store.mu.RUnlock()
	return w.store.fail(op)
}

func (w *stagedWriter) AppendCompositions(_ context.Context, rows []contracts.CompositionEntry) error {
	if err := w.check("AppendCompositions"); err != nil {
		return err
	}
	w.compositions = append(w.compositions, rows...)
	return nil
}

func (w *stagedWriter) AppendPerformance(_ context.Context, rows []contracts.PerformancePoint) error {
	if err := w.check("AppendPerformance"); err != nil {
		return err
	}
	w.performance = append(w.performance, rows...)
	return nil
}

func (w *stagedWriter) AppendChanges(_ context.Context, rows []contracts.ChangeEvent) error {
	if err := w.check("AppendChanges"); err != nil {
		return err
	}
	w.changes = append(w.changes, rows...)
	return nil
}

// --- read models ---

// Performance returns points in range ordered by date
func (s *Store) Performance(_ context.Context, r contracts.DateRange) ([]contracts.PerformancePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("Performance"); err != nil {
		return nil, err
	}

	out := []contracts.PerformancePoint{}
	for d, p := range s.performance {
		if inRange(d, r) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// Composition joins constituents with metadata and the day's bar
func (s *Store) Composition(_ context.Context, date string) ([]contracts.CompositionDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("Composition"); err != nil {
		return nil, err
	}

	out := []contracts.CompositionDetail{}
	for _, e := range s.compositions[date] {
		st := s.stocks[e.Ticker]
		obs := s.observations[obsKey{date, e.Ticker}]
		out = append(out, contracts.CompositionDetail{
			Ticker:    e.Ticker,
			Name:      st.Name,
			Sector:    st.Sector,
			Weight:    e.Weight,
			Price:     obs.Close,
			MarketCap: obs.MarketCap,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MarketCap != out[j].MarketCap {
			return out[i].MarketCap > out[j].MarketCap
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out, nil
}

// Changes joins change events with metadata, ordered by (date, event, ticker)
func (s *Store) Changes(_ context.Context, r contracts.DateRange) ([]contracts.ChangeDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("Changes"); err != nil {
		return nil, err
	}

	out := []contracts.ChangeDetail{}
	for _, c := range s.changes {
		if !inRange(c.Date, r) {
			continue
		}
		st := s.stocks[c.Ticker]
		out = append(out, contracts.ChangeDetail{
			Date:   c.Date,
			Ticker: c.Ticker,
			Name:   st.Name,
			Sector: st.Sector,
			Event:  c.Event,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Event != out[j].Event {
			return out[i].Event < out[j].Event
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out, nil
}

// CompositionDates returns dates that have a stored composition, ascending
func (s *Store) CompositionDates(_ context.Context, r contracts.DateRange) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("CompositionDates"); err != nil {
		return nil, err
	}

	out := []string{}
	for d := range s.compositions {
		if inRange(d, r) {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out, nil
}

var (
	_ contracts.ObservationReader    = (*Store)(nil)
	_ contracts.MarketDataRepository = (*Store)(nil)
	_ contracts.IndexStore           = (*Store)(nil)
	_ contracts.IndexQueryRepository = (*Store)(nil)
	_ contracts.CoverageReader       = (*Store)(nil)
)
