package index

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/eqindex/internal/cache"
	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/pkg/logger"
)

// Service serves read-only views of built index artifacts through the result cache
type Service struct {
	queries contracts.IndexQueryRepository
	cache   *cache.ResultCache
	logger  *logger.Logger
	now     func() time.Time
}

// NewService creates the read service. rc may be nil.
func NewService(queries contracts.IndexQueryRepository, rc *cache.ResultCache, log *logger.Logger) *Service {
	return &Service{
		queries: queries,
		cache:   rc,
		logger:  log.WithComponent("index_service"),
		now:     time.Now,
	}
}

func (s *Service) resolve(r contracts.DateRange) (contracts.DateRange, error) {
	if err := r.Validate(); err != nil {
		return contracts.DateRange{}, err
	}
	return r.Resolve(s.now()), nil
}

// GetPerformance returns performance points in r ordered by date
func (s *Service) GetPerformance(ctx context.Context, r contracts.DateRange) (*contracts.PerformanceResponse, error) {
	r, err := s.resolve(r)
	if err != nil {
		return nil, err
	}

	args := cache.Args{"start_date": r.Start, "end_date": r.End}
	return cache.Fetch(ctx, s.cache, ResourcePerformance, "get_performance", args,
		func(ctx context.Context) (*contracts.PerformanceResponse, error) {
			points, err := s.queries.Performance(ctx, r)
			if err != nil {
				return nil, fmt.Errorf("failed to load performance: %w", err)
			}
			if points == nil {
				points = []contracts.PerformancePoint{}
			}
			return &contracts.PerformanceResponse{StartDate: r.Start, EndDate: r.End, Performances: points}, nil
		})
}

// GetComposition returns the constituents of date ordered by market cap descending
func (s *Service) GetComposition(ctx context.Context, date string) (*contracts.CompositionResponse, error) {
	if _, err := contracts.ParseDate("date", date); err != nil {
		return nil, err
	}

	args := cache.Args{"date": date}
	return cache.Fetch(ctx, s.cache, ResourceComposition, "get_composition", args,
		func(ctx context.Context) (*contracts.CompositionResponse, error) {
			entries, err := s.queries.Composition(ctx, date)
			if err != nil {
				return nil, fmt.Errorf("failed to load composition: %w", err)
			}
			if entries == nil {
				entries = []contracts.CompositionDetail{}
			}
			return &contracts.CompositionResponse{Date: date, Compositions: entries}, nil
		})
}

// GetChanges returns change events in r ordered by (date, event, ticker)
func (s *Service) GetChanges(ctx context.Context, r contracts.DateRange) (*contracts.ChangesResponse, error) {
	r, err := s.resolve(r)
	if err != nil {
		return nil, err
	}

	args := cache.Args{"start_date": r.Start, "end_date": r.End}
	return cache.Fetch(ctx, s.cache, ResourceChanges, "get_changes", args,
		func(ctx context.Context) (*contracts.ChangesResponse, error) {
			changes, err := s.queries.Changes(ctx, r)
			if err != nil {
				return nil, fmt.Errorf("failed to load changes: %w", err)
			}
			if changes == nil {
				changes = []contracts.ChangeDetail{}
			}
			return &contracts.ChangesResponse{StartDate: r.Start, EndDate: r.End, Changes: changes}, nil
		})
}

// CompositionSnapshot is one dated composition, used by exports
type CompositionSnapshot struct {
	Date         string
	Compositions []contracts.CompositionDetail
}

// GetCompositionHistory returns every stored composition in r, oldest first
func (s *Service) GetCompositionHistory(ctx context.Context, r contracts.DateRange) ([]CompositionSnapshot, error) {
	r, err := s.resolve(r)
	if err != nil {
		return nil, err
	}

	dates, err := s.queries.CompositionDates(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to list composition dates: %w", err)
	}

	history := make([]CompositionSnapshot, 0, len(dates))
	for _, date := range dates {
		resp, err := s.GetComposition(ctx, date)
		if err != nil {
			return nil, err
		}
		history = append(history, CompositionSnapshot{Date: date, Compositions: resp.Compositions})
	}
	return history, nil
}

// VerifyReport compares the stored change ledger with one replayed from compositions
type VerifyReport struct {
	StartDate  string                  `json:"start_date"`
	EndDate    string                  `json:"end_date"`
	Dates      int                     `json:"dates"`
	Expected   int                     `json:"expected"`
	Stored     int                     `json:"stored"`
	Missing    []contracts.ChangeEvent `json:"missing"`
	Unexpected []contracts.ChangeEvent `json:"unexpected"`
}

// Consistent reports whether the stored ledger matches the replay
func (v *VerifyReport) Consistent() bool {
	return len(v.Missing) == 0 && len(v.Unexpected) == 0
}

// Verify replays the change ledger for r and diffs it with what is stored.
// The replay starts at r's first stored composition, so r should match a build range.
func (s *Service) Verify(ctx context.Context, r contracts.DateRange) (*VerifyReport, error) {
	r, err := s.resolve(r)
	if err != nil {
		return nil, err
	}

	dates, err := s.queries.CompositionDates(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to list composition dates: %w", err)
	}

	expected, err := ReplayChanges(ctx, s.queries, dates)
	if err != nil {
		return nil, err
	}

	storedDetails, err := s.queries.Changes(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to load changes: %w", err)
	}
	stored := make([]contracts.ChangeEvent, len(storedDetails))
	for i, d := range storedDetails {
		stored[i] = contracts.ChangeEvent{Date: d.Date, Ticker: d.Ticker, Event: d.Event}
	}

	missing, unexpected := DiffLedgers(expected, stored)
	report := &VerifyReport{
		StartDate:  r.Start,
		EndDate:    r.End,
		Dates:      len(dates),
		Expected:   len(expected),
		Stored:     len(stored),
		Missing:    missing,
		Unexpected: unexpected,
	}

	if !report.Consistent() {
		s.logger.WithFields(map[string]interface{}{
			"start_date": r.Start,
			"end_date":   r.End,
			"missing":    len(missing),
			"unexpected": len(unexpected),
		}).Warn("Stored change ledger differs from replay")
	}
	return report, nil
}
