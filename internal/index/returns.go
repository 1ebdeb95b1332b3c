package index

import "github.com/wonny/eqindex/internal/contracts"

// DailyReturn is the equal-weighted simple return from prior to current.
//
// Only tickers present in both sets contribute, each weighted by
// 1/len(current). Entries and exits add nothing to the day's return.
// A matched ticker with a non-positive prior close also adds nothing.
func DailyReturn(current, prior []contracts.RankedStock) float64 {
	if len(current) == 0 || len(prior) == 0 {
		return 0
	}

	priorClose := make(map[string]float64, len(prior))
	for _, p := range prior {
		priorClose[p.Ticker] = p.Close
	}

	weight := 1.0 / float64(len(current))
	total := 0.0
	for _, c := range current {
		prev, ok := priorClose[c.Ticker]
		if !ok || prev <= 0 {
			continue
		}
		total += weight * (c.Close/prev - 1)
	}
	return total
}

// Compound chains a daily return onto a cumulative return
func Compound(prevCumulative, daily float64) float64 {
	return (1+prevCumulative)*(1+daily) - 1
}

// ReturnSeries accumulates cumulative return across sequential dates.
// The zero value starts at 0.
type ReturnSeries struct {
	cumulative float64
}

// Next computes the point for date and advances the series
func (s *ReturnSeries) Next(date string, current, prior []contracts.RankedStock) contracts.PerformancePoint {
	daily := DailyReturn(current, prior)
	s.cumulative = Compound(s.cumulative, daily)
	return contracts.PerformancePoint{
		Date:             date,
		DailyReturn:      daily,
		CumulativeReturn: s.cumulative,
	}
}

// Cumulative returns the current cumulative return
func (s *ReturnSeries) Cumulative() float64 {
	return s.cumulative
}
