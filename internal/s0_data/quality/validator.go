package quality

import (
	"context"
	"fmt"

	"github.com/wonny/eqindex/internal/contracts"
)

// Gate checks stored observations before an index build
type Gate struct {
	store  contracts.CoverageReader
	config Config
}

// Config holds quality gate thresholds
type Config struct {
	MinPriceCoverage  float64 // share of known tickers with a bar on the date
	MinVolumeCoverage float64 // share of known tickers with a traded volume
	IndexSize         int     // dates with fewer observations yield a short composition
}

// DefaultConfig returns the thresholds used by the CLI
func DefaultConfig(indexSize int) Config {
	return Config{
		MinPriceCoverage:  0.95,
		MinVolumeCoverage: 0.90,
		IndexSize:         indexSize,
	}
}

// DateQuality is the assessment of one trading date
type DateQuality struct {
	Date         string             `json:"date"`
	Coverage     map[string]float64 `json:"coverage"`
	Score        float64            `json:"score"`
	Constituents int                `json:"constituents"`
	Issues       []string           `json:"issues,omitempty"`
}

// Report is the assessment of a date range
type Report struct {
	TotalStocks int           `json:"total_stocks"`
	Dates       []DateQuality `json:"dates"`
	Passed      bool          `json:"passed"`
}

// Failing returns the dates that raised at least one issue
func (r *Report) Failing() []DateQuality {
	var out []DateQuality
	for _, d := range r.Dates {
		if len(d.Issues) > 0 {
			out = append(out, d)
		}
	}
	return out
}

// NewGate creates a new Gate instance
func NewGate(store contracts.CoverageReader, config Config) *Gate {
	return &Gate{
		store:  store,
		config: config,
	}
}

// Check assesses every trading date in r.
// ⭐ SSOT: a range passes only when no date raised an issue
func (g *Gate) Check(ctx context.Context, r contracts.DateRange) (*Report, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	total, err := g.store.CountStocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("count stocks: %w", err)
	}

	coverage, err := g.store.Coverage(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("read coverage: %w", err)
	}

	report := &Report{
		TotalStocks: total,
		Dates:       make([]DateQuality, 0, len(coverage)),
		Passed:      true,
	}
	for _, c := range coverage {
		dq := g.assess(total, c)
		if len(dq.Issues) > 0 {
			report.Passed = false
		}
		report.Dates = append(report.Dates, dq)
	}

	return report, nil
}

func (g *Gate) assess(total int, c contracts.DateCoverage) DateQuality {
	cov := map[string]float64{
		"price":  ratio(c.Observations, total),
		"volume": ratio(c.WithVolume, total),
	}

	dq := DateQuality{
		Date:         c.Date,
		Coverage:     cov,
		Score:        calculateScore(cov),
		Constituents: min(c.Observations, g.config.IndexSize),
	}

	if cov["price"] < g.config.MinPriceCoverage {
		dq.Issues = append(dq.Issues, fmt.Sprintf("price coverage %.2f below %.2f", cov["price"], g.config.MinPriceCoverage))
	}
	if cov["volume"] < g.config.MinVolumeCoverage {
		dq.Issues = append(dq.Issues, fmt.Sprintf("volume coverage %.2f below %.2f", cov["volume"], g.config.MinVolumeCoverage))
	}
	if c.Observations < g.config.IndexSize {
		dq.Issues = append(dq.Issues, fmt.Sprintf("only %d stocks for index size %d", c.Observations, g.config.IndexSize))
	}

	return dq
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	r := float64(n) / float64(total)
	if r > 1 {
		return 1
	}
	return r
}

// calculateScore calculates overall quality score using weighted average
func calculateScore(coverage map[string]float64) float64 {
	weights := map[string]float64{
		"price":  0.6,
		"volume": 0.4,
	}

	score := 0.0
	for key, weight := range weights {
		if cov, exists := coverage[key]; exists {
			score += cov * weight
		}
	}

	return score
}
