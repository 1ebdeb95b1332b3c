package methodology

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// ValidationError names the offending YAML field
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks all required constraints
func Validate(m *Methodology) error {
	// === Meta ===
	if m.Meta.IndexID == "" {
		return ValidationError{"meta.index_id", "required"}
	}

	// === Construction ===
	if m.Construction.Size <= 0 {
		return ValidationError{"construction.size", "must be > 0"}
	}
	if m.Construction.Ranking != RankingMarketCap {
		return ValidationError{"construction.ranking", fmt.Sprintf("must be '%s'", RankingMarketCap)}
	}
	if m.Construction.Weighting != WeightingEqual {
		return ValidationError{"construction.weighting", fmt.Sprintf("must be '%s'", WeightingEqual)}
	}

	// === Acquisition ===
	if m.Acquisition.Days <= 0 {
		return ValidationError{"acquisition.days", "must be > 0"}
	}
	if m.Acquisition.Workers <= 0 {
		return ValidationError{"acquisition.workers", "must be > 0"}
	}
	if m.Acquisition.Schedule != "" {
		if _, err := scheduleParser.Parse(m.Acquisition.Schedule); err != nil {
			return ValidationError{"acquisition.schedule", err.Error()}
		}
	}

	// === Quality ===
	if err := validateRatio(m.Quality.MinPriceCoverage); err != nil {
		return ValidationError{"quality.min_price_coverage", err.Error()}
	}
	if err := validateRatio(m.Quality.MinVolumeCoverage); err != nil {
		return ValidationError{"quality.min_volume_coverage", err.Error()}
	}

	return nil
}

func validateRatio(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("must be in [0, 1], got %v", v)
	}
	return nil
}
