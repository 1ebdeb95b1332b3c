package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/pkg/logger"
)

// Acquirer downloads market data for the last days calendar days
type Acquirer interface {
	Acquire(ctx context.Context, days int) (*contracts.AcquisitionResult, error)
}

// DataAcquisitionJob refreshes market data after the US close
// ⭐ SSOT: the acquisition schedule is owned by this job
type DataAcquisitionJob struct {
	collector Acquirer
	days      int
	schedule  string
	logger    *logger.Logger
}

// NewDataAcquisitionJob creates a new data acquisition job
func NewDataAcquisitionJob(col Acquirer, days int, schedule string, log *logger.Logger) *DataAcquisitionJob {
	return &DataAcquisitionJob{
		collector: col,
		days:      days,
		schedule:  schedule,
		logger:    log,
	}
}

// Name returns the job name
func (j *DataAcquisitionJob) Name() string {
	return "data_acquisition"
}

// Schedule returns the configured cron schedule (default weekdays at 6 PM)
func (j *DataAcquisitionJob) Schedule() string {
	return j.schedule
}

// Run executes the data acquisition
func (j *DataAcquisitionJob) Run(ctx context.Context) error {
	j.logger.WithField("days", j.days).Info("Starting scheduled data acquisition")

	result, err := j.collector.Acquire(ctx, j.days)
	if err != nil {
		return fmt.Errorf("acquire market data: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"tickers":      result.Tickers,
		"observations": result.ObservationsStored,
		"failed":       result.TickersFailed,
	}).Info("Scheduled data acquisition completed successfully")
	return nil
}
