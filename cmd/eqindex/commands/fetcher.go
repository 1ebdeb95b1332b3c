package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/export"
	"github.com/wonny/eqindex/internal/s0_data/quality"
)

// fetcherCmd represents the fetcher command
var fetcherCmd = &cobra.Command{
	Use:   "fetcher",
	Short: "Market data acquisition",
	Long: `Acquire market data from external sources.

Sources:
  Wikipedia      - S&P 500 constituents (first run only)
  Yahoo Finance  - daily OHLCV bars and market caps

Example:
  go run ./cmd/eqindex fetcher acquire
  go run ./cmd/eqindex fetcher acquire --days 90`,
}

// fetcherAcquireCmd represents the acquire subcommand
var fetcherAcquireCmd = &cobra.Command{
	Use:   "acquire",
	Short: "Download and store recent daily bars",
	RunE:  runFetcherAcquire,
}

// fetcherQualityCmd represents the quality subcommand
var fetcherQualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Check stored observation coverage per trading date",
	Long: `Report price and volume coverage for each trading date in a range.

Exits with an error when any date falls below the thresholds or holds
fewer stocks than INDEX_SIZE.

Example:
  go run ./cmd/eqindex fetcher quality --start 2024-01-02 --end 2024-01-31`,
	RunE: runFetcherQuality,
}

var (
	fetcherDays  int
	qualityStart string
	qualityEnd   string
)

func init() {
	rootCmd.AddCommand(fetcherCmd)
	fetcherCmd.AddCommand(fetcherAcquireCmd)
	fetcherCmd.AddCommand(fetcherQualityCmd)

	fetcherAcquireCmd.Flags().IntVar(&fetcherDays, "days", 0, "look-back window in calendar days (default DATA_ACQUISITION_DAYS)")

	fetcherQualityCmd.Flags().StringVar(&qualityStart, "start", "", "start date (YYYY-MM-DD)")
	fetcherQualityCmd.Flags().StringVar(&qualityEnd, "end", "", "end date (YYYY-MM-DD, default open)")
	_ = fetcherQualityCmd.MarkFlagRequired("start")
}

func runFetcherAcquire(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	days := fetcherDays
	if days == 0 {
		days = a.cfg.Acquisition.Days
	}

	PrintHeader("Market Data Acquisition")
	PrintKeyValue("Days", strconv.Itoa(days), 12)
	PrintKeyValue("Workers", strconv.Itoa(a.cfg.Acquisition.Workers), 12)
	PrintSeparator()

	start := time.Now()
	result, err := a.collector.Acquire(cmd.Context(), days)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	PrintKeyValue("Period", result.StartDate+" ~ "+result.EndDate, 22)
	PrintKeyValue("Tickers", strconv.Itoa(result.Tickers), 22)
	PrintKeyValue("Stocks upserted", strconv.Itoa(result.StocksUpserted), 22)
	PrintKeyValue("Observations stored", strconv.Itoa(result.ObservationsStored), 22)
	PrintKeyValue("Tickers failed", strconv.Itoa(result.TickersFailed), 22)
	if result.MarketCapEstimated {
		PrintWarning("Market caps were estimated from price and volume")
	}
	PrintSuccess(fmt.Sprintf("Acquisition completed in %.2fs", time.Since(start).Seconds()))
	return nil
}

func runFetcherQuality(cmd *cobra.Command, args []string) error {
	r, err := contracts.NewDateRange(qualityStart, qualityEnd)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	gate := quality.NewGate(a.dataRepo, a.qualityConfig())
	report, err := gate.Check(cmd.Context(), r)
	if err != nil {
		return err
	}

	PrintHeader("Data Quality")
	PrintKeyValue("Range", r.String(), 12)
	PrintKeyValue("Stocks", strconv.Itoa(report.TotalStocks), 12)
	PrintKeyValue("Dates", strconv.Itoa(len(report.Dates)), 12)

	widths := []int{12, 10, 10, 8, 6}
	PrintTableHeader([]string{"Date", "Price", "Volume", "Score", "K"}, widths)
	for _, d := range report.Dates {
		PrintTableRow([]string{
			d.Date,
			export.FormatPercentage(d.Coverage["price"], 1),
			export.FormatPercentage(d.Coverage["volume"], 1),
			export.FormatNumber(d.Score, 3),
			strconv.Itoa(d.Constituents),
		}, widths)
	}

	if report.Passed {
		PrintSuccess("All dates passed")
		return nil
	}

	failing := report.Failing()
	for _, d := range failing {
		for _, issue := range d.Issues {
			PrintWarning(d.Date + ": " + issue)
		}
	}
	return fmt.Errorf("%d of %d dates failed quality checks", len(failing), len(report.Dates))
}
