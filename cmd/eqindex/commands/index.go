package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/export"
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build and query the equal-weighted index",
	Long: `Build the index over a date range and inspect the stored artifacts.

Subcommands:
  build        - Build the index over a range (once per range)
  performance  - Daily and cumulative returns
  composition  - Constituents on a date
  changes      - ENTRY/EXIT events
  verify       - Replay stored compositions against the change ledger
  status       - Data and index coverage

Example:
  go run ./cmd/eqindex index build --start 2024-01-02 --end 2024-01-31
  go run ./cmd/eqindex index performance --start 2024-01-02
  go run ./cmd/eqindex index composition --date 2024-01-03`,
}

var (
	indexStart string
	indexEnd   string
	indexDate  string
	indexJSON  bool
)

var (
	indexBuildCmd = &cobra.Command{
		Use:   "build",
		Short: "Build the index over a date range",
		RunE:  runIndexBuild,
	}

	indexPerformanceCmd = &cobra.Command{
		Use:   "performance",
		Short: "Show daily and cumulative returns",
		RunE:  runIndexPerformance,
	}

	indexCompositionCmd = &cobra.Command{
		Use:   "composition",
		Short: "Show the constituents on a date",
		RunE:  runIndexComposition,
	}

	indexChangesCmd = &cobra.Command{
		Use:   "changes",
		Short: "Show ENTRY/EXIT events",
		RunE:  runIndexChanges,
	}

	indexVerifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Check the change ledger against stored compositions",
		RunE:  runIndexVerify,
	}

	indexStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show observation and index coverage",
		RunE:  runIndexStatus,
	}
)

func init() {
	rootCmd.AddCommand(indexCmd)

	for _, c := range []*cobra.Command{indexBuildCmd, indexPerformanceCmd, indexChangesCmd, indexVerifyCmd} {
		c.Flags().StringVar(&indexStart, "start", "", "start date (YYYY-MM-DD)")
		c.Flags().StringVar(&indexEnd, "end", "", "end date (YYYY-MM-DD, default today)")
		_ = c.MarkFlagRequired("start")
		indexCmd.AddCommand(c)
	}

	indexCompositionCmd.Flags().StringVar(&indexDate, "date", "", "trading date (YYYY-MM-DD)")
	_ = indexCompositionCmd.MarkFlagRequired("date")
	indexCmd.AddCommand(indexCompositionCmd)
	indexCmd.AddCommand(indexStatusCmd)

	indexCmd.PersistentFlags().BoolVar(&indexJSON, "json", false, "print JSON instead of a table")
}

func flagRange() (contracts.DateRange, error) {
	return contracts.NewDateRange(indexStart, indexEnd)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	r, err := flagRange()
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.builder.Build(cmd.Context(), r)
	if err != nil {
		PrintError(err.Error())
		return err
	}
	if indexJSON {
		return printJSON(summary)
	}

	PrintHeader("Index Build")
	PrintKeyValue("Period", summary.StartDate+" ~ "+summary.EndDate, 20)
	PrintKeyValue("Trading days", strconv.Itoa(summary.TradingDays), 20)
	PrintKeyValue("Composition changes", strconv.Itoa(summary.CompositionChanges), 20)
	PrintSeparator()
	PrintSuccess("Index built")
	return nil
}

func runIndexPerformance(cmd *cobra.Command, args []string) error {
	r, err := flagRange()
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.service.GetPerformance(cmd.Context(), r)
	if err != nil {
		return err
	}
	if indexJSON {
		return printJSON(resp)
	}

	PrintHeader(fmt.Sprintf("Index Performance %s ~ %s", resp.StartDate, resp.EndDate))
	if len(resp.Performances) == 0 {
		PrintWarning("No performance data in range")
		return nil
	}

	widths := []int{12, 14, 14}
	PrintTableHeader([]string{"Date", "Daily", "Cumulative"}, widths)
	for _, p := range resp.Performances {
		PrintTableRow([]string{
			p.Date,
			export.FormatPercentage(p.DailyReturn, 2),
			export.FormatPercentage(p.CumulativeReturn, 2),
		}, widths)
	}
	return nil
}

func runIndexComposition(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.service.GetComposition(cmd.Context(), indexDate)
	if err != nil {
		return err
	}
	if indexJSON {
		return printJSON(resp)
	}

	PrintHeader(fmt.Sprintf("Index Composition %s (%d constituents)", resp.Date, len(resp.Compositions)))
	if len(resp.Compositions) == 0 {
		PrintWarning("No composition stored for date")
		return nil
	}

	widths := []int{8, 30, 24, 8, 12, 12}
	PrintTableHeader([]string{"Ticker", "Name", "Sector", "Weight", "Price", "Market Cap"}, widths)
	for _, c := range resp.Compositions {
		PrintTableRow([]string{
			c.Ticker,
			truncate(c.Name, widths[1]),
			truncate(c.Sector, widths[2]),
			export.FormatPercentage(c.Weight, 2),
			export.FormatNumber(c.Price, 2),
			export.FormatMarketCap(c.MarketCap),
		}, widths)
	}
	return nil
}

func runIndexChanges(cmd *cobra.Command, args []string) error {
	r, err := flagRange()
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.service.GetChanges(cmd.Context(), r)
	if err != nil {
		return err
	}
	if indexJSON {
		return printJSON(resp)
	}

	PrintHeader(fmt.Sprintf("Composition Changes %s ~ %s", resp.StartDate, resp.EndDate))
	if len(resp.Changes) == 0 {
		PrintInfo("No composition changes in range")
		return nil
	}

	widths := []int{12, 8, 6, 30}
	PrintTableHeader([]string{"Date", "Ticker", "Event", "Name"}, widths)
	for _, c := range resp.Changes {
		PrintTableRow([]string{c.Date, c.Ticker, string(c.Event), truncate(c.Name, widths[3])}, widths)
	}
	return nil
}

func runIndexVerify(cmd *cobra.Command, args []string) error {
	r, err := flagRange()
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.service.Verify(cmd.Context(), r)
	if err != nil {
		return err
	}
	if indexJSON {
		return printJSON(report)
	}

	PrintHeader(fmt.Sprintf("Change Ledger Verification %s ~ %s", report.StartDate, report.EndDate))
	PrintKeyValue("Composition dates", strconv.Itoa(report.Dates), 18)
	PrintKeyValue("Expected events", strconv.Itoa(report.Expected), 18)
	PrintKeyValue("Stored events", strconv.Itoa(report.Stored), 18)
	PrintSeparator()

	if report.Consistent() {
		PrintSuccess("Change ledger matches stored compositions")
		return nil
	}

	for _, e := range report.Missing {
		PrintError(fmt.Sprintf("missing   %s %s %s", e.Date, e.Ticker, e.Event))
	}
	for _, e := range report.Unexpected {
		PrintError(fmt.Sprintf("unexpected %s %s %s", e.Date, e.Ticker, e.Event))
	}
	return fmt.Errorf("change ledger inconsistent: %d missing, %d unexpected", len(report.Missing), len(report.Unexpected))
}

func runIndexStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	tickers, err := a.dataRepo.Tickers(ctx)
	if err != nil {
		return err
	}
	first, last, err := a.dataRepo.ObservationBounds(ctx)
	if err != nil {
		return err
	}
	latest, err := a.repo.LatestPerformanceDate(ctx)
	if err != nil {
		return err
	}

	PrintHeader("Index Status")
	PrintKeyValue("Tickers", strconv.Itoa(len(tickers)), 22)
	PrintKeyValue("Observations", orNone(first)+" ~ "+orNone(last), 22)
	PrintKeyValue("Latest performance", orNone(latest), 22)
	PrintKeyValue("Index size", strconv.Itoa(a.cfg.Index.Size), 22)
	if a.methodology != nil {
		PrintKeyValue("Methodology", a.methodology.Meta.IndexID+" v"+a.methodology.Meta.Version, 22)
		PrintKeyValue("Methodology hash", a.methodologyHash[:12], 22)
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
