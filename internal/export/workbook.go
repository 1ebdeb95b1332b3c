package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/index"
	"github.com/wonny/eqindex/pkg/logger"
)

const (
	SheetPerformance  = "Performance"
	SheetCompositions = "Compositions"
	SheetChanges      = "Changes"
)

// built-in excelize number formats
const (
	numFmtThousands        = 3  // #,##0
	numFmtThousandsDecimal = 4  // #,##0.00
	numFmtPercent          = 10 // 0.00%
)

// Source provides the index read models that make up a workbook
type Source interface {
	GetPerformance(ctx context.Context, r contracts.DateRange) (*contracts.PerformanceResponse, error)
	GetCompositionHistory(ctx context.Context, r contracts.DateRange) ([]index.CompositionSnapshot, error)
	GetChanges(ctx context.Context, r contracts.DateRange) (*contracts.ChangesResponse, error)
}

// Exporter writes index artifacts to xlsx workbooks
type Exporter struct {
	source Source
	dir    string
	logger *logger.Logger
	now    func() time.Time
}

// NewExporter creates an exporter writing into dir
func NewExporter(source Source, dir string, log *logger.Logger) *Exporter {
	return &Exporter{
		source: source,
		dir:    dir,
		logger: log.WithComponent("export"),
		now:    time.Now,
	}
}

// Filename is the default workbook name for a resolved range
func Filename(r contracts.DateRange) string {
	return fmt.Sprintf("stock_index_%s_to_%s.xlsx", r.Start, r.End)
}

// Export writes the workbook for r into the export directory and returns its path.
// The caller owns the file.
func (e *Exporter) Export(ctx context.Context, r contracts.DateRange) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	r = r.Resolve(e.now())

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}
	path := filepath.Join(e.dir, Filename(r))
	if err := e.ExportTo(ctx, r, path); err != nil {
		return "", err
	}
	return path, nil
}

// ExportTo writes the workbook for r to path
func (e *Exporter) ExportTo(ctx context.Context, r contracts.DateRange, path string) error {
	f, err := e.Workbook(ctx, r)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"path":  path,
		"range": r.String(),
	}).Info("Workbook exported")
	return nil
}

// Workbook assembles the Performance, Compositions and Changes sheets.
// Sheets are present even when they hold no rows.
func (e *Exporter) Workbook(ctx context.Context, r contracts.DateRange) (*excelize.File, error) {
	perf, err := e.source.GetPerformance(ctx, r)
	if err != nil {
		return nil, err
	}
	history, err := e.source.GetCompositionHistory(ctx, r)
	if err != nil {
		return nil, err
	}
	changes, err := e.source.GetChanges(ctx, r)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetPerformance); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SheetCompositions, SheetChanges} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	steps := []func() error{
		func() error { return writePerformance(f, perf.Performances) },
		func() error { return writeCompositions(f, history) },
		func() error { return writeChanges(f, changes.Changes) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write workbook: %w", err)
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func setColumn(f *excelize.File, sheet, col string, width float64, numFmt int) error {
	if err := f.SetColWidth(sheet, col, col, width); err != nil {
		return err
	}
	if numFmt == 0 {
		return nil
	}
	style, err := f.NewStyle(&excelize.Style{NumFmt: numFmt})
	if err != nil {
		return err
	}
	return f.SetColStyle(sheet, col, style)
}

func writePerformance(f *excelize.File, points []contracts.PerformancePoint) error {
	if len(points) == 0 {
		return nil
	}

	if err := writeRow(f, SheetPerformance, 1, "date", "daily_return", "cumulative_return"); err != nil {
		return err
	}
	for i, p := range points {
		if err := writeRow(f, SheetPerformance, i+2, p.Date, p.DailyReturn, p.CumulativeReturn); err != nil {
			return err
		}
	}

	if err := setColumn(f, SheetPerformance, "A", 12, 0); err != nil {
		return err
	}
	for _, col := range []string{"B", "C"} {
		if err := setColumn(f, SheetPerformance, col, 15, numFmtPercent); err != nil {
			return err
		}
	}

	last := len(points) + 1
	return f.AddChart(SheetPerformance, "E2", &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$C$1", SheetPerformance),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", SheetPerformance, last),
			Values:     fmt.Sprintf("%s!$C$2:$C$%d", SheetPerformance, last),
			Line:       excelize.ChartLine{Width: 2.25},
		}},
		Title: []excelize.RichTextRun{{Text: "Index Cumulative Performance"}},
		XAxis: excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: "Date"}}},
		YAxis: excelize.ChartAxis{
			Title:  []excelize.RichTextRun{{Text: "Return"}},
			NumFmt: excelize.ChartNumFmt{CustomNumFmt: "0.00%"},
		},
		Dimension: excelize.ChartDimension{Width: 720, Height: 432},
	})
}

func writeCompositions(f *excelize.File, history []index.CompositionSnapshot) error {
	row := 1
	for _, snap := range history {
		for _, c := range snap.Compositions {
			if row == 1 {
				if err := writeRow(f, SheetCompositions, row, "date", "ticker", "name", "sector", "weight", "price", "market_cap"); err != nil {
					return err
				}
				row++
			}
			if err := writeRow(f, SheetCompositions, row, snap.Date, c.Ticker, c.Name, c.Sector, c.Weight, c.Price, c.MarketCap); err != nil {
				return err
			}
			row++
		}
	}
	if row == 1 {
		return nil
	}

	columns := []struct {
		col    string
		width  float64
		numFmt int
	}{
		{"A", 12, 0},
		{"B", 10, 0},
		{"C", 30, 0},
		{"D", 15, 0},
		{"E", 10, numFmtPercent},
		{"F", 12, numFmtThousandsDecimal},
		{"G", 18, numFmtThousands},
	}
	for _, c := range columns {
		if err := setColumn(f, SheetCompositions, c.col, c.width, c.numFmt); err != nil {
			return err
		}
	}
	return nil
}

func writeChanges(f *excelize.File, changes []contracts.ChangeDetail) error {
	if len(changes) == 0 {
		return nil
	}

	if err := writeRow(f, SheetChanges, 1, "date", "ticker", "name", "sector", "event"); err != nil {
		return err
	}
	for i, c := range changes {
		if err := writeRow(f, SheetChanges, i+2, c.Date, c.Ticker, c.Name, c.Sector, string(c.Event)); err != nil {
			return err
		}
	}

	for col, width := range map[string]float64{"A": 12, "B": 10, "C": 30, "D": 15, "E": 10} {
		if err := setColumn(f, SheetChanges, col, width, 0); err != nil {
			return err
		}
	}

	entry, err := f.NewConditionalStyle(&excelize.Style{
		Font: &excelize.Font{Color: "006100"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C6EFCE"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	exit, err := f.NewConditionalStyle(&excelize.Style{
		Font: &excelize.Font{Color: "9C0006"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFC7CE"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	rng := fmt.Sprintf("E2:E%d", len(changes)+1)
	return f.SetConditionalFormat(SheetChanges, rng, []excelize.ConditionalFormatOptions{
		{Type: "cell", Criteria: "==", Format: &entry, Value: `"ENTRY"`},
		{Type: "cell", Criteria: "==", Format: &exit, Value: `"EXIT"`},
	})
}
