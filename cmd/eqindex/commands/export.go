package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/export"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export index data to an xlsx workbook",
	Long: `Write the Performance, Compositions and Changes sheets for a range.

Example:
  go run ./cmd/eqindex export --start 2024-01-02 --end 2024-01-31
  go run ./cmd/eqindex export --start 2024-01-02 --out ./index.xlsx`,
	RunE: runExport,
}

var (
	exportStart string
	exportEnd   string
	exportOut   string
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportStart, "start", "", "start date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportEnd, "end", "", "end date (YYYY-MM-DD, default today)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default EXPORT_DIR/stock_index_<start>_to_<end>.xlsx)")
	_ = exportCmd.MarkFlagRequired("start")
}

func runExport(cmd *cobra.Command, args []string) error {
	r, err := contracts.NewDateRange(exportStart, exportEnd)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var path string
	if exportOut == "" {
		path, err = a.exporter.Export(cmd.Context(), r)
	} else {
		r = r.Resolve(time.Now())
		path = exportOut
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, export.Filename(r))
		}
		err = a.exporter.ExportTo(cmd.Context(), r, path)
	}
	if err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("Workbook written to %s", path))
	return nil
}
