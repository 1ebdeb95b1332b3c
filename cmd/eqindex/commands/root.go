package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "eqindex",
	Short: "Equal-weighted top-N stock index engine",
	Long: `eqindex builds an equal-weighted index of the largest stocks by market cap.

Market data is acquired from Yahoo Finance for the S&P 500 universe.
Each trading date the top N stocks are selected, weighted 1/N, and the
index return, composition and constituent changes are persisted.

Usage:
  go run ./cmd/eqindex [command]

Examples:
  go run ./cmd/eqindex migrate up
  go run ./cmd/eqindex fetcher acquire --days 30
  go run ./cmd/eqindex index build --start 2024-01-02 --end 2024-01-31
  go run ./cmd/eqindex api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
