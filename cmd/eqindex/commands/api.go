package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/eqindex/internal/api"
	"github.com/wonny/eqindex/internal/api/handlers"
)

// version is set at build time with -ldflags "-X .../commands.version=..."
var version = "dev"

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Start the REST API server.

Endpoints:
  GET  /                          - Service info
  GET  /health                    - Health check
  POST /api/index/build           - Build the index over a date range
  GET  /api/index/performance     - Daily and cumulative returns
  GET  /api/index/composition     - Constituents on a date
  GET  /api/index/changes         - ENTRY/EXIT events
  POST /api/index/export          - Download an xlsx workbook
  POST /api/data/acquire          - Acquire market data
  GET  /metrics                   - Prometheus metrics
  GET  /ws                        - Event stream

Example:
  go run ./cmd/eqindex api
  go run ./cmd/eqindex api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp(withEventHub())
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	ctx := cmd.Context()

	if err := a.ping(ctx); err != nil {
		return err
	}

	go a.hub.Run(ctx)

	checks := map[string]handlers.Pinger{"database": a.db}
	if a.redis.Enabled() {
		checks["redis"] = a.redis
	}

	router := api.NewRouter(api.RouterDeps{
		Index:   handlers.NewIndexHandler(a.builder, a.service, a.exporter, a.log),
		Data:    handlers.NewDataHandler(a.collector, a.cfg.Acquisition.Days, a.log),
		System:  handlers.NewSystemHandler("eqindex", version, checks),
		Events:  a.hub,
		Metrics: a.metrics,
		Logger:  a.log,
	})

	server := api.New(a.cfg, a.log, router)

	fmt.Printf("\n✅ Server running on http://localhost%s\n", server.Addr())
	fmt.Println("\nPress Ctrl+C to stop")

	return server.Run(ctx)
}
