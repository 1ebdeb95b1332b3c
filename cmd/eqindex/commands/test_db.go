package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/eqindex/pkg/database"
)

// testDBCmd represents the test-db command
var testDBCmd = &cobra.Command{
	Use:   "test-db",
	Short: "Test the database connection",
	Long: `Connect to PostgreSQL and print health and pool statistics.

Example:
  go run ./cmd/eqindex test-db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), runTestDB)
	},
}

func init() {
	rootCmd.AddCommand(testDBCmd)
}

func runTestDB(ctx context.Context, db *database.DB) error {
	PrintHeader("Database Connection Test")

	health, err := db.HealthCheck(ctx)
	if err != nil {
		PrintError(fmt.Sprintf("Health check failed: %v", err))
		return err
	}

	PrintKeyValue("Healthy", strconv.FormatBool(health.Healthy), 16)
	PrintKeyValue("Response time", health.ResponseTime.String(), 16)
	PrintKeyValue("Total conns", strconv.Itoa(int(health.Stats.TotalConns)), 16)
	PrintKeyValue("Idle conns", strconv.Itoa(int(health.Stats.IdleConns)), 16)
	PrintKeyValue("Max conns", strconv.Itoa(int(health.Stats.MaxConns)), 16)
	PrintSeparator()

	if !health.Healthy {
		PrintError(health.Error)
		return fmt.Errorf("database unhealthy: %s", health.Error)
	}
	PrintSuccess("Database connection OK")
	return nil
}
