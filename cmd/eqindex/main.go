package main

import (
	"os"

	"github.com/wonny/eqindex/cmd/eqindex/commands"
)

// main is the entry point for the eqindex CLI
// ⭐ unified CLI entry point: go run ./cmd/eqindex [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
