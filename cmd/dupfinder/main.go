package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dupfinder",
	Short: "Near-duplicate detection over a bounded status stream",
	Long: `dupfinder fetches a bounded batch of statuses for a user, indexes them into
an LSH matrix in the background and reports clusters of near-duplicates.

Examples:
  dupfinder serve
  dupfinder serve --port 9000 --data-dir /tmp/dupfinder
  dupfinder serve --config dupfinder.toml`,
	SilenceUsage: true,
}

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
