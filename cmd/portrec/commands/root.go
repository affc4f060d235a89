package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "portrec",
	Short: "Portfolio research - securities metadata reconciliation and thesis analysis",
	Long: `Portrec Unified CLI

Reconciles securities metadata from multiple market data providers,
backfills ETF holdings incrementally, and scores securities against
investment theses.

Usage:
  go run ./cmd/portrec [command]

Examples:
  go run ./cmd/portrec scrape etfdb
  go run ./cmd/portrec backfill run
  go run ./cmd/portrec backfill status
  go run ./cmd/portrec thesis import theses.json
  go run ./cmd/portrec analyze 1
  go run ./cmd/portrec api`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
