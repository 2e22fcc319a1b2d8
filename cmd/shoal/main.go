// Package main provides the CLI for the shoal schema migration engine.
// Shoal manages collection schemas through versioned, reversible
// changesets recorded in a ledger.
//
// Usage:
//
//	shoal up                     # Apply pending changesets
//	shoal down [steps]           # Revert changesets (default: 1 step)
//	shoal status                 # Show applied/pending changesets
//	shoal history                # Show applied changesets with details
//	shoal verify                 # Cross-check the ledger against the repository
//	shoal collections            # List live collections
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	shoalcli "github.com/shoaldb/shoal/internal/cli"

	// Store drivers
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// version is set via ldflags during build: -ldflags="-X main.version=v1.0.0"
var version = "dev"

// Global flags
var (
	storeURL   string
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "shoal",
		Short:   "Reversible schema migrations for collection stores",
		Long:    `Shoal evolves collection schemas through versioned, reversible changesets. Every applied changeset is recorded in a ledger and can be rolled back.`,
		Version: version,

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&storeURL, "store-url", "s", "", "Store connection URL (sqlite path or postgres://...)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "shoal.yaml", "Path to config file")

	rootCmd.AddCommand(
		upCmd(),
		downCmd(),
		statusCmd(),
		historyCmd(),
		verifyCmd(),
		collectionsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, shoalcli.FormatError(err))
		os.Exit(1)
	}
}
