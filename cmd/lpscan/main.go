// Command lpscan analyzes LP positions of a wallet from the command line.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "lpscan",
		Short:        "Reconstruct and value DEX LP positions",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL")

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Load and value the LP positions of a wallet",
		RunE:  runAnalyze,
	}
	analyzeCmd.Flags().String("address", "", "wallet address (0x...)")
	analyzeCmd.Flags().StringSlice("chains", nil, "chains to scan (comma-separated); defaults to ENABLED_CHAINS")
	analyzeCmd.Flags().String("output", "table", "output format (table, json)")
	_ = analyzeCmd.MarkFlagRequired("address")
	root.AddCommand(analyzeCmd)

	pricesCmd := &cobra.Command{
		Use:   "prices",
		Short: "Look up USD prices",
		RunE:  runPrices,
	}
	pricesCmd.Flags().StringSlice("symbols", nil, "token symbols (comma-separated)")
	_ = pricesCmd.MarkFlagRequired("symbols")
	root.AddCommand(pricesCmd)

	migrateCmd := &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Manage the Postgres snapshot schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE:      runMigrate,
	}
	migrateCmd.Flags().String("path", "", "migrations directory; defaults to MIGRATIONS_PATH")
	root.AddCommand(migrateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
