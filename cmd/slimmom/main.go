// Command slimmom serves the diary API and runs ledger maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var storeKind string

var rootCmd = &cobra.Command{
	Use:           "slimmom",
	Short:         "slimmom tracks daily calories",
	Long:          "slimmom serves the calorie diary API and maintains the per-day calorie ledger.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Calorie amounts go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", env("STORE", "postgres"), "Storage backend: postgres, sqlite, mongo or memory")
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
