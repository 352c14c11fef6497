package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"slimmom/internal/app"
)

var (
	reconcileUser    string
	reconcileDate    string
	reconcileFlagged bool
	reconcileLimit   int
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute daily totals from diary entries",
	Long: "Recompute one day's total for a user (--user, --date) or every day " +
		"flagged by a clamped removal (--flagged).",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reconcileFlagged == (reconcileUser != "") {
			return errors.New("use either --user with --date, or --flagged")
		}
		return withBackend(cmd.Context(), func(b *backend) error {
			ledger := app.NewLedgerService(b.ledger, b.catalog)
			out := cmd.OutOrStdout()

			if reconcileFlagged {
				results, err := ledger.ReconcileFlagged(cmd.Context(), reconcileLimit)
				for _, r := range results {
					printReconcile(cmd, r)
				}
				fmt.Fprintf(out, "Reconciled %d day(s)\n", len(results))
				return err
			}

			r, err := ledger.Reconcile(cmd.Context(), reconcileUser, reconcileDate)
			if err != nil {
				return err
			}
			printReconcile(cmd, *r)
			return nil
		})
	},
}

func printReconcile(cmd *cobra.Command, r app.ReconcileResult) {
	status := "unchanged"
	if r.Corrected {
		status = "corrected"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s kcal (%d entries) %s\n",
		r.UserID, r.Day, r.After.TotalCalories.StringFixed(2), r.After.EntryCount, status)
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().StringVar(&reconcileUser, "user", "", "User id")
	reconcileCmd.Flags().StringVar(&reconcileDate, "date", "", "Day in YYYY-MM-DD form")
	reconcileCmd.Flags().BoolVar(&reconcileFlagged, "flagged", false, "Reconcile every flagged day")
	reconcileCmd.Flags().IntVar(&reconcileLimit, "limit", 100, "Maximum flagged days to process")
}
