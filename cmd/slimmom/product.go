package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"slimmom/internal/domain"
)

var (
	productTitle string
	productKcal  string
)

var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Manage the product catalog",
}

var productPutCmd = &cobra.Command{
	Use:   "put <id>",
	Short: "Add or replace a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rate, err := decimal.NewFromString(strings.TrimSpace(productKcal))
		if err != nil {
			return domain.Invalid("kcal", "must be a number")
		}
		if rate.IsNegative() || rate.GreaterThan(domain.MaxCaloriesPer100g) {
			return domain.Invalid("kcal", "must be within [0, 1000]")
		}
		if !domain.FitsCents(rate) {
			return domain.Invalid("kcal", "must have at most 2 decimal places")
		}
		if strings.TrimSpace(productTitle) == "" {
			return domain.Invalid("title", "is required")
		}
		p := domain.Product{ID: args[0], Title: strings.TrimSpace(productTitle), CaloriesPer100g: rate}

		return withBackend(cmd.Context(), func(b *backend) error {
			if err := b.catalog.PutProduct(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved product %s (%s kcal/100g)\n", p.ID, p.CaloriesPer100g)
			return nil
		})
	},
}

var productDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a product; diary entries keep their calories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd.Context(), func(b *backend) error {
			if err := b.catalog.DeleteProduct(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted product %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(productCmd)
	productCmd.AddCommand(productPutCmd, productDeleteCmd)
	productPutCmd.Flags().StringVar(&productTitle, "title", "", "Product title")
	productPutCmd.Flags().StringVar(&productKcal, "kcal", "", "Calories per 100 g")
}
