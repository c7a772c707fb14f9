package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/finflow/pkg/finbot/search"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect the product index",
}

var indexSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the product catalog the way recommendations do",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := a.withSearch(ctx); err != nil {
			return err
		}

		category, _ := cmd.Flags().GetString("category")
		k, _ := cmd.Flags().GetInt("k")

		vec, err := a.embedder.Embed(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		hits, err := a.index.Search(ctx, vec, search.Collection(category), k)
		if err != nil {
			return fmt.Errorf("search %s: %w (loaded: %s)", category, err, strings.Join(a.index.Collections(), ", "))
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SCORE\tCODE\tCATEGORY\tPRODUCT")
		for _, h := range hits {
			fmt.Fprintf(w, "%.3f\t%s\t%s\t%s %s\n", h.Score, h.ProductCode, h.Category,
				h.Payload.String(search.KeyCompany, ""), h.Payload.String(search.KeyName, ""))
		}
		return w.Flush()
	},
}

func init() {
	indexSearchCmd.Flags().String("category", search.AllProducts, "Recommendation category (all, fixed_deposit, installment_deposit, jeonse_loan)")
	indexSearchCmd.Flags().Int("k", 3, "Number of results")
	indexCmd.AddCommand(indexSearchCmd)
	rootCmd.AddCommand(indexCmd)
}
