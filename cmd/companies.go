package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/clarusrisk/diligence-cli/internal/store"
)

var (
	companiesQuery string
	companiesLimit int
	companiesJSON  bool
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List stored companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		companies, err := env.Store.ListCompanies(ctx, store.CompanyFilter{
			Query: companiesQuery,
			Limit: companiesLimit,
		})
		if err != nil {
			return err
		}

		if companiesJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(companies)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tVAT\tNAME\tSTATUS\tSCORE\tLAST CHECKED")
		for _, c := range companies {
			last := "-"
			if c.LastChecked != nil {
				last = c.LastChecked.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				c.ID, c.VATNumber, c.Name, c.CurrentStatus, c.ConfidenceScore, last)
		}
		return w.Flush()
	},
}

var historyCompanyID string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show check history and status-change events for a company",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		checks, err := env.Store.GetCompanyChecks(ctx, historyCompanyID, 0)
		if err != nil {
			return err
		}
		events, err := env.Store.ListEvents(ctx, historyCompanyID, 0)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"checks": checks,
			"events": events,
		})
	},
}

func init() {
	companiesCmd.Flags().StringVar(&companiesQuery, "q", "", "filter by name or VAT substring")
	companiesCmd.Flags().IntVar(&companiesLimit, "limit", 100, "maximum rows")
	companiesCmd.Flags().BoolVar(&companiesJSON, "json", false, "output JSON")
	historyCmd.Flags().StringVar(&historyCompanyID, "id", "", "company ID")
	_ = historyCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(companiesCmd)
	rootCmd.AddCommand(historyCmd)
}
