package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clarusrisk/diligence-cli/internal/model"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Re-check all companies with an enabled monitoring subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Runner.RunMonitoringSweep(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("subscriptions: %d  checked: %d  failed: %d  transitions: %d\n",
			res.Subscriptions, res.Checked, res.Failed, res.Transitions)
		return nil
	},
}

var subscribeCompanyID string

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Enable daily monitoring for a company",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		company, err := env.Store.GetCompany(ctx, subscribeCompanyID)
		if err != nil {
			return err
		}
		if company == nil {
			return fmt.Errorf("company not found: %s", subscribeCompanyID)
		}

		sub := &model.MonitoringSubscription{
			CompanyID: company.ID,
			NotifyBy:  "webhook",
			Enabled:   true,
		}
		if err := env.Store.CreateSubscription(ctx, sub); err != nil {
			return err
		}
		fmt.Printf("subscription %s created for %s\n", sub.ID, company.ID)
		return nil
	},
}

func init() {
	subscribeCmd.Flags().StringVar(&subscribeCompanyID, "id", "", "company ID to monitor")
	_ = subscribeCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(subscribeCmd)
}
