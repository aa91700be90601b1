package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clarusrisk/diligence-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "diligence-cli",
	Short: "Company due-diligence check pipeline",
	Long:  "Validates VAT numbers via VIES, screens sanctions lists, checks registries and domains, and aggregates everything into one risk status per company.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
