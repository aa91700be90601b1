package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clarusrisk/diligence-cli/internal/model"
	"github.com/clarusrisk/diligence-cli/internal/pipeline"
)

var (
	checkVAT     string
	checkName    string
	checkCountry string
	checkAddress string
	checkWebsite string
	checkID      string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a full due-diligence check for a company",
	Long:  "Resolves the company (by --id, or by --vat/--name creating it if needed), runs every configured adapter, and prints the aggregated check as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		companyID := checkID
		if companyID == "" {
			if checkVAT == "" && checkName == "" {
				return eris.New("either --id or one of --vat/--name is required")
			}
			company, created, err := env.Runner.Lookup(ctx, pipeline.LookupInput{
				VATNumber: checkVAT,
				Name:      checkName,
				Country:   checkCountry,
				Address:   checkAddress,
				Website:   checkWebsite,
			})
			if err != nil {
				return err
			}
			companyID = company.ID
			if created {
				zap.L().Info("company created", zap.String("company_id", company.ID))
			}
		}

		check, err := env.Runner.RunFullCheck(ctx, companyID)
		if err != nil {
			return err
		}
		if check == nil {
			return eris.Errorf("company not found: %s", companyID)
		}

		company, err := env.Store.GetCompany(ctx, companyID)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Company *model.Company `json:"company"`
			Check   *model.Check   `json:"check"`
		}{company, check})
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkID, "id", "", "existing company ID")
	checkCmd.Flags().StringVar(&checkVAT, "vat", "", "VAT number (e.g. DE123456789)")
	checkCmd.Flags().StringVar(&checkName, "name", "", "company name")
	checkCmd.Flags().StringVar(&checkCountry, "country", "", "ISO country code")
	checkCmd.Flags().StringVar(&checkAddress, "address", "", "company address")
	checkCmd.Flags().StringVar(&checkWebsite, "website", "", "company website")
	rootCmd.AddCommand(checkCmd)
}
