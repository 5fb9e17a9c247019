package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/tenderedge/postaward/internal/autopsy"
	"github.com/tenderedge/postaward/internal/model"
)

var (
	autopsyOCID       string
	autopsyBidID      string
	autopsyTenant     string
	autopsyPrice      float64
	autopsyTechnical  string
	autopsyCompliance string
)

var autopsyCmd = &cobra.Command{
	Use:   "autopsy",
	Short: "Explain the outcome of a submitted bid against its award",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		award, err := st.GetAward(ctx, autopsyOCID)
		if err != nil {
			return err
		}
		if award == nil {
			return eris.Errorf("no award with ocid %q", autopsyOCID)
		}

		bid := model.Bid{
			BidID:            autopsyBidID,
			TenantID:         autopsyTenant,
			ContractID:       autopsyOCID,
			TechnicalScore:   autopsyTechnical,
			ComplianceStatus: autopsyCompliance,
		}
		if autopsyPrice > 0 {
			bid.SubmittedPrice = model.Float(autopsyPrice)
		}

		out, err := autopsy.NewGenerator(newAnthropic(), st, cfg.Anthropic).Generate(ctx, bid, *award)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

func init() {
	autopsyCmd.Flags().StringVar(&autopsyOCID, "ocid", "", "contract id of the award (required)")
	autopsyCmd.Flags().StringVar(&autopsyBidID, "bid-id", "", "bid id (generated when empty)")
	autopsyCmd.Flags().StringVar(&autopsyTenant, "tenant", "", "tenant id")
	autopsyCmd.Flags().Float64Var(&autopsyPrice, "price", 0, "our submitted price")
	autopsyCmd.Flags().StringVar(&autopsyTechnical, "technical", "", "our technical score")
	autopsyCmd.Flags().StringVar(&autopsyCompliance, "compliance", "", "our compliance status")
	_ = autopsyCmd.MarkFlagRequired("ocid")
	rootCmd.AddCommand(autopsyCmd)
}
