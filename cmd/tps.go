package main

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/tenderedge/postaward/internal/model"
	"github.com/tenderedge/postaward/internal/predict"
)

var (
	tpsOCID        string
	tpsSector      string
	tpsBuyer       string
	tpsTitle       string
	tpsValue       float64
	tpsCompanyFile string
)

var tpsCmd = &cobra.Command{
	Use:   "tps",
	Short: "Score an upcoming tender for the home company",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path := tpsCompanyFile
		if path == "" {
			path = cfg.Company.ProfilePath
		}
		if path == "" {
			return eris.New("a company profile is required (--company-file or POSTAWARD_COMPANY_PROFILE_PATH)")
		}
		company, err := predict.LoadCompanyProfile(path)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		tender := model.Tender{ID: tpsOCID, Title: tpsTitle, Sector: tpsSector, BuyerName: tpsBuyer, ValueAmount: tpsValue}
		if tpsOCID != "" {
			a, err := st.GetAward(ctx, tpsOCID)
			if err != nil {
				return err
			}
			if a != nil {
				tender = mergeTender(tender, *a)
			}
		}
		if tender.Sector == "" {
			return eris.New("--sector is required when --ocid does not match a stored award")
		}

		engine, err := newEngine(st)
		if err != nil {
			return err
		}
		res, err := engine.Score(ctx, tender, company)
		if err != nil {
			return err
		}
		renderTPS(cmd.OutOrStdout(), tender, res)
		return nil
	},
}

// mergeTender fills the flags the user left empty from a stored award.
func mergeTender(t model.Tender, a model.AwardRecord) model.Tender {
	if t.Sector == "" {
		t.Sector = a.Sector
	}
	if t.BuyerName == "" {
		t.BuyerName = a.BuyerName
	}
	if t.Title == "" {
		t.Title = a.TenderDescription
	}
	if t.ValueAmount == 0 && a.Estimate != nil {
		t.ValueAmount = *a.Estimate
	}
	return t
}

func renderTPS(w io.Writer, t model.Tender, res *model.TPSResult) {
	fmt.Fprintf(w, "Tender: %s [%s] %s\n", t.Title, t.Sector, t.BuyerName)
	if res.TPS == nil {
		fmt.Fprintf(w, "TPS: n/a\n%s\n", res.Message)
		return
	}
	fmt.Fprintf(w, "TPS: %d (%s)\n%s\n", *res.TPS, res.Label, res.Action)
	for _, f := range res.Factors {
		fmt.Fprintf(w, "  %-24s score %.3f  weight %.2f  +%.2f\n", f.Name, f.Score, f.Weight, f.Contribution)
	}
	if res.Insight != "" {
		fmt.Fprintf(w, "Insight: %s\n", res.Insight)
	}
	fmt.Fprintf(w, "Based on %d award records\n", res.DataPoints)
}

func init() {
	tpsCmd.Flags().StringVar(&tpsOCID, "ocid", "", "score the tender of a stored award")
	tpsCmd.Flags().StringVar(&tpsSector, "sector", "", "tender sector")
	tpsCmd.Flags().StringVar(&tpsBuyer, "buyer", "", "procuring entity name")
	tpsCmd.Flags().StringVar(&tpsTitle, "title", "", "tender title")
	tpsCmd.Flags().Float64Var(&tpsValue, "value", 0, "tender estimate")
	tpsCmd.Flags().StringVar(&tpsCompanyFile, "company-file", "", "YAML company profile (default from config)")
	rootCmd.AddCommand(tpsCmd)
}
