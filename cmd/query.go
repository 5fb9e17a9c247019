package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/tenderedge/postaward/internal/intel"
	"github.com/tenderedge/postaward/internal/model"
)

const rule = "════════════════════════════════════════════════════════════"

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the intelligence summary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rep, err := intel.NewAnalyzer(st).Report(ctx)
		if err != nil {
			return err
		}
		renderReport(cmd.OutOrStdout(), rep)
		return nil
	},
}

var competitorsCmd = &cobra.Command{
	Use:   "competitors [sector]",
	Short: "List competitor profiles, optionally for one sector",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sector, limit := "", 30
		if len(args) == 1 {
			sector, limit = args[0], 20
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListCompetitors(ctx, sector, limit)
		if err != nil {
			return err
		}
		renderCompetitors(cmd.OutOrStdout(), sector, list)
		return nil
	},
}

var peCmd = &cobra.Command{
	Use:   "pe <name>",
	Short: "Show the profile of a procuring entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pe, err := st.FindPEProfile(ctx, args[0])
		if err != nil {
			return err
		}
		if pe == nil {
			return eris.Errorf("no procuring entity matching %q", args[0])
		}
		return printJSON(cmd.OutOrStdout(), pe)
	},
}

var pricingCmd = &cobra.Command{
	Use:   "pricing <sector>",
	Short: "Show the winning-price benchmark for a sector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if !model.IsSector(args[0]) {
			return eris.Errorf("unknown sector %q (one of %s, %s)", args[0], strings.Join(model.Sectors, ", "), model.SectorOther)
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		b, err := intel.NewAnalyzer(st).Pricing(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), b)
	},
}

func renderReport(w io.Writer, rep *intel.Report) {
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "TENDEREDGE POST-AWARD INTELLIGENCE REPORT")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  Total Award Records   : %d\n", rep.Summary.Awards)
	fmt.Fprintf(w, "  Competitor Profiles   : %d\n", rep.Summary.Competitors)
	fmt.Fprintf(w, "  PE Profiles           : %d\n", rep.Summary.PEProfiles)
	fmt.Fprintln(w, "\nTOP COMPETITORS")
	for _, c := range rep.TopCompetitors {
		fmt.Fprintf(w, "  %-40s Wins: %d  Threat: %.2f\n", c.CanonicalName, c.TotalWins, c.ThreatScore)
	}
	fmt.Fprintln(w, "\nTOP PROCURING ENTITIES")
	for _, p := range rep.TopBuyers {
		fmt.Fprintf(w, "  %-40s Awards: %d  Price Sens: %s\n", p.BuyerName, p.TotalAwards, p.PriceSensitivity)
	}
	fmt.Fprintln(w, "\nKEY INSIGHTS")
	for _, i := range rep.Insights {
		fmt.Fprintf(w, "  [%s] %s\n", i.Type, i.Text)
	}
	fmt.Fprintln(w, rule)
}

func renderCompetitors(w io.Writer, sector string, list []model.CompetitorProfile) {
	if sector == "" {
		fmt.Fprintln(w, "Competitors:")
	} else {
		fmt.Fprintf(w, "Competitors in %s:\n", sector)
	}
	for _, c := range list {
		ratio := 0.0
		if c.AvgPriceRatio != nil {
			ratio = *c.AvgPriceRatio
		}
		fmt.Fprintf(w, "  %-40s Wins:%4d  Threat:%.2f  Avg Ratio:%.3f\n", c.CanonicalName, c.TotalWins, c.ThreatScore, ratio)
	}
}

func init() {
	rootCmd.AddCommand(reportCmd, competitorsCmd, peCmd, pricingCmd)
}
