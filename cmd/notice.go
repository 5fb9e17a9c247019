package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tenderedge/postaward/internal/extract"
	"github.com/tenderedge/postaward/internal/model"
	"github.com/tenderedge/postaward/internal/resolve"
)

const (
	sourceNotice     = "Award Notice"
	noticeConfidence = 0.7
)

var (
	noticeFile  string
	noticeOCID  string
	noticeTitle string
	noticeBuyer string
	noticeSave  bool
)

var parseNoticeCmd = &cobra.Command{
	Use:   "parse-notice",
	Short: "Extract award data from a free-text award notice",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		text, err := os.ReadFile(noticeFile)
		if err != nil {
			return eris.Wrap(err, "read notice")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		tc := extract.TenderContext{ContractID: noticeOCID, Title: noticeTitle, BuyerName: noticeBuyer}
		if noticeOCID != "" {
			a, err := st.GetAward(ctx, noticeOCID)
			if err != nil {
				return err
			}
			if a != nil {
				tc = extract.TenderContext{
					ContractID: a.ContractID,
					Title:      a.TenderDescription,
					BuyerName:  a.BuyerName,
					Sector:     a.Sector,
					Estimate:   a.Estimate,
				}
				if noticeSave {
					zap.L().Warn("award already stored, records are immutable; not saving", zap.String("ocid", noticeOCID))
					noticeSave = false
				}
			}
		}

		ext, err := extract.NewParser(newAnthropic(), cfg.Anthropic).ParseAwardNotice(ctx, string(text), tc)
		if err != nil {
			return err
		}

		if noticeSave {
			if noticeOCID == "" {
				return eris.New("--save requires --ocid")
			}
			rec := noticeRecord(tc)
			ext.ApplyTo(&rec)
			if rec.WinningCompany == "" {
				rec.WinningCompany = model.UnknownEntity
			}
			if err := rec.Validate(); err != nil {
				return err
			}
			if _, err := st.InsertAward(ctx, rec); err != nil {
				return err
			}
			zap.L().Info("notice award saved", zap.String("ocid", rec.ContractID), zap.String("winner", rec.WinningCompany))
		}
		return printJSON(cmd.OutOrStdout(), ext)
	},
}

// noticeRecord starts an award record from what is known about the tender.
func noticeRecord(tc extract.TenderContext) model.AwardRecord {
	return model.AwardRecord{
		ContractID:        tc.ContractID,
		TenderNumber:      tc.ContractID,
		TenderDescription: tc.Title,
		BuyerName:         tc.BuyerName,
		Estimate:          tc.Estimate,
		Sector:            resolve.ClassifySector(tc.Title),
		SourcePlatform:    sourceNotice,
		Confidence:        noticeConfidence,
	}
}

func init() {
	parseNoticeCmd.Flags().StringVar(&noticeFile, "file", "", "path to the notice text (required)")
	parseNoticeCmd.Flags().StringVar(&noticeOCID, "ocid", "", "contract id the notice belongs to")
	parseNoticeCmd.Flags().StringVar(&noticeTitle, "title", "", "tender title")
	parseNoticeCmd.Flags().StringVar(&noticeBuyer, "buyer", "", "procuring entity name")
	parseNoticeCmd.Flags().BoolVar(&noticeSave, "save", false, "store the extracted award when the ocid is new")
	_ = parseNoticeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(parseNoticeCmd)
}
