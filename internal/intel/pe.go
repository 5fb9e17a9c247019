package intel

import (
	"go.uber.org/zap"

	"github.com/tenderedge/postaward/internal/model"
)

const (
	topWinnerCount = 5
	peakMonthCount = 3
	peConfidenceAt = 20.0
)

type peAcc struct {
	name    string
	code    string
	awards  int
	prices  []float64
	ratios  []float64
	sectors *tally[string]
	winners *tally[string]
	months  *tally[int]
}

// BuildPEProfiles groups awards by raw buyer name and derives one profile per
// buyer, in first-seen order. Buyer names are a closed government list and
// are not normalized; awards without a buyer are excluded.
func BuildPEProfiles(awards []model.AwardRecord) []model.PEProfile {
	var (
		order []*peAcc
		byKey = make(map[string]*peAcc)
	)

	for _, a := range awards {
		if err := a.Validate(); err != nil {
			zap.L().Warn("intel: skipping malformed award",
				zap.String("contract_id", a.ContractID),
				zap.Error(err),
			)
			continue
		}
		if a.BuyerName == "" {
			continue
		}

		acc, ok := byKey[a.BuyerName]
		if !ok {
			acc = &peAcc{
				name:    a.BuyerName,
				code:    a.BuyerCode,
				sectors: newTally[string](),
				winners: newTally[string](),
				months:  newTally[int](),
			}
			byKey[a.BuyerName] = acc
			order = append(order, acc)
		}
		acc.awards++
		acc.sectors.add(a.Sector)
		if a.WinningCompany != "" {
			acc.winners.add(a.WinningCompany)
		}
		if p, ok := a.KnownPrice(); ok {
			acc.prices = append(acc.prices, p)
		}
		if r, ok := a.KnownRatio(); ok {
			acc.ratios = append(acc.ratios, r)
		}
		if m, ok := a.AwardMonth(); ok {
			acc.months.add(m)
		}
	}

	profiles := make([]model.PEProfile, 0, len(order))
	for _, acc := range order {
		avgRatio := model.DefaultPriceRatio
		if len(acc.ratios) > 0 {
			avgRatio = model.Round(mean(acc.ratios), 4)
		}
		p := model.PEProfile{
			BuyerName:        acc.name,
			BuyerCode:        acc.code,
			TotalAwards:      acc.awards,
			Sectors:          asMap(acc.sectors),
			AvgPriceRatio:    avgRatio,
			PriceSensitivity: model.SensitivityFor(avgRatio),
			TopWinners:       acc.winners.top(topWinnerCount),
			PeakMonths:       acc.months.top(peakMonthCount),
			Confidence:       model.Round(saturate(acc.awards, peConfidenceAt), 3),
		}
		if len(acc.prices) > 0 {
			p.AvgContractValue = model.Float(model.Round(mean(acc.prices), 0))
		}
		profiles = append(profiles, p)
	}
	return profiles
}
