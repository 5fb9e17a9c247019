// Package intel derives competitor and buyer profiles, mined insights and
// pricing benchmarks from the award record store.
package intel

import (
	"go.uber.org/zap"

	"github.com/tenderedge/postaward/internal/model"
	"github.com/tenderedge/postaward/internal/resolve"
)

// CompetitorBuild is the result of one competitor rebuild.
type CompetitorBuild struct {
	// Profiles in first-seen order of their canonical name.
	Profiles []model.CompetitorProfile
	// Leader is the competitor with the most wins; ties go to the first seen.
	Leader string
	// Skipped counts records that failed validation.
	Skipped int
}

type competitorAcc struct {
	name     string
	wins     int
	sectors  *tally[string]
	buyers   *tally[string]
	prices   []float64
	ratios   []float64
	lastDate string
}

// BuildCompetitorProfiles groups awards by normalized winner and derives one
// profile per competitor. Awards whose winner normalizes to Unknown are
// excluded. Threat scores are relative to the largest win count in this
// build.
func BuildCompetitorProfiles(awards []model.AwardRecord) CompetitorBuild {
	var (
		build CompetitorBuild
		order []*competitorAcc
		byKey = make(map[string]*competitorAcc)
	)

	for _, a := range awards {
		if err := a.Validate(); err != nil {
			build.Skipped++
			zap.L().Warn("intel: skipping malformed award",
				zap.String("contract_id", a.ContractID),
				zap.Error(err),
			)
			continue
		}
		name := resolve.NormalizeCompany(a.WinningCompany)
		if resolve.IsUnknown(name) {
			continue
		}

		acc, ok := byKey[name]
		if !ok {
			acc = &competitorAcc{name: name, sectors: newTally[string](), buyers: newTally[string]()}
			byKey[name] = acc
			order = append(order, acc)
		}
		acc.wins++
		acc.sectors.add(a.Sector)
		if a.BuyerName != "" {
			acc.buyers.add(a.BuyerName)
		}
		if p, ok := a.KnownPrice(); ok {
			acc.prices = append(acc.prices, p)
		}
		if r, ok := a.KnownRatio(); ok {
			acc.ratios = append(acc.ratios, r)
		}
		if a.AwardDate > acc.lastDate {
			acc.lastDate = a.AwardDate
		}
	}

	maxWins := 0
	for _, acc := range order {
		if acc.wins > maxWins {
			maxWins = acc.wins
			build.Leader = acc.name
		}
	}

	build.Profiles = make([]model.CompetitorProfile, 0, len(order))
	for _, acc := range order {
		p := model.CompetitorProfile{
			CanonicalName:      acc.name,
			TotalWins:          acc.wins,
			Sectors:            asMap(acc.sectors),
			BuyerRelationships: asMap(acc.buyers),
			ThreatScore:        threatScore(acc.wins, maxWins),
			LastWinDate:        acc.lastDate,
		}
		if len(acc.prices) > 0 {
			lo, hi := minMax(acc.prices)
			p.PriceMin = model.Float(lo)
			p.PriceMax = model.Float(hi)
		}
		if len(acc.ratios) > 0 {
			p.AvgPriceRatio = model.Float(model.Round(mean(acc.ratios), 4))
		}
		build.Profiles = append(build.Profiles, p)
	}
	return build
}

func threatScore(wins, maxWins int) float64 {
	if maxWins <= 0 {
		return 0
	}
	s := model.Round(float64(wins)/float64(maxWins), 3)
	if wins < maxWins && s >= 1 {
		// Only competitors at the maximum may score 1.
		s = 0.999
	}
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
