package predict

import (
	"strings"

	"github.com/tenderedge/postaward/internal/model"
	"github.com/tenderedge/postaward/internal/resolve"
)

// sectorStats is the slice of award history the factor rules read.
type sectorStats struct {
	records  int
	ratios   []float64
	winners  int
	avgRatio float64
	minRatio float64
	maxRatio float64
}

func newSectorStats(awards []model.AwardRecord) sectorStats {
	st := sectorStats{records: len(awards)}
	seen := make(map[string]struct{})
	for _, a := range awards {
		if a.WinningCompany != "" {
			seen[resolve.NormalizeCompany(a.WinningCompany)] = struct{}{}
		}
		r, ok := a.KnownRatio()
		if !ok {
			continue
		}
		if len(st.ratios) == 0 || r < st.minRatio {
			st.minRatio = r
		}
		if len(st.ratios) == 0 || r > st.maxRatio {
			st.maxRatio = r
		}
		st.ratios = append(st.ratios, r)
		st.avgRatio += r
	}
	if n := len(st.ratios); n > 0 {
		st.avgRatio /= float64(n)
	}
	st.winners = len(seen)
	return st
}

func (s sectorStats) hasRatios() bool { return len(s.ratios) > 0 }

// capabilityScore matches the tender sector against the declared sectors.
// A declared sector that is a substring of the tender sector is a partial
// match; the reverse is not.
func capabilityScore(sector string, declared []string) float64 {
	for _, s := range declared {
		if s == sector {
			return 0.85
		}
	}
	for _, s := range declared {
		if strings.Contains(sector, s) {
			return 0.60
		}
	}
	return 0.30
}

// historyScore uses the platform-wide sector sample size as a proxy for the
// company's own win rate.
func historyScore(sectorRecords int) float64 {
	if sectorRecords > 5 {
		return min(0.85, 0.40+float64(sectorRecords)/100)
	}
	return 0.45
}

// buyerFavorScore rewards a company that already appears among the buyer's
// top winners, discounted by how much the buyer profile is trusted.
func buyerFavorScore(company string, pe *model.PEProfile) float64 {
	if pe == nil {
		return 0.50
	}
	score := 0.45
	name := resolve.NormalizeCompany(company)
	if !resolve.IsUnknown(company) {
		for _, w := range pe.TopWinners {
			if resolve.NormalizeCompany(w) == name {
				score = 0.90
				break
			}
		}
	}
	return score * (0.5 + 0.5*pe.Confidence)
}

// priceScore measures how far the company's typical ratio sits from the
// sector's mean winning ratio, relative to the sector's ratio span.
func priceScore(typical float64, st sectorStats) float64 {
	if !st.hasRatios() {
		return 0.60
	}
	span := st.maxRatio - st.minRatio
	if span == 0 {
		span = 0.1
	}
	diff := typical - st.avgRatio
	if diff < 0 {
		diff = -diff
	}
	return max(0.2, 1-diff/span)
}

// densityScore buckets the number of distinct winners in the sector.
func densityScore(distinctWinners int) float64 {
	switch {
	case distinctWinners <= 3:
		return 0.85
	case distinctWinners <= 8:
		return 0.65
	case distinctWinners <= 15:
		return 0.45
	default:
		return 0.30
	}
}

// seasonalScore checks the current month against the buyer's peak months.
func seasonalScore(month int, pe *model.PEProfile) float64 {
	if pe == nil {
		return 0.60
	}
	if pe.HasPeakMonth(month) {
		return 0.85
	}
	return 0.50
}
