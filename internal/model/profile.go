package model

import "time"

// PriceSensitivity classifies how hard a buyer pushes award prices below estimate.
type PriceSensitivity string

const (
	SensitivityHigh   PriceSensitivity = "HIGH"
	SensitivityMedium PriceSensitivity = "MEDIUM"
	SensitivityLow    PriceSensitivity = "LOW"
)

// DefaultPriceRatio is the national baseline award/estimate ratio used when a
// buyer has no ratio data.
const DefaultPriceRatio = 0.93

// CompetitorProfile aggregates the award history of one normalized company.
type CompetitorProfile struct {
	CanonicalName      string         `json:"company_name"`
	Aliases            []string       `json:"aliases,omitempty"`
	TotalWins          int            `json:"total_wins"`
	Sectors            map[string]int `json:"primary_sectors"`
	BuyerRelationships map[string]int `json:"pe_relationships"`
	PriceMin           *float64       `json:"price_range_min,omitempty"`
	PriceMax           *float64       `json:"price_range_max,omitempty"`
	AvgPriceRatio      *float64       `json:"avg_price_ratio,omitempty"`
	ThreatScore        float64        `json:"threat_score"`
	LastWinDate        string         `json:"last_win_date"`
	UpdatedAt          time.Time      `json:"last_updated,omitempty"`
}

// PEProfile aggregates the award behavior of one procuring entity.
type PEProfile struct {
	BuyerName        string           `json:"pe_name"`
	BuyerCode        string           `json:"pe_code"`
	TotalAwards      int              `json:"total_awards"`
	AvgContractValue *float64         `json:"avg_contract_value,omitempty"`
	Sectors          map[string]int   `json:"preferred_sectors"`
	AvgPriceRatio    float64          `json:"avg_price_ratio"`
	PriceSensitivity PriceSensitivity `json:"price_sensitivity"`
	TopWinners       []string         `json:"top_winners"`
	PeakMonths       []int            `json:"budget_cycle_months"`
	Confidence       float64          `json:"confidence_score"`
	UpdatedAt        time.Time        `json:"last_updated,omitempty"`
}

// SensitivityFor maps an average award/estimate ratio to a sensitivity label.
func SensitivityFor(avgRatio float64) PriceSensitivity {
	switch {
	case avgRatio < 0.88:
		return SensitivityHigh
	case avgRatio > 0.96:
		return SensitivityLow
	default:
		return SensitivityMedium
	}
}

// HasPeakMonth reports whether month is one of the buyer's peak award months.
func (p PEProfile) HasPeakMonth(month int) bool {
	for _, m := range p.PeakMonths {
		if m == month {
			return true
		}
	}
	return false
}
