package model

import (
	"math"
	"time"

	"github.com/rotisserie/eris"
)

// Sector taxonomy used to classify tenders. Anything outside the list is Other.
const (
	SectorICT          = "ICT"
	SectorConstruction = "Construction"
	SectorMedical      = "Medical"
	SectorConsultancy  = "Consultancy"
	SectorEnergy       = "Energy"
	SectorSupply       = "Supply/Goods"
	SectorOther        = "Other"
)

// Sectors lists the classified sectors in taxonomy order.
var Sectors = []string{
	SectorICT,
	SectorConstruction,
	SectorMedical,
	SectorConsultancy,
	SectorEnergy,
	SectorSupply,
}

// UnknownEntity is the canonical name for a company that could not be identified.
const UnknownEntity = "Unknown"

// DefaultCurrency applies when an award notice carries no currency.
const DefaultCurrency = "TZS"

// AwardRecord is one observed contract award. Records are immutable once
// stored; the contract id is the natural key.
type AwardRecord struct {
	ContractID        string    `json:"contract_id" yaml:"contract_id"`
	TenderNumber      string    `json:"tender_number" yaml:"tender_number"`
	TenderDescription string    `json:"tender_description" yaml:"tender_description"`
	BuyerName         string    `json:"buyer_name" yaml:"buyer_name"`
	BuyerCode         string    `json:"buyer_code" yaml:"buyer_code"`
	WinningCompany    string    `json:"winning_company" yaml:"winning_company"`
	ContractPrice     *float64  `json:"contract_price,omitempty" yaml:"contract_price"`
	Currency          string    `json:"currency" yaml:"currency"`
	DeliveryPeriod    string    `json:"delivery_period,omitempty" yaml:"delivery_period"`
	Estimate          *float64  `json:"estimate,omitempty" yaml:"estimate"`
	PriceRatio        *float64  `json:"price_ratio,omitempty" yaml:"price_ratio"`
	Sector            string    `json:"sector" yaml:"sector"`
	AwardDate         string    `json:"award_date" yaml:"award_date"`
	SourcePlatform    string    `json:"source_platform" yaml:"source_platform"`
	Confidence        float64   `json:"confidence" yaml:"confidence"`
	RawJSON           string    `json:"-" yaml:"-"`
	CreatedAt         time.Time `json:"created_at,omitempty" yaml:"-"`
}

// DeriveRatio returns price/estimate rounded to 4 decimal places, or nil
// when either side is missing or the estimate is not positive.
func DeriveRatio(price, estimate *float64) *float64 {
	if price == nil || estimate == nil || *estimate <= 0 {
		return nil
	}
	r := Round(*price / *estimate, 4)
	return &r
}

// Normalize fills defaults that the ingestion boundary guarantees: currency,
// sector taxonomy membership and a derived price ratio when none was given.
func (a *AwardRecord) Normalize() {
	if a.Currency == "" {
		a.Currency = DefaultCurrency
	}
	if !IsSector(a.Sector) {
		a.Sector = SectorOther
	}
	if a.PriceRatio == nil {
		a.PriceRatio = DeriveRatio(a.ContractPrice, a.Estimate)
	}
}

// Validate reports whether the record can be aggregated.
func (a AwardRecord) Validate() error {
	if a.ContractID == "" {
		return eris.New("model: award record has no contract id")
	}
	for name, v := range map[string]*float64{
		"contract_price": a.ContractPrice,
		"estimate":       a.Estimate,
		"price_ratio":    a.PriceRatio,
	} {
		if v == nil {
			continue
		}
		if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
			return eris.Errorf("model: award %s has invalid %s %v", a.ContractID, name, *v)
		}
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return eris.Errorf("model: award %s confidence %v outside [0,1]", a.ContractID, a.Confidence)
	}
	return nil
}

// KnownPrice returns the contract price when one was recorded.
func (a AwardRecord) KnownPrice() (float64, bool) {
	if a.ContractPrice == nil || *a.ContractPrice <= 0 {
		return 0, false
	}
	return *a.ContractPrice, true
}

// KnownRatio returns the price ratio when one was recorded.
func (a AwardRecord) KnownRatio() (float64, bool) {
	if a.PriceRatio == nil || *a.PriceRatio <= 0 {
		return 0, false
	}
	return *a.PriceRatio, true
}

// AwardMonth returns the month component of the award date ("YYYY-MM...").
func (a AwardRecord) AwardMonth() (int, bool) {
	if len(a.AwardDate) < 7 {
		return 0, false
	}
	d := a.AwardDate[5:7]
	if d[0] < '0' || d[0] > '9' || d[1] < '0' || d[1] > '9' {
		return 0, false
	}
	m := int(d[0]-'0')*10 + int(d[1]-'0')
	if m < 1 || m > 12 {
		return 0, false
	}
	return m, true
}

// IsSector reports whether s belongs to the sector taxonomy (Other included).
func IsSector(s string) bool {
	if s == SectorOther {
		return true
	}
	for _, known := range Sectors {
		if s == known {
			return true
		}
	}
	return false
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
