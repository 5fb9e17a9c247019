// Package ingest brings award records into the store: OCDS releases from
// the NeST feed and spreadsheet uploads as a manual fallback.
package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tenderedge/postaward/internal/model"
	"github.com/tenderedge/postaward/internal/resolve"
)

const (
	// SourceNeST tags records fetched from the NeST feed.
	SourceNeST = "NeST Tanzania"

	nestConfidence    = 0.9
	maxDescriptionLen = 400
	maxRawJSONLen     = 3000
	unknownBuyer      = "Unknown Entity"
)

// Release is the subset of an OCDS release that carries award data.
type Release struct {
	OCID   string  `json:"ocid"`
	Date   string  `json:"date,omitempty"`
	Tender Tender  `json:"tender"`
	Buyer  Party   `json:"buyer"`
	Awards []Award `json:"awards,omitempty"`

	// Raw is the release as received, kept for audit.
	Raw json.RawMessage `json:"-"`
}

// Tender is the OCDS tender block.
type Tender struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Value       Value  `json:"value"`
}

// Party is an OCDS organization reference.
type Party struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Value is an OCDS monetary amount.
type Value struct {
	Amount   *float64 `json:"amount,omitempty"`
	Currency string   `json:"currency,omitempty"`
}

// Period is an OCDS date range.
type Period struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// Award is one OCDS award.
type Award struct {
	ID             string  `json:"id,omitempty"`
	Date           string  `json:"date,omitempty"`
	Value          Value   `json:"value"`
	Suppliers      []Party `json:"suppliers,omitempty"`
	ContractPeriod Period  `json:"contractPeriod"`
}

// ParseRelease maps a release to an award record. Only the first award is
// read; a release without awards is not an award and yields false.
func ParseRelease(rel Release) (*model.AwardRecord, bool) {
	if len(rel.Awards) == 0 {
		return nil, false
	}
	aw := rel.Awards[0]

	winner := model.UnknownEntity
	if len(aw.Suppliers) > 0 && aw.Suppliers[0].Name != "" {
		winner = aw.Suppliers[0].Name
	}
	currency := aw.Value.Currency
	if currency == "" {
		currency = model.DefaultCurrency
	}
	buyer := rel.Buyer.Name
	if buyer == "" {
		buyer = unknownBuyer
	}
	tenderNumber := rel.Tender.ID
	if tenderNumber == "" {
		tenderNumber = rel.OCID
	}
	date := aw.Date
	if date == "" {
		date = rel.Date
	}

	rec := &model.AwardRecord{
		ContractID:        rel.OCID,
		TenderNumber:      tenderNumber,
		TenderDescription: truncate(rel.Tender.Title, maxDescriptionLen),
		BuyerName:         buyer,
		BuyerCode:         rel.Buyer.ID,
		WinningCompany:    winner,
		ContractPrice:     aw.Value.Amount,
		Currency:          currency,
		DeliveryPeriod:    deliveryPeriod(aw.ContractPeriod),
		Estimate:          rel.Tender.Value.Amount,
		Sector:            resolve.ClassifySector(rel.Tender.Title + " " + rel.Tender.Description),
		AwardDate:         truncate(date, 10),
		SourcePlatform:    SourceNeST,
		Confidence:        nestConfidence,
	}
	if rec.ContractPrice != nil && *rec.ContractPrice > 0 {
		rec.PriceRatio = model.DeriveRatio(rec.ContractPrice, rec.Estimate)
	}
	raw := rel.Raw
	if len(raw) == 0 {
		var err error
		if raw, err = json.Marshal(rel); err != nil {
			zap.L().Warn("ingest: marshal raw release", zap.String("ocid", rel.OCID), zap.Error(err))
		}
	}
	rec.RawJSON = truncate(string(raw), maxRawJSONLen)
	return rec, true
}

// deliveryPeriod renders the contract period length as "N days". Missing or
// unparseable dates yield an empty string.
func deliveryPeriod(p Period) string {
	if p.StartDate == "" || p.EndDate == "" {
		return ""
	}
	start, err1 := time.Parse(time.DateOnly, truncate(p.StartDate, 10))
	end, err2 := time.Parse(time.DateOnly, truncate(p.EndDate, 10))
	if err1 != nil || err2 != nil {
		return ""
	}
	return fmt.Sprintf("%d days", int(end.Sub(start).Hours()/24))
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
