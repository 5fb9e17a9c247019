// Package seed carries a small set of realistic award records for
// development and for cold-starting an empty store.
package seed

import (
	"context"
	_ "embed"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tenderedge/postaward/internal/model"
)

//go:embed awards.yaml
var awardsYAML []byte

const seedConfidence = 0.9

type seedAward struct {
	ContractID     string   `yaml:"contract_id"`
	TenderNumber   string   `yaml:"tender_number"`
	Description    string   `yaml:"description"`
	BuyerName      string   `yaml:"buyer_name"`
	BuyerCode      string   `yaml:"buyer_code"`
	Winner         string   `yaml:"winner"`
	ContractPrice  *float64 `yaml:"contract_price"`
	Currency       string   `yaml:"currency"`
	DeliveryPeriod string   `yaml:"delivery_period"`
	Sector         string   `yaml:"sector"`
	AwardDate      string   `yaml:"award_date"`
	Source         string   `yaml:"source"`
	Estimate       *float64 `yaml:"estimate"`
	PriceRatio     *float64 `yaml:"price_ratio"`
}

// AwardWriter stores award records; a known contract id is a no-op.
type AwardWriter interface {
	InsertAward(ctx context.Context, award model.AwardRecord) (bool, error)
}

// Awards returns the demo award records. A record without a named winner
// carries the unknown-entity placeholder.
func Awards() ([]model.AwardRecord, error) {
	var raw []seedAward
	if err := yaml.Unmarshal(awardsYAML, &raw); err != nil {
		return nil, eris.Wrap(err, "seed: decode awards")
	}
	out := make([]model.AwardRecord, 0, len(raw))
	for _, s := range raw {
		rec := model.AwardRecord{
			ContractID:        s.ContractID,
			TenderNumber:      s.TenderNumber,
			TenderDescription: s.Description,
			BuyerName:         s.BuyerName,
			BuyerCode:         s.BuyerCode,
			WinningCompany:    s.Winner,
			ContractPrice:     s.ContractPrice,
			Currency:          s.Currency,
			DeliveryPeriod:    s.DeliveryPeriod,
			Estimate:          s.Estimate,
			PriceRatio:        s.PriceRatio,
			Sector:            s.Sector,
			AwardDate:         s.AwardDate,
			SourcePlatform:    s.Source,
			Confidence:        seedConfidence,
		}
		if rec.WinningCompany == "" {
			rec.WinningCompany = model.UnknownEntity
		}
		rec.Normalize()
		out = append(out, rec)
	}
	return out, nil
}

// Load inserts the demo awards into w and returns how many were new.
func Load(ctx context.Context, w AwardWriter) (int, error) {
	awards, err := Awards()
	if err != nil {
		return 0, err
	}
	added := 0
	for _, a := range awards {
		ok, err := w.InsertAward(ctx, a)
		if err != nil {
			return added, eris.Wrapf(err, "seed: insert %s", a.ContractID)
		}
		if ok {
			added++
		}
	}
	zap.L().Info("seed: demo award records loaded",
		zap.Int("records", len(awards)),
		zap.Int("new", added),
	)
	return added, nil
}
