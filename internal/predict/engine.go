// Package predict computes the Tender Prediction Score (TPS), a gated,
// explainable 0-100 estimate of the home company's chance of winning a tender.
package predict

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tenderedge/postaward/internal/model"
)

// Score labels.
const (
	LabelHigh    = "HIGH"
	LabelMedium  = "MEDIUM"
	LabelLow     = "LOW"
	LabelVeryLow = "VERY LOW"
)

// DefaultMinAwards is the award count below which no score is produced.
const DefaultMinAwards = 50

// Source is the read-only award and profile state the engine scores against.
type Source interface {
	CountAwards(ctx context.Context) (int, error)
	ListAwardsBySector(ctx context.Context, sector string) ([]model.AwardRecord, error)
	GetPEProfile(ctx context.Context, buyerName string) (*model.PEProfile, error)
}

// Engine scores tenders. It never writes, so it may run alongside a rebuild
// and sees whatever profile state was last committed.
type Engine struct {
	src       Source
	weights   Weights
	minAwards int
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for seasonal timing.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine validates the weights once and returns an Engine.
func NewEngine(src Source, weights Weights, minAwards int, opts ...Option) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if minAwards < 0 {
		return nil, eris.Errorf("predict: min awards %d is negative", minAwards)
	}
	e := &Engine{src: src, weights: weights, minAwards: minAwards, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Score computes the TPS of tender for company. Below the data gate the
// result carries a nil TPS and a shortfall message instead of a number.
func (e *Engine) Score(ctx context.Context, tender model.Tender, company CompanyProfile) (*model.TPSResult, error) {
	if err := company.Validate(); err != nil {
		return nil, err
	}

	total, err := e.src.CountAwards(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "predict: count awards")
	}
	if total < e.minAwards {
		return &model.TPSResult{
			Message:    fmt.Sprintf("TPS requires %d award records. Currently: %d. Keep collecting data.", e.minAwards, total),
			DataPoints: total,
		}, nil
	}

	sector := tender.Sector
	if sector == "" {
		sector = model.SectorOther
	}
	awards, err := e.src.ListAwardsBySector(ctx, sector)
	if err != nil {
		return nil, eris.Wrapf(err, "predict: load %s awards", sector)
	}
	var pe *model.PEProfile
	if tender.BuyerName != "" {
		pe, err = e.src.GetPEProfile(ctx, tender.BuyerName)
		if err != nil {
			return nil, eris.Wrapf(err, "predict: load pe profile %s", tender.BuyerName)
		}
	}

	st := newSectorStats(awards)
	scores := map[string]float64{
		FactorCapability: capabilityScore(sector, company.Sectors),
		FactorHistory:    historyScore(st.records),
		FactorBuyerFavor: buyerFavorScore(company.Name, pe),
		FactorPrice:      priceScore(company.TypicalRatio(), st),
		FactorDensity:    densityScore(st.winners),
		FactorCompliance: company.Compliance(),
		FactorSeasonal:   seasonalScore(int(e.now().Month()), pe),
	}

	res := combine(scores, e.weights)
	res.DataPoints = total
	res.Insight = insight(sector, pe, st)

	zap.L().Info("predict: tender scored",
		zap.String("tender", truncate(tender.Title, 50)),
		zap.String("sector", sector),
		zap.Int("tps", *res.TPS),
		zap.String("label", res.Label),
	)
	return res, nil
}

// combine folds factor scores into a TPS with its breakdown.
func combine(scores map[string]float64, w Weights) *model.TPSResult {
	var raw float64
	factors := make([]model.Factor, 0, len(scores))
	for _, nw := range w.ordered() {
		s := scores[nw.name]
		raw += s * nw.weight
		factors = append(factors, model.Factor{
			Name:         nw.name,
			Score:        model.Round(s, 4),
			Weight:       nw.weight,
			Contribution: model.Round(s*nw.weight*100, 2),
		})
	}
	tps := int(math.RoundToEven(raw * 100))
	tps = max(0, min(100, tps))
	label, action := Label(tps)
	return &model.TPSResult{
		TPS:     &tps,
		Label:   label,
		Action:  action,
		Factors: factors,
	}
}

// Label maps a score to its band and recommended action. The bands are
// contiguous and cover [0,100].
func Label(tps int) (label, action string) {
	switch {
	case tps >= 75:
		return LabelHigh, "Strongly recommended — bid on this tender"
	case tps >= 55:
		return LabelMedium, "Worth bidding — strengthen pricing and compliance"
	case tps >= 35:
		return LabelLow, "Proceed with caution — significant competition"
	default:
		return LabelVeryLow, "Not recommended — better opportunities available"
	}
}

func insight(sector string, pe *model.PEProfile, st sectorStats) string {
	if !st.hasRatios() {
		return ""
	}
	lead := "Standard competitive tender"
	if pe != nil && pe.PriceSensitivity == model.SensitivityHigh {
		lead = "PE is price-sensitive"
	}
	return fmt.Sprintf("%s. Winning bids in %s average %.0f%% of estimate.", lead, sector, st.avgRatio*100)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
