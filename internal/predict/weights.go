package predict

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/tenderedge/postaward/internal/config"
)

// Factor names, in breakdown order.
const (
	FactorCapability = "capability_match"
	FactorHistory    = "historical_win_rate"
	FactorBuyerFavor = "pe_favorability"
	FactorPrice      = "price_competitiveness"
	FactorDensity    = "competitor_density"
	FactorCompliance = "compliance_readiness"
	FactorSeasonal   = "seasonal_timing"
)

const weightTolerance = 1e-6

// Weights holds the convex weights of the seven factors. Changing one weight
// means re-deriving the others so the sum stays 1.
type Weights struct {
	Capability     float64
	History        float64
	BuyerFavor     float64
	Price          float64
	Density        float64
	Compliance     float64
	SeasonalTiming float64
}

// DefaultWeights returns the hand-tuned production weights.
func DefaultWeights() Weights {
	return Weights{
		Capability:     0.25,
		History:        0.20,
		BuyerFavor:     0.15,
		Price:          0.15,
		Density:        0.10,
		Compliance:     0.10,
		SeasonalTiming: 0.05,
	}
}

// WeightsFromConfig copies the configured weights.
func WeightsFromConfig(c config.WeightsConfig) Weights {
	return Weights{
		Capability:     c.Capability,
		History:        c.History,
		BuyerFavor:     c.BuyerFavor,
		Price:          c.Price,
		Density:        c.Density,
		Compliance:     c.Compliance,
		SeasonalTiming: c.SeasonalTiming,
	}
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	var s float64
	for _, f := range w.ordered() {
		s += f.weight
	}
	return s
}

// Validate rejects negative weights and weights that do not sum to 1.
func (w Weights) Validate() error {
	for _, f := range w.ordered() {
		if f.weight < 0 || math.IsNaN(f.weight) {
			return eris.Errorf("predict: weight %s is negative", f.name)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		return eris.Errorf("predict: weights sum to %.6f, want 1", sum)
	}
	return nil
}

type namedWeight struct {
	name   string
	weight float64
}

func (w Weights) ordered() []namedWeight {
	return []namedWeight{
		{FactorCapability, w.Capability},
		{FactorHistory, w.History},
		{FactorBuyerFavor, w.BuyerFavor},
		{FactorPrice, w.Price},
		{FactorDensity, w.Density},
		{FactorCompliance, w.Compliance},
		{FactorSeasonal, w.SeasonalTiming},
	}
}
