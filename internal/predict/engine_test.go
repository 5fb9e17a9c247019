package predict

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenderedge/postaward/internal/model"
)

func march() time.Time { return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC) }

func scenarioSource(total int) *fakeSource {
	return &fakeSource{
		total: total,
		bySector: map[string][]model.AwardRecord{
			model.SectorICT: {
				ratioAward("1", "Alpha Systems Ltd", model.SectorICT, 0.85),
				ratioAward("2", "Beta Networks", model.SectorICT, 0.90),
				ratioAward("3", "Gamma Digital", model.SectorICT, 0.95),
				ratioAward("4", "ALPHA SYSTEMS LIMITED", model.SectorICT, 0.88),
				ratioAward("5", "Beta Networks", model.SectorICT, 0.92),
				ratioAward("6", "Delta Solutions", model.SectorICT, 0.90),
			},
		},
		profiles: map[string]*model.PEProfile{
			"TANESCO": {
				BuyerName:        "TANESCO",
				TopWinners:       []string{"Simba Tech Ltd", "Beta Networks"},
				PeakMonths:       []int{3, 6, 9},
				Confidence:       0.5,
				PriceSensitivity: model.SensitivityHigh,
			},
		},
	}
}

func simbaTech() CompanyProfile {
	return CompanyProfile{
		Name:              "Simba Tech",
		Sectors:           []string{model.SectorICT},
		ComplianceScore:   model.Float(0.8),
		TypicalPriceRatio: model.Float(0.92),
	}
}

func newTestEngine(t *testing.T, src Source) *Engine {
	t.Helper()
	e, err := NewEngine(src, DefaultWeights(), DefaultMinAwards, WithClock(march))
	require.NoError(t, err)
	return e
}

func TestNewEngine_RejectsBadWeights(t *testing.T) {
	w := DefaultWeights()
	w.Capability = 0.5
	_, err := NewEngine(&fakeSource{}, w, DefaultMinAwards)
	assert.ErrorContains(t, err, "predict: weights sum")

	_, err = NewEngine(&fakeSource{}, DefaultWeights(), -1)
	assert.Error(t, err)
}

func TestScore_Gate(t *testing.T) {
	tender := model.Tender{Title: "Network upgrade", Sector: model.SectorICT, BuyerName: "TANESCO"}

	t.Run("49 records", func(t *testing.T) {
		res, err := newTestEngine(t, scenarioSource(49)).Score(context.Background(), tender, simbaTech())
		require.NoError(t, err)
		assert.Nil(t, res.TPS)
		assert.Equal(t, "TPS requires 50 award records. Currently: 49. Keep collecting data.", res.Message)
		assert.Equal(t, 49, res.DataPoints)
		assert.Empty(t, res.Factors)
	})

	t.Run("50 records", func(t *testing.T) {
		res, err := newTestEngine(t, scenarioSource(50)).Score(context.Background(), tender, simbaTech())
		require.NoError(t, err)
		require.NotNil(t, res.TPS)
		assert.GreaterOrEqual(t, *res.TPS, 0)
		assert.LessOrEqual(t, *res.TPS, 100)
		assert.Len(t, res.Factors, 7)
	})
}

func TestScore_Breakdown(t *testing.T) {
	tender := model.Tender{Title: "Network upgrade", Sector: model.SectorICT, BuyerName: "TANESCO"}
	res, err := newTestEngine(t, scenarioSource(120)).Score(context.Background(), tender, simbaTech())
	require.NoError(t, err)
	require.NotNil(t, res.TPS)

	// 0.85*.25 + 0.46*.20 + 0.675*.15 + 0.8*.15 + 0.65*.10 + 0.8*.10 + 0.85*.05 = 0.71325
	assert.Equal(t, 71, *res.TPS)
	assert.Equal(t, LabelMedium, res.Label)
	assert.Equal(t, "Worth bidding — strengthen pricing and compliance", res.Action)
	assert.Equal(t, 120, res.DataPoints)
	assert.Equal(t, "PE is price-sensitive. Winning bids in ICT average 90% of estimate.", res.Insight)

	want := map[string]float64{
		FactorCapability: 0.85,
		FactorHistory:    0.46,
		FactorBuyerFavor: 0.675,
		FactorPrice:      0.8,
		FactorDensity:    0.65,
		FactorCompliance: 0.8,
		FactorSeasonal:   0.85,
	}
	var total float64
	for name, score := range want {
		f, ok := res.Factor(name)
		require.True(t, ok, name)
		assert.InDelta(t, score, f.Score, 1e-4, name)
		total += f.Contribution
	}
	assert.InDelta(t, 71.325, total, 0.02)

	f, _ := res.Factor(FactorCapability)
	assert.Equal(t, 0.25, f.Weight)
	assert.InDelta(t, 21.25, f.Contribution, 1e-9)
}

func TestScore_UnknownBuyerAndEmptySector(t *testing.T) {
	src := &fakeSource{total: 60}
	tender := model.Tender{Title: "Office chairs", BuyerName: "Unlisted Council"}
	company := CompanyProfile{Name: "Nyota Supplies", Sectors: []string{model.SectorOther}}

	res, err := newTestEngine(t, src).Score(context.Background(), tender, company)
	require.NoError(t, err)
	require.NotNil(t, res.TPS)

	// 0.85*.25 + 0.45*.20 + 0.50*.15 + 0.60*.15 + 0.85*.10 + 0.70*.10 + 0.60*.05 = 0.6525
	assert.Equal(t, 65, *res.TPS)
	assert.Equal(t, LabelMedium, res.Label)
	assert.Empty(t, res.Insight)

	seasonal, _ := res.Factor(FactorSeasonal)
	assert.Equal(t, 0.60, seasonal.Score)
	compliance, _ := res.Factor(FactorCompliance)
	assert.Equal(t, 0.70, compliance.Score)
}

func TestScore_StandardInsightWithoutSensitiveBuyer(t *testing.T) {
	src := scenarioSource(60)
	src.profiles["TANESCO"].PriceSensitivity = model.SensitivityMedium
	tender := model.Tender{Sector: model.SectorICT, BuyerName: "TANESCO"}

	res, err := newTestEngine(t, src).Score(context.Background(), tender, simbaTech())
	require.NoError(t, err)
	assert.Equal(t, "Standard competitive tender. Winning bids in ICT average 90% of estimate.", res.Insight)
}

func TestScore_InvalidCompany(t *testing.T) {
	company := simbaTech()
	company.ComplianceScore = model.Float(1.5)
	_, err := newTestEngine(t, scenarioSource(60)).Score(context.Background(), model.Tender{}, company)
	assert.ErrorContains(t, err, "compliance_score")
}

func TestScore_SourceError(t *testing.T) {
	src := &fakeSource{countErr: errCount}
	_, err := newTestEngine(t, src).Score(context.Background(), model.Tender{}, simbaTech())
	assert.ErrorContains(t, err, "predict: count awards")
}

func TestLabel_Bands(t *testing.T) {
	tests := []struct {
		tps  int
		want string
	}{
		{100, LabelHigh}, {75, LabelHigh},
		{74, LabelMedium}, {55, LabelMedium},
		{54, LabelLow}, {35, LabelLow},
		{34, LabelVeryLow}, {0, LabelVeryLow},
	}
	for _, tt := range tests {
		label, action := Label(tt.tps)
		assert.Equal(t, tt.want, label, "tps=%d", tt.tps)
		assert.NotEmpty(t, action)
	}
}

func TestLabel_PartitionsRange(t *testing.T) {
	order := []string{LabelVeryLow, LabelLow, LabelMedium, LabelHigh}
	rank := map[string]int{}
	for i, l := range order {
		rank[l] = i
	}
	prev := -1
	for tps := 0; tps <= 100; tps++ {
		label, _ := Label(tps)
		r, ok := rank[label]
		require.True(t, ok)
		assert.GreaterOrEqual(t, r, prev, "bands must be contiguous at %d", tps)
		prev = r
	}
	assert.Equal(t, len(order)-1, prev)
}

func TestCombine_WeightClosure(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	w := DefaultWeights()
	for i := 0; i < 1000; i++ {
		scores := map[string]float64{}
		var raw float64
		for _, nw := range w.ordered() {
			s := rng.Float64()
			scores[nw.name] = s
			raw += s * nw.weight
		}
		assert.GreaterOrEqual(t, raw, 0.0)
		assert.LessOrEqual(t, raw, 1.0+1e-12)

		res := combine(scores, w)
		assert.GreaterOrEqual(t, *res.TPS, 0)
		assert.LessOrEqual(t, *res.TPS, 100)
	}

	ones := map[string]float64{}
	zeros := map[string]float64{}
	for _, nw := range w.ordered() {
		ones[nw.name] = 1
		zeros[nw.name] = 0
	}
	assert.Equal(t, 100, *combine(ones, w).TPS)
	assert.Equal(t, 0, *combine(zeros, w).TPS)
}
