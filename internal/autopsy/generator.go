// Package autopsy explains the outcome of a submitted bid against the award
// it competed for.
package autopsy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tenderedge/postaward/internal/config"
	"github.com/tenderedge/postaward/internal/model"
	"github.com/tenderedge/postaward/pkg/anthropic"
)

const systemPrompt = `You are the TenderEdge Post-Award Intelligence Agent generating a bid autopsy report.
Given our bid, the award outcome and the procuring entity's behavioral profile, return ONLY a JSON object with this exact structure:
{
  "outcome": "WIN" or "LOSS" or "DISQUALIFIED",
  "primary_loss_reason": "single most likely reason we lost",
  "price_analysis": {
    "our_price": 0,
    "winning_price": 0,
    "price_diff_pct": 0,
    "verdict": "We were too expensive / competitive / below market",
    "recommendation": "Specific pricing advice for next time"
  },
  "lessons_learned": ["Specific lesson 1", "Specific lesson 2", "Specific lesson 3"],
  "competitor_intelligence": {
    "winner": "winning company",
    "threat_level": "HIGH/MEDIUM/LOW",
    "notes": "What makes this competitor strong in this sector"
  },
  "pe_insights": {
    "price_sensitivity": "HIGH/MEDIUM/LOW",
    "recommendation": "How to approach this PE better next time"
  },
  "next_bid_actions": ["Action 1 to improve next bid", "Action 2", "Action 3"],
  "appeal_recommended": false,
  "appeal_grounds": ""
}`

// Store is the persistence the generator needs.
type Store interface {
	GetPEProfile(ctx context.Context, buyerName string) (*model.PEProfile, error)
	SaveBidOutcome(ctx context.Context, outcome model.BidOutcome) error
}

// Generator produces bid autopsies.
type Generator struct {
	ai        anthropic.Client
	store     Store
	model     string
	maxTokens int64
	now       func() time.Time
}

// NewGenerator creates a Generator. A nil client always yields the
// deterministic fallback report.
func NewGenerator(ai anthropic.Client, st Store, cfg config.AnthropicConfig) *Generator {
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1500
	}
	return &Generator{
		ai:        ai,
		store:     st,
		model:     cfg.Model,
		maxTokens: maxTokens,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Generate compares bid against award, asks Claude for a report and saves the
// result as a bid outcome. When Claude is unavailable the fallback report is
// used instead; only store failures are returned as errors.
func (g *Generator) Generate(ctx context.Context, bid model.Bid, award model.AwardRecord) (*model.BidOutcome, error) {
	log := zap.L().With(zap.String("ocid", award.ContractID))
	log.Info("autopsy: generating report")

	pe, err := g.store.GetPEProfile(ctx, award.BuyerName)
	if err != nil {
		return nil, eris.Wrap(err, "autopsy: load pe profile")
	}
	if pe == nil {
		pe = &model.PEProfile{
			BuyerName:        award.BuyerName,
			AvgPriceRatio:    model.DefaultPriceRatio,
			PriceSensitivity: model.SensitivityMedium,
		}
	}

	pa := priceAnalysis(bid.SubmittedPrice, award.ContractPrice)

	report, err := g.askClaude(ctx, bid, award, pe, pa)
	if err != nil {
		log.Warn("autopsy: using fallback report", zap.Error(err))
		report = fallbackReport(pa)
	}
	report.PriceAnalysis.OurPrice = pa.OurPrice
	report.PriceAnalysis.WinningPrice = pa.WinningPrice
	report.PriceAnalysis.PriceDiffPct = pa.PriceDiffPct

	bidID := bid.BidID
	if bidID == "" {
		bidID = uuid.NewString()
	}
	outcome := &model.BidOutcome{
		BidID:          bidID,
		TenantID:       bid.TenantID,
		ContractID:     award.ContractID,
		Outcome:        report.Outcome,
		OurPrice:       pa.OurPrice,
		WinningPrice:   pa.WinningPrice,
		PriceDiffPct:   pa.PriceDiffPct,
		Autopsy:        report,
		LessonsLearned: report.LessonsLearned,
		DetectedAt:     g.now(),
	}
	if err := g.store.SaveBidOutcome(ctx, *outcome); err != nil {
		return nil, eris.Wrap(err, "autopsy: save bid outcome")
	}

	log.Info("autopsy: report complete",
		zap.String("outcome", string(report.Outcome)),
		zap.Bool("fallback", report.Fallback),
	)
	return outcome, nil
}

// priceAnalysis computes the percentage difference of our price against the
// winning price, rounded to 2 dp. It is nil unless both prices are positive.
func priceAnalysis(our, win *float64) model.PriceAnalysis {
	pa := model.PriceAnalysis{OurPrice: our, WinningPrice: win}
	if our != nil && win != nil && *our > 0 && *win > 0 {
		pa.PriceDiffPct = model.Float(model.Round((*our-*win) / *win * 100, 2))
	}
	return pa
}

func (g *Generator) askClaude(ctx context.Context, bid model.Bid, award model.AwardRecord, pe *model.PEProfile, pa model.PriceAnalysis) (*model.AutopsyReport, error) {
	if g.ai == nil {
		return nil, eris.New("autopsy: no anthropic client configured")
	}

	var report model.AutopsyReport
	err := anthropic.DecodeJSON(ctx, g.ai, anthropic.Prompt{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System:    systemPrompt,
		User:      briefing(bid, award, pe, pa),
		Operation: "autopsy",
	}, &report)
	if err != nil {
		return nil, err
	}
	switch report.Outcome {
	case model.OutcomeWin, model.OutcomeLoss, model.OutcomeDisqualified:
	default:
		return nil, eris.Errorf("autopsy: unexpected outcome %q", report.Outcome)
	}
	return &report, nil
}

// briefing renders the bid, the award and the buyer profile for Claude.
func briefing(bid model.Bid, award model.AwardRecord, pe *model.PEProfile, pa model.PriceAnalysis) string {
	p := message.NewPrinter(language.English)
	money := func(v *float64, missing string) string {
		if v == nil || *v <= 0 {
			return missing
		}
		return p.Sprintf("TZS %.0f", *v)
	}
	orNotRecorded := func(s string) string {
		if s == "" {
			return "Not recorded"
		}
		return s
	}
	diff := "Not calculable"
	if pa.PriceDiffPct != nil {
		diff = fmt.Sprintf("%+.1f%% vs winning price", *pa.PriceDiffPct)
	}
	winners := "[]"
	if len(pe.TopWinners) > 0 {
		winners = strings.Join(pe.TopWinners, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "TENDER: %s\nPE: %s\nSECTOR: %s\n\n", award.TenderDescription, award.BuyerName, award.Sector)
	fmt.Fprintf(&b, "OUR BID:\n- Submitted Price: %s\n- Technical Score: %s\n- Compliance Status: %s\n\n",
		money(bid.SubmittedPrice, "Not recorded"), orNotRecorded(bid.TechnicalScore), orNotRecorded(bid.ComplianceStatus))
	fmt.Fprintf(&b, "OUTCOME:\n- Winner: %s\n- Winning Price: %s\n- Price Difference: %s\n- Delivery Period: %s\n\n",
		award.WinningCompany, money(award.ContractPrice, "Not available"), diff, orNotRecorded(award.DeliveryPeriod))
	fmt.Fprintf(&b, "PE BEHAVIORAL PROFILE:\n- Price Sensitivity: %s\n- Avg Win Ratio: %.1f%% of estimate\n- Top Historical Winners: %s\n",
		pe.PriceSensitivity, pe.AvgPriceRatio*100, winners)
	return b.String()
}

// fallbackReport is the deterministic report used when Claude is unavailable.
func fallbackReport(pa model.PriceAnalysis) *model.AutopsyReport {
	return &model.AutopsyReport{
		Outcome:           model.OutcomeLoss,
		PrimaryLossReason: "Could not generate autopsy: check the Anthropic API key",
		PriceAnalysis:     pa,
		LessonsLearned:    []string{"Ensure POSTAWARD_ANTHROPIC_KEY is set for a full autopsy"},
		NextBidActions:    []string{"Review pricing strategy", "Analyse PE award patterns"},
		Fallback:          true,
	}
}
