// Package extract turns free-text award notices into structured award data
// using Claude.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tenderedge/postaward/internal/config"
	"github.com/tenderedge/postaward/internal/model"
	"github.com/tenderedge/postaward/pkg/anthropic"
)

// maxNoticeChars is the truncation limit for notice text sent to Claude.
const maxNoticeChars = 3000

// ErrUnavailable reports that no extraction could be produced. Callers treat
// it as insufficient data.
var ErrUnavailable = eris.New("extract: extraction unavailable")

const systemPrompt = `You are parsing a procurement award notice from Tanzania.
Extract ALL available data and return ONLY valid JSON with this exact structure:
{
  "winning_company": "exact company name as written",
  "contract_price": 123456789,
  "contract_currency": "TZS",
  "delivery_period": "180 days",
  "award_date": "YYYY-MM-DD",
  "rejection_reasons": ["reason 1", "reason 2"],
  "evaluation_criteria": {"technical": 70, "financial": 30},
  "other_bidders": [
    {"name": "Company B", "price": 0, "score": 0, "rejected_reason": ""}
  ],
  "appeal_window_days": 5,
  "confidence": 0.95
}
If a field is not found, use null. Return ONLY the JSON object, nothing else.`

// TenderContext is what is already known about the tender a notice belongs to.
type TenderContext struct {
	ContractID string   `json:"ocid,omitempty"`
	Title      string   `json:"title,omitempty"`
	BuyerName  string   `json:"procuring_entity,omitempty"`
	Sector     string   `json:"sector,omitempty"`
	Estimate   *float64 `json:"estimate,omitempty"`
}

// Bidder is a losing bidder named in a notice.
type Bidder struct {
	Name           string   `json:"name"`
	Price          *float64 `json:"price"`
	Score          *float64 `json:"score"`
	RejectedReason string   `json:"rejected_reason"`
}

// Extraction is the structured content of an award notice. Absent fields
// are nil or empty.
type Extraction struct {
	WinningCompany     string             `json:"winning_company"`
	ContractPrice      *float64           `json:"contract_price"`
	Currency           string             `json:"contract_currency"`
	DeliveryPeriod     string             `json:"delivery_period"`
	AwardDate          string             `json:"award_date"`
	RejectionReasons   []string           `json:"rejection_reasons"`
	EvaluationCriteria map[string]float64 `json:"evaluation_criteria"`
	OtherBidders       []Bidder           `json:"other_bidders"`
	AppealWindowDays   *int               `json:"appeal_window_days"`
	Confidence         *float64           `json:"confidence"`
}

// ApplyTo fills the gaps in rec from the extraction. Values already on the
// record are kept.
func (e *Extraction) ApplyTo(rec *model.AwardRecord) {
	if e.WinningCompany != "" && (rec.WinningCompany == "" || rec.WinningCompany == model.UnknownEntity) {
		rec.WinningCompany = e.WinningCompany
	}
	if rec.ContractPrice == nil && e.ContractPrice != nil && *e.ContractPrice > 0 {
		rec.ContractPrice = model.Float(*e.ContractPrice)
		rec.PriceRatio = nil
	}
	if rec.Currency == "" && e.Currency != "" {
		rec.Currency = strings.ToUpper(e.Currency)
	}
	if rec.DeliveryPeriod == "" {
		rec.DeliveryPeriod = e.DeliveryPeriod
	}
	if rec.AwardDate == "" && len(e.AwardDate) >= 10 {
		rec.AwardDate = e.AwardDate[:10]
	}
	if rec.Confidence == 0 && e.Confidence != nil && *e.Confidence >= 0 && *e.Confidence <= 1 {
		rec.Confidence = *e.Confidence
	}
	rec.Normalize()
}

// Parser extracts award data from notice text.
type Parser struct {
	ai        anthropic.Client
	model     string
	maxTokens int64
}

// NewParser creates a Parser. A nil client yields a Parser that always
// returns ErrUnavailable.
func NewParser(ai anthropic.Client, cfg config.AnthropicConfig) *Parser {
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1500
	}
	return &Parser{ai: ai, model: cfg.Model, maxTokens: maxTokens}
}

// ParseAwardNotice sends the notice text with its tender context to Claude
// and decodes the reply. Any API or decode failure yields ErrUnavailable.
func (p *Parser) ParseAwardNotice(ctx context.Context, rawText string, tc TenderContext) (*Extraction, error) {
	if p.ai == nil {
		return nil, ErrUnavailable
	}
	log := zap.L().With(zap.String("ocid", tc.ContractID))

	tcJSON, err := json.MarshalIndent(tc, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "extract: marshal tender context")
	}
	if len(rawText) > maxNoticeChars {
		rawText = rawText[:maxNoticeChars]
	}
	userMsg := fmt.Sprintf("TENDER CONTEXT:\n%s\n\nAWARD NOTICE TEXT:\n%s", tcJSON, rawText)

	var out Extraction
	err = anthropic.DecodeJSON(ctx, p.ai, anthropic.Prompt{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System:    systemPrompt,
		User:      userMsg,
		Operation: "extract",
	}, &out)
	if err != nil {
		log.Warn("extract: notice not parsed", zap.Error(err))
		return nil, ErrUnavailable
	}
	return &out, nil
}
