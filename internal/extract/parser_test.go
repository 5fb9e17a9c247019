package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tenderedge/postaward/internal/config"
	"github.com/tenderedge/postaward/internal/model"
	"github.com/tenderedge/postaward/pkg/anthropic"
	anthropicmocks "github.com/tenderedge/postaward/pkg/anthropic/mocks"
)

var testCfg = config.AnthropicConfig{Model: "claude-haiku-4-5-20251001", MaxTokens: 800}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: text}}}
}

const noticeReply = "```json\n" + `{
  "winning_company": "Kilimanjaro Builders Ltd",
  "contract_price": 950000000,
  "contract_currency": "tzs",
  "delivery_period": "180 days",
  "award_date": "2026-02-01",
  "rejection_reasons": ["Missing tax clearance"],
  "evaluation_criteria": {"technical": 70, "financial": 30},
  "other_bidders": [{"name": "Coastal Works", "price": 990000000, "score": 71.5, "rejected_reason": ""}],
  "appeal_window_days": null,
  "confidence": 0.95
}` + "\n```"

func TestParseAwardNotice(t *testing.T) {
	ai := anthropicmocks.NewMockClient(t)
	notice := strings.Repeat("n", 5000)

	ai.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		msg := req.Messages[0].Content
		return req.Model == testCfg.Model &&
			req.MaxTokens == 800 &&
			len(req.System) == 1 && req.System[0].CacheTTL != "" &&
			strings.Contains(msg, `"ocid": "tz-001"`) &&
			strings.Count(msg, "n") >= maxNoticeChars &&
			!strings.Contains(msg, strings.Repeat("n", maxNoticeChars+1))
	})).Return(textResponse(noticeReply), nil).Once()

	p := NewParser(ai, testCfg)
	got, err := p.ParseAwardNotice(context.Background(), notice, TenderContext{ContractID: "tz-001", Title: "Road works"})
	require.NoError(t, err)

	assert.Equal(t, "Kilimanjaro Builders Ltd", got.WinningCompany)
	assert.Equal(t, 950000000.0, *got.ContractPrice)
	assert.Equal(t, []string{"Missing tax clearance"}, got.RejectionReasons)
	assert.Equal(t, 70.0, got.EvaluationCriteria["technical"])
	require.Len(t, got.OtherBidders, 1)
	assert.Equal(t, 71.5, *got.OtherBidders[0].Score)
	assert.Nil(t, got.AppealWindowDays)
}

func TestParseAwardNotice_Unavailable(t *testing.T) {
	tests := []struct {
		name  string
		reply *anthropic.MessageResponse
		err   error
	}{
		{"api error", nil, errors.New("anthropic: create message: 529 overloaded")},
		{"not json", textResponse("I could not find an award in this text."), nil},
		{"truncated json", textResponse(`{"winning_company": "Acme`), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ai := anthropicmocks.NewMockClient(t)
			ai.On("CreateMessage", mock.Anything, mock.Anything).Return(tt.reply, tt.err).Once()

			got, err := NewParser(ai, testCfg).ParseAwardNotice(context.Background(), "notice", TenderContext{})
			assert.Nil(t, got)
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestParseAwardNotice_NoClient(t *testing.T) {
	_, err := NewParser(nil, testCfg).ParseAwardNotice(context.Background(), "notice", TenderContext{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestExtraction_ApplyTo(t *testing.T) {
	price := 900.0
	e := Extraction{
		WinningCompany: "Afya Supplies",
		ContractPrice:  &price,
		Currency:       "usd",
		DeliveryPeriod: "30 days",
		AwardDate:      "2026-03-04T10:00:00Z",
		Confidence:     model.Float(0.95),
	}

	t.Run("fills gaps", func(t *testing.T) {
		rec := model.AwardRecord{
			ContractID:     "tz-9",
			WinningCompany: model.UnknownEntity,
			Estimate:       model.Float(1000),
			Sector:         model.SectorMedical,
		}
		e.ApplyTo(&rec)

		assert.Equal(t, "Afya Supplies", rec.WinningCompany)
		assert.Equal(t, 900.0, *rec.ContractPrice)
		assert.Equal(t, 0.9, *rec.PriceRatio)
		assert.Equal(t, "USD", rec.Currency)
		assert.Equal(t, "30 days", rec.DeliveryPeriod)
		assert.Equal(t, "2026-03-04", rec.AwardDate)
		assert.Equal(t, 0.95, rec.Confidence)
	})

	t.Run("keeps known values", func(t *testing.T) {
		rec := model.AwardRecord{
			ContractID:     "tz-9",
			WinningCompany: "Other Winner",
			ContractPrice:  model.Float(500),
			Currency:       "TZS",
			AwardDate:      "2026-01-01",
			Confidence:     0.9,
		}
		e.ApplyTo(&rec)

		assert.Equal(t, "Other Winner", rec.WinningCompany)
		assert.Equal(t, 500.0, *rec.ContractPrice)
		assert.Equal(t, "TZS", rec.Currency)
		assert.Equal(t, "2026-01-01", rec.AwardDate)
		assert.Equal(t, 0.9, rec.Confidence)
	})
}
