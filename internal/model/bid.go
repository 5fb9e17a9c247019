package model

import "time"

// BidOutcomeStatus is the result of a submitted bid.
type BidOutcomeStatus string

const (
	OutcomeWin          BidOutcomeStatus = "WIN"
	OutcomeLoss         BidOutcomeStatus = "LOSS"
	OutcomeDisqualified BidOutcomeStatus = "DISQUALIFIED"
	OutcomePending      BidOutcomeStatus = "PENDING"
)

// Bid is a bid the user submitted against a tender.
type Bid struct {
	BidID            string   `json:"bid_id"`
	TenantID         string   `json:"tenant_id"`
	ContractID       string   `json:"contract_id"`
	SubmittedPrice   *float64 `json:"submitted_price,omitempty"`
	TechnicalScore   string   `json:"technical_score,omitempty"`
	ComplianceStatus string   `json:"compliance_status,omitempty"`
}

// PriceAnalysis compares the user's price against the winning price.
type PriceAnalysis struct {
	OurPrice       *float64 `json:"our_price"`
	WinningPrice   *float64 `json:"winning_price"`
	PriceDiffPct   *float64 `json:"price_diff_pct"`
	Verdict        string   `json:"verdict,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// CompetitorNote summarizes the winner of a lost bid.
type CompetitorNote struct {
	Winner      string `json:"winner"`
	ThreatLevel string `json:"threat_level"`
	Notes       string `json:"notes"`
}

// BuyerNote summarizes how to approach a buyer next time.
type BuyerNote struct {
	PriceSensitivity string `json:"price_sensitivity"`
	Recommendation   string `json:"recommendation"`
}

// AutopsyReport explains the outcome of a bid.
type AutopsyReport struct {
	Outcome           BidOutcomeStatus `json:"outcome"`
	PrimaryLossReason string           `json:"primary_loss_reason"`
	PriceAnalysis     PriceAnalysis    `json:"price_analysis"`
	LessonsLearned    []string         `json:"lessons_learned"`
	Competitor        *CompetitorNote  `json:"competitor_intelligence,omitempty"`
	Buyer             *BuyerNote       `json:"pe_insights,omitempty"`
	NextBidActions    []string         `json:"next_bid_actions"`
	AppealRecommended bool             `json:"appeal_recommended"`
	AppealGrounds     string           `json:"appeal_grounds,omitempty"`
	Fallback          bool             `json:"-"`
}

// BidOutcome links a bid to the award it competed for.
type BidOutcome struct {
	BidID            string           `json:"bid_id"`
	TenantID         string           `json:"tenant_id"`
	ContractID       string           `json:"contract_id"`
	Outcome          BidOutcomeStatus `json:"outcome"`
	OurPrice         *float64         `json:"our_price,omitempty"`
	WinningPrice     *float64         `json:"winning_price,omitempty"`
	PriceDiffPct     *float64         `json:"price_diff_pct,omitempty"`
	RejectionReasons []string         `json:"rejection_reasons,omitempty"`
	Autopsy          *AutopsyReport   `json:"autopsy_report,omitempty"`
	LessonsLearned   []string         `json:"lessons_learned,omitempty"`
	DetectedAt       time.Time        `json:"detected_at,omitempty"`
}
