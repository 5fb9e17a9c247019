package model

import "time"

// InsightType identifies the mining pass that produced an insight.
type InsightType string

const (
	InsightPriceToWin   InsightType = "PRICE_TO_WIN"
	InsightPEActivity   InsightType = "PE_ACTIVITY"
	InsightSectorLeader InsightType = "SECTOR_LEADER"
	InsightSeasonal     InsightType = "SEASONAL"
)

// PatternInsight is one mined, human-readable observation.
type PatternInsight struct {
	Type       InsightType `json:"insight_type"`
	Sector     string      `json:"sector,omitempty"`
	BuyerName  string      `json:"pe_name,omitempty"`
	Text       string      `json:"insight_text"`
	DataPoints int         `json:"data_points"`
	Confidence float64     `json:"confidence"`
	CreatedAt  time.Time   `json:"created_at,omitempty"`
}
