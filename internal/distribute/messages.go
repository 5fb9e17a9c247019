// Package distribute turns newly observed awards into typed messages for the
// downstream agents and delivers them through a Sink.
package distribute

import (
	"time"

	"github.com/google/uuid"

	"github.com/tenderedge/postaward/internal/model"
)

// MessageType identifies the kind of agent message.
type MessageType string

const (
	MessageWinProbability       MessageType = "WIN_PROBABILITY"
	MessagePEAwardData          MessageType = "PE_AWARD_DATA"
	MessagePriceBenchmarkUpdate MessageType = "PRICE_BENCHMARK_UPDATE"
)

// Agent names.
const (
	AgentPostAward      = "post_award_intelligence"
	AgentGoNoGo         = "go_nogo_decision"
	AgentPEIntelligence = "pe_intelligence"
	AgentPricingAdvisor = "pricing_advisor"
)

// Envelope carries the routing fields shared by every message.
type Envelope struct {
	ID        string      `json:"message_id"`
	Type      MessageType `json:"message_type"`
	From      string      `json:"from_agent"`
	To        string      `json:"to_agent"`
	Timestamp time.Time   `json:"timestamp"`
}

// Header returns the routing fields.
func (e Envelope) Header() Envelope { return e }

// Message is any payload a Sink can deliver.
type Message interface {
	Header() Envelope
}

// WinProbability tells the go/no-go agent how a tender like this one scores.
type WinProbability struct {
	Envelope
	ContractID string `json:"ocid"`
	Sector     string `json:"sector"`
	BuyerName  string `json:"pe_name"`
	TPS        *int   `json:"tps"`
	Label      string `json:"tps_label"`
	Action     string `json:"recommended_action"`
}

// AwardData is the award summary forwarded to the PE intelligence agent.
type AwardData struct {
	Winner     string   `json:"winner"`
	Price      *float64 `json:"price"`
	PriceRatio *float64 `json:"price_ratio"`
	Sector     string   `json:"sector"`
	AwardDate  string   `json:"award_date"`
}

// PEAwardData reports a new award to the PE intelligence agent.
type PEAwardData struct {
	Envelope
	BuyerName string    `json:"pe_name"`
	BuyerCode string    `json:"pe_code"`
	Award     AwardData `json:"award_data"`
}

// PriceBenchmarkUpdate feeds a new winning ratio to the pricing advisor.
type PriceBenchmarkUpdate struct {
	Envelope
	Sector        string   `json:"sector"`
	BuyerName     string   `json:"pe_name"`
	WinningRatio  *float64 `json:"winning_ratio"`
	ContractValue *float64 `json:"contract_value"`
}

// Messages is the set produced for one award.
type Messages struct {
	GoNoGo  WinProbability       `json:"go_nogo"`
	PEIntel PEAwardData          `json:"pe_intel"`
	Pricing PriceBenchmarkUpdate `json:"pricing"`
}

// All returns the messages in delivery order.
func (m Messages) All() []Message {
	return []Message{m.GoNoGo, m.PEIntel, m.Pricing}
}

// Build constructs the three agent messages for award. A nil tps leaves the
// score fields empty.
func Build(award model.AwardRecord, tps *model.TPSResult, now time.Time) Messages {
	now = now.UTC()
	envelope := func(t MessageType, to string) Envelope {
		return Envelope{
			ID:        uuid.New().String(),
			Type:      t,
			From:      AgentPostAward,
			To:        to,
			Timestamp: now,
		}
	}

	win := WinProbability{
		Envelope:   envelope(MessageWinProbability, AgentGoNoGo),
		ContractID: award.ContractID,
		Sector:     award.Sector,
		BuyerName:  award.BuyerName,
	}
	if tps != nil {
		win.TPS = tps.TPS
		win.Label = tps.Label
		win.Action = tps.Action
	}

	return Messages{
		GoNoGo: win,
		PEIntel: PEAwardData{
			Envelope:  envelope(MessagePEAwardData, AgentPEIntelligence),
			BuyerName: award.BuyerName,
			BuyerCode: award.BuyerCode,
			Award: AwardData{
				Winner:     award.WinningCompany,
				Price:      award.ContractPrice,
				PriceRatio: award.PriceRatio,
				Sector:     award.Sector,
				AwardDate:  award.AwardDate,
			},
		},
		Pricing: PriceBenchmarkUpdate{
			Envelope:      envelope(MessagePriceBenchmarkUpdate, AgentPricingAdvisor),
			Sector:        award.Sector,
			BuyerName:     award.BuyerName,
			WinningRatio:  award.PriceRatio,
			ContractValue: award.ContractPrice,
		},
	}
}
