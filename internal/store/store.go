package store

import (
	"context"

	"github.com/tenderedge/postaward/internal/model"
)

// Summary counts the rows of the primary and derived tables.
type Summary struct {
	Awards      int `json:"total_awards"`
	Competitors int `json:"competitor_profiles"`
	PEProfiles  int `json:"pe_profiles"`
}

// Store defines the persistence interface for award records and the
// profile and insight tables derived from them.
type Store interface {
	// Award records. InsertAward is a no-op for a known contract id and
	// reports whether a row was added. ListAwards returns insertion order.
	InsertAward(ctx context.Context, award model.AwardRecord) (bool, error)
	GetAward(ctx context.Context, contractID string) (*model.AwardRecord, error)
	ListAwards(ctx context.Context) ([]model.AwardRecord, error)
	ListAwardsBySector(ctx context.Context, sector string) ([]model.AwardRecord, error)
	CountAwards(ctx context.Context) (int, error)

	// Competitor profiles, upserted by canonical name.
	UpsertCompetitorProfiles(ctx context.Context, profiles []model.CompetitorProfile) error
	FindCompetitor(ctx context.Context, name string) (*model.CompetitorProfile, error)
	ListCompetitors(ctx context.Context, sector string, limit int) ([]model.CompetitorProfile, error)

	// PE profiles, upserted by buyer name.
	UpsertPEProfiles(ctx context.Context, profiles []model.PEProfile) error
	GetPEProfile(ctx context.Context, buyerName string) (*model.PEProfile, error)
	FindPEProfile(ctx context.Context, name string) (*model.PEProfile, error)
	ListPEProfiles(ctx context.Context, limit int) ([]model.PEProfile, error)

	// Pattern insights are replaced wholesale on every mining pass.
	ReplaceInsights(ctx context.Context, insights []model.PatternInsight) error
	ListInsights(ctx context.Context, limit int) ([]model.PatternInsight, error)

	// Bid outcomes.
	SaveBidOutcome(ctx context.Context, outcome model.BidOutcome) error

	Summary(ctx context.Context) (*Summary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
