package intel

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tenderedge/postaward/internal/model"
	"github.com/tenderedge/postaward/internal/store"
)

const (
	reportCompetitors = 5
	reportBuyers      = 5
	reportInsights    = 10
)

// Report is the intelligence summary served to the CLI and API.
type Report struct {
	Summary        store.Summary             `json:"summary"`
	TopCompetitors []model.CompetitorProfile `json:"top_competitors"`
	TopBuyers      []model.PEProfile         `json:"top_pes"`
	Insights       []model.PatternInsight    `json:"key_insights"`
	GeneratedAt    time.Time                 `json:"generated_at"`
}

// Analyzer runs the rebuild and query operations against a store. Every
// rebuild reads the full award table; there is no incremental mode.
type Analyzer struct {
	store store.Store
}

// NewAnalyzer creates an Analyzer over st.
func NewAnalyzer(st store.Store) *Analyzer {
	return &Analyzer{store: st}
}

// RebuildCompetitors recomputes every competitor profile and upserts it by
// canonical name. Profiles for companies with no current wins are kept.
func (a *Analyzer) RebuildCompetitors(ctx context.Context) (CompetitorBuild, error) {
	awards, err := a.store.ListAwards(ctx)
	if err != nil {
		return CompetitorBuild{}, eris.Wrap(err, "intel: load awards for competitors")
	}
	build := BuildCompetitorProfiles(awards)
	if err := a.store.UpsertCompetitorProfiles(ctx, build.Profiles); err != nil {
		return CompetitorBuild{}, eris.Wrap(err, "intel: save competitor profiles")
	}
	zap.L().Info("intel: competitor profiles rebuilt",
		zap.Int("profiles", len(build.Profiles)),
		zap.String("leader", build.Leader),
		zap.Int("skipped", build.Skipped),
	)
	return build, nil
}

// RebuildPEProfiles recomputes every buyer profile and upserts it by buyer name.
func (a *Analyzer) RebuildPEProfiles(ctx context.Context) ([]model.PEProfile, error) {
	awards, err := a.store.ListAwards(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "intel: load awards for pe profiles")
	}
	profiles := BuildPEProfiles(awards)
	if err := a.store.UpsertPEProfiles(ctx, profiles); err != nil {
		return nil, eris.Wrap(err, "intel: save pe profiles")
	}
	zap.L().Info("intel: pe profiles rebuilt", zap.Int("profiles", len(profiles)))
	return profiles, nil
}

// MinePatterns regenerates the insight table from scratch.
func (a *Analyzer) MinePatterns(ctx context.Context) ([]model.PatternInsight, error) {
	awards, err := a.store.ListAwards(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "intel: load awards for patterns")
	}
	insights, err := MinePatterns(ctx, awards)
	if err != nil {
		return nil, eris.Wrap(err, "intel: mine patterns")
	}
	if err := a.store.ReplaceInsights(ctx, insights); err != nil {
		return nil, eris.Wrap(err, "intel: save insights")
	}
	zap.L().Info("intel: patterns mined", zap.Int("insights", len(insights)))
	return insights, nil
}

// Pricing returns the winning-price benchmark for a sector.
func (a *Analyzer) Pricing(ctx context.Context, sector string) (Benchmark, error) {
	awards, err := a.store.ListAwardsBySector(ctx, sector)
	if err != nil {
		return Benchmark{}, eris.Wrapf(err, "intel: load awards for %s benchmark", sector)
	}
	return PricingBenchmark(sector, awards), nil
}

// Report assembles the intelligence summary from the derived tables.
func (a *Analyzer) Report(ctx context.Context) (*Report, error) {
	sum, err := a.store.Summary(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "intel: report summary")
	}
	competitors, err := a.store.ListCompetitors(ctx, "", reportCompetitors)
	if err != nil {
		return nil, eris.Wrap(err, "intel: report competitors")
	}
	buyers, err := a.store.ListPEProfiles(ctx, reportBuyers)
	if err != nil {
		return nil, eris.Wrap(err, "intel: report pe profiles")
	}
	insights, err := a.store.ListInsights(ctx, reportInsights)
	if err != nil {
		return nil, eris.Wrap(err, "intel: report insights")
	}
	return &Report{
		Summary:        *sum,
		TopCompetitors: competitors,
		TopBuyers:      buyers,
		Insights:       insights,
		GeneratedAt:    time.Now().UTC(),
	}, nil
}
