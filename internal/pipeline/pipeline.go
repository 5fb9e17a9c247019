// Package pipeline sequences one intelligence pass: ingest new awards,
// rebuild competitor and buyer profiles, mine patterns, then distribute the
// new awards to the downstream agents.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tenderedge/postaward/internal/distribute"
	"github.com/tenderedge/postaward/internal/ingest"
	"github.com/tenderedge/postaward/internal/intel"
	"github.com/tenderedge/postaward/internal/model"
	"github.com/tenderedge/postaward/internal/predict"
	"github.com/tenderedge/postaward/internal/store"
)

// Phase names, in execution order.
const (
	PhaseScrape      = "scrape"
	PhaseCompetitors = "competitors"
	PhasePEProfiles  = "pe_profiles"
	PhasePatterns    = "patterns"
	PhaseDistribute  = "distribute"
)

// Scraper ingests awards published since a timestamp.
type Scraper interface {
	Run(ctx context.Context, since string) (ingest.ScrapeResult, error)
}

// Phase records how one step of a run went.
type Phase struct {
	Name       string `json:"name"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// RunSummary describes a completed pass.
type RunSummary struct {
	RunID        string        `json:"run_id"`
	StartedAt    time.Time     `json:"started_at"`
	NewAwards    int           `json:"new_awards"`
	TotalAwards  int           `json:"total_awards"`
	Competitors  int           `json:"competitors"`
	Leader       string        `json:"leader,omitempty"`
	PEProfiles   int           `json:"pe_profiles"`
	Insights     int           `json:"insights"`
	MessagesSent int           `json:"messages_sent"`
	Phases       []Phase       `json:"phases"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Pipeline runs intelligence passes against one store.
type Pipeline struct {
	scraper  Scraper
	store    store.Store
	analyzer *intel.Analyzer
	now      func() time.Time

	// Distribution is enabled only when a home company is configured.
	engine  *predict.Engine
	company *predict.CompanyProfile
	sink    distribute.Sink
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDistribution scores every new award for company and publishes the
// agent messages to sink.
func WithDistribution(engine *predict.Engine, company predict.CompanyProfile, sink distribute.Sink) Option {
	return func(p *Pipeline) {
		p.engine = engine
		p.company = &company
		p.sink = sink
	}
}

// WithClock sets the clock used for message timestamps and watch windows.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline.
func New(scraper Scraper, st store.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		scraper:  scraper,
		store:    st,
		analyzer: intel.NewAnalyzer(st),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run executes one pass. The rebuild phases always run in order, each one
// committing its own table; the first failure stops the pass.
func (p *Pipeline) Run(ctx context.Context, since string) (*RunSummary, error) {
	start := time.Now()
	sum := &RunSummary{RunID: uuid.NewString(), StartedAt: p.now()}
	log := zap.L().With(zap.String("run_id", sum.RunID))
	log.Info("pipeline: starting run", zap.String("since", since))

	trackPhase := func(name string, fn func() error) error {
		t := time.Now()
		err := fn()
		ph := Phase{Name: name, DurationMs: time.Since(t).Milliseconds()}
		if err != nil {
			ph.Error = err.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", ph.DurationMs),
				zap.Error(err),
			)
		} else {
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", ph.DurationMs),
			)
		}
		sum.Phases = append(sum.Phases, ph)
		return err
	}

	var fresh []model.AwardRecord
	steps := []struct {
		name string
		fn   func() error
	}{
		{PhaseScrape, func() error {
			res, err := p.scraper.Run(ctx, since)
			fresh = res.Awards
			sum.NewAwards = res.New()
			return err
		}},
		{PhaseCompetitors, func() error {
			build, err := p.analyzer.RebuildCompetitors(ctx)
			sum.Competitors = len(build.Profiles)
			sum.Leader = build.Leader
			return err
		}},
		{PhasePEProfiles, func() error {
			profiles, err := p.analyzer.RebuildPEProfiles(ctx)
			sum.PEProfiles = len(profiles)
			return err
		}},
		{PhasePatterns, func() error {
			insights, err := p.analyzer.MinePatterns(ctx)
			sum.Insights = len(insights)
			return err
		}},
	}
	for _, s := range steps {
		if err := trackPhase(s.name, s.fn); err != nil {
			return sum, eris.Wrapf(err, "pipeline: %s", s.name)
		}
	}

	if p.sink != nil && len(fresh) > 0 {
		_ = trackPhase(PhaseDistribute, func() error {
			sum.MessagesSent = p.publishAwards(ctx, fresh)
			return nil
		})
	}

	total, err := p.store.CountAwards(ctx)
	if err != nil {
		return sum, eris.Wrap(err, "pipeline: count awards")
	}
	sum.TotalAwards = total
	sum.Elapsed = time.Since(start)

	log.Info("pipeline: run complete",
		zap.Int("new_awards", sum.NewAwards),
		zap.Int("total_awards", sum.TotalAwards),
		zap.Int("competitors", sum.Competitors),
		zap.Int("pe_profiles", sum.PEProfiles),
		zap.Int("insights", sum.Insights),
		zap.Int("messages_sent", sum.MessagesSent),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return sum, nil
}

// publishAwards scores each new award for the home company and publishes its
// messages. A scoring failure still publishes the messages without a score.
func (p *Pipeline) publishAwards(ctx context.Context, awards []model.AwardRecord) int {
	sent := 0
	for _, a := range awards {
		var tps *model.TPSResult
		if p.engine != nil && p.company != nil {
			res, err := p.engine.Score(ctx, tenderFor(a), *p.company)
			if err != nil {
				zap.L().Warn("pipeline: score award failed",
					zap.String("ocid", a.ContractID),
					zap.Error(err),
				)
			} else {
				tps = res
			}
		}
		sent += distribute.Publish(ctx, p.sink, distribute.Build(a, tps, p.now()))
	}
	return sent
}

func tenderFor(a model.AwardRecord) model.Tender {
	t := model.Tender{
		ID:        a.ContractID,
		Title:     a.TenderDescription,
		Sector:    a.Sector,
		BuyerName: a.BuyerName,
	}
	if a.Estimate != nil {
		t.ValueAmount = *a.Estimate
	}
	return t
}
