package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tenderedge/postaward/internal/distribute"
	"github.com/tenderedge/postaward/internal/ingest"
	"github.com/tenderedge/postaward/internal/intel"
	"github.com/tenderedge/postaward/internal/pipeline"
	"github.com/tenderedge/postaward/internal/predict"
	"github.com/tenderedge/postaward/internal/resilience"
	"github.com/tenderedge/postaward/internal/store"
	"github.com/tenderedge/postaward/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "tenderedge.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens the configured store and applies the schema.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newAnthropic returns nil when no API key is configured, which makes the
// extraction and autopsy paths fall back to their defaults.
func newAnthropic() anthropic.Client {
	if cfg.Anthropic.Key == "" {
		zap.L().Warn("anthropic key not set, LLM features disabled (POSTAWARD_ANTHROPIC_KEY)")
		return nil
	}
	return anthropic.NewClient(cfg.Anthropic.Key, time.Duration(cfg.Anthropic.TimeoutSecs)*time.Second)
}

func newEngine(st store.Store) (*predict.Engine, error) {
	return predict.NewEngine(st, predict.WeightsFromConfig(cfg.Prediction.Weights), cfg.Prediction.MinAwards)
}

// newPipeline wires the NeST scraper and, when a company profile is
// configured, distribution of new awards.
func newPipeline(st store.Store) (*pipeline.Pipeline, error) {
	policy := resilience.NewPolicy(cfg.Retry)
	scraper := ingest.NewScraper(ingest.NewNestClient(cfg.Nest, policy), st, cfg.Nest.MaxPages)

	var opts []pipeline.Option
	if cfg.Company.ProfilePath != "" {
		company, err := predict.LoadCompanyProfile(cfg.Company.ProfilePath)
		if err != nil {
			return nil, err
		}
		engine, err := newEngine(st)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithDistribution(engine, company, distribute.NewSink(cfg.Distribution, policy)))
	}
	return pipeline.New(scraper, st, opts...), nil
}

// rebuildAll refreshes every derived table after awards were added outside
// a pipeline run.
func rebuildAll(ctx context.Context, st store.Store) error {
	an := intel.NewAnalyzer(st)
	if _, err := an.RebuildCompetitors(ctx); err != nil {
		return err
	}
	if _, err := an.RebuildPEProfiles(ctx); err != nil {
		return err
	}
	_, err := an.MinePatterns(ctx)
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
