package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tenderedge/postaward/internal/model"
)

const (
	firstCursor     = "0"
	defaultMaxPages = 500
)

// ReleaseFetcher returns one page of releases at a cursor.
type ReleaseFetcher interface {
	FetchReleases(ctx context.Context, cursor, since string) (*ReleasePage, error)
}

// AwardWriter stores award records; a known contract id is a no-op.
type AwardWriter interface {
	InsertAward(ctx context.Context, award model.AwardRecord) (bool, error)
}

// ScrapeResult summarizes one walk of the feed.
type ScrapeResult struct {
	Pages    int
	Releases int
	Skipped  int
	// Awards holds the newly inserted records, in feed order.
	Awards []model.AwardRecord
}

// New returns the number of newly inserted awards.
func (r ScrapeResult) New() int { return len(r.Awards) }

// Scraper walks the release feed and stores every award it finds.
type Scraper struct {
	fetcher  ReleaseFetcher
	store    AwardWriter
	maxPages int
}

// NewScraper creates a Scraper. maxPages bounds a single walk; zero means 500.
func NewScraper(fetcher ReleaseFetcher, store AwardWriter, maxPages int) *Scraper {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &Scraper{fetcher: fetcher, store: store, maxPages: maxPages}
}

// Run walks the feed from the first cursor. The walk ends on an empty page,
// an empty or already visited next cursor, or a failed fetch, which is
// logged and treated as the end of the data. Only store failures and
// cancellation are returned as errors.
func (s *Scraper) Run(ctx context.Context, since string) (ScrapeResult, error) {
	var res ScrapeResult
	cursor := firstCursor
	seen := map[string]bool{cursor: true}

	for res.Pages < s.maxPages {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		page, err := s.fetcher.FetchReleases(ctx, cursor, since)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			zap.L().Error("ingest: fetch releases failed, ending walk",
				zap.String("cursor", cursor),
				zap.Error(err),
			)
			break
		}
		res.Pages++
		if len(page.Releases) == 0 {
			break
		}

		for _, rel := range page.Releases {
			res.Releases++
			rec, ok := ParseRelease(rel)
			if !ok {
				continue
			}
			outcome, err := saveAward(ctx, s.store, rec)
			if err != nil {
				return res, err
			}
			switch outcome {
			case saveSkipped:
				res.Skipped++
			case saveInserted:
				res.Awards = append(res.Awards, *rec)
				logSaved(rec)
			}
		}

		next := page.NextCursor
		if next == "" || seen[next] {
			break
		}
		seen[next] = true
		cursor = next
	}

	zap.L().Info("ingest: scrape complete",
		zap.Int("pages", res.Pages),
		zap.Int("releases", res.Releases),
		zap.Int("new_awards", res.New()),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

type saveOutcome int

const (
	saveSkipped saveOutcome = iota
	saveDuplicate
	saveInserted
)

// saveAward normalizes, validates and inserts rec. A malformed record is
// logged and skipped rather than failing the batch.
func saveAward(ctx context.Context, w AwardWriter, rec *model.AwardRecord) (saveOutcome, error) {
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		zap.L().Warn("ingest: skipping malformed record",
			zap.String("contract_id", rec.ContractID),
			zap.Error(err),
		)
		return saveSkipped, nil
	}
	inserted, err := w.InsertAward(ctx, *rec)
	if err != nil {
		return saveSkipped, eris.Wrapf(err, "ingest: save award %s", rec.ContractID)
	}
	if !inserted {
		return saveDuplicate, nil
	}
	return saveInserted, nil
}

func logSaved(rec *model.AwardRecord) {
	fields := []zap.Field{
		zap.String("ocid", rec.ContractID),
		zap.String("description", truncate(rec.TenderDescription, 45)),
		zap.String("winner", rec.WinningCompany),
		zap.String("currency", rec.Currency),
	}
	if p, ok := rec.KnownPrice(); ok {
		fields = append(fields, zap.Float64("price", p))
	}
	zap.L().Info("ingest: award saved", fields...)
}
