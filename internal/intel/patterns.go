package intel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tenderedge/postaward/internal/model"
	"github.com/tenderedge/postaward/internal/resolve"
)

const (
	// Ratios outside this band are treated as data-entry outliers.
	minPlausibleRatio = 0.5
	maxPlausibleRatio = 1.1

	minPatternPoints   = 3
	maxActiveBuyers    = 10
	seasonalConfidence = 0.75
)

// MinePatterns runs the four insight passes over a snapshot of awards and
// returns their results concatenated in pass order: price-to-win, buyer
// activity, sector leaders, seasonality. The passes only read the slice and
// run concurrently.
func MinePatterns(ctx context.Context, awards []model.AwardRecord) ([]model.PatternInsight, error) {
	passes := []func([]model.AwardRecord) []model.PatternInsight{
		PriceToWinInsights,
		BuyerActivityInsights,
		SectorLeaderInsights,
		SeasonalInsights,
	}
	results := make([][]model.PatternInsight, len(passes))

	g, gctx := errgroup.WithContext(ctx)
	for i, pass := range passes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = pass(awards)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []model.PatternInsight
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func plausibleRatio(a model.AwardRecord) (float64, bool) {
	r, ok := a.KnownRatio()
	if !ok || r < minPlausibleRatio || r > maxPlausibleRatio {
		return 0, false
	}
	return r, true
}

// PriceToWinInsights reports the winning price band per sector, largest
// sample first.
func PriceToWinInsights(awards []model.AwardRecord) []model.PatternInsight {
	var order []string
	bySector := make(map[string][]float64)
	for _, a := range awards {
		r, ok := plausibleRatio(a)
		if !ok {
			continue
		}
		if _, seen := bySector[a.Sector]; !seen {
			order = append(order, a.Sector)
		}
		bySector[a.Sector] = append(bySector[a.Sector], r)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return len(bySector[order[i]]) > len(bySector[order[j]])
	})

	var out []model.PatternInsight
	for _, sector := range order {
		ratios := bySector[sector]
		if len(ratios) < minPatternPoints {
			continue
		}
		lo, hi := minMax(ratios)
		out = append(out, model.PatternInsight{
			Type:   model.InsightPriceToWin,
			Sector: sector,
			Text: fmt.Sprintf("In %s, winning bids average %.1f%% of the tender estimate. Safe range: %.0f%%–%.0f%%.",
				sector, mean(ratios)*100, lo*100, hi*100),
			DataPoints: len(ratios),
			Confidence: saturate(len(ratios), 20),
		})
	}
	return out
}

// BuyerActivityInsights reports the ten busiest buyers with at least three
// awards.
func BuyerActivityInsights(awards []model.AwardRecord) []model.PatternInsight {
	buyers := newTally[string]()
	prices := make(map[string][]float64)
	currency := make(map[string]string)
	for _, a := range awards {
		if a.BuyerName == "" {
			continue
		}
		buyers.add(a.BuyerName)
		if p, ok := a.KnownPrice(); ok {
			prices[a.BuyerName] = append(prices[a.BuyerName], p)
		}
		if _, ok := currency[a.BuyerName]; !ok && a.Currency != "" {
			currency[a.BuyerName] = a.Currency
		}
	}

	printer := message.NewPrinter(language.English)
	var out []model.PatternInsight
	for _, name := range buyers.ranked() {
		n := buyers.count[name]
		if n < minPatternPoints {
			break
		}
		if len(out) == maxActiveBuyers {
			break
		}
		text := fmt.Sprintf("%s issued %d awards.", name, n)
		if ps := prices[name]; len(ps) > 0 {
			cur := currency[name]
			if cur == "" {
				cur = model.DefaultCurrency
			}
			text = printer.Sprintf("%s is highly active with %d awards. Average contract: %s %.0f.", name, n, cur, mean(ps))
		}
		out = append(out, model.PatternInsight{
			Type:       model.InsightPEActivity,
			BuyerName:  name,
			Text:       text,
			DataPoints: n,
			Confidence: saturate(n, 15),
		})
	}
	return out
}

// SectorLeaderInsights reports the competitor with the most wins in each
// sector, sectors in alphabetical order.
func SectorLeaderInsights(awards []model.AwardRecord) []model.PatternInsight {
	bySector := make(map[string]*tally[string])
	for _, a := range awards {
		name := resolve.NormalizeCompany(a.WinningCompany)
		if resolve.IsUnknown(name) {
			continue
		}
		t, ok := bySector[a.Sector]
		if !ok {
			t = newTally[string]()
			bySector[a.Sector] = t
		}
		t.add(name)
	}

	sectors := make([]string, 0, len(bySector))
	for s := range bySector {
		sectors = append(sectors, s)
	}
	sort.Strings(sectors)

	out := make([]model.PatternInsight, 0, len(sectors))
	for _, sector := range sectors {
		t := bySector[sector]
		leader := t.top(1)[0]
		wins := t.count[leader]
		out = append(out, model.PatternInsight{
			Type:       model.InsightSectorLeader,
			Sector:     sector,
			Text:       fmt.Sprintf("In %s, %s leads with %d wins. Watch this competitor carefully.", sector, leader, wins),
			DataPoints: wins,
			Confidence: saturate(wins, 10),
		})
	}
	return out
}

// SeasonalInsights reports the three busiest award months as one insight.
func SeasonalInsights(awards []model.AwardRecord) []model.PatternInsight {
	months := newTally[int]()
	for _, a := range awards {
		if m, ok := a.AwardMonth(); ok {
			months.add(m)
		}
	}
	if months.len() == 0 {
		return nil
	}

	top := months.top(peakMonthCount)
	names := make([]string, len(top))
	points := 0
	for i, m := range top {
		names[i] = time.Month(m).String()
		points += months.count[m]
	}
	return []model.PatternInsight{{
		Type:       model.InsightSeasonal,
		Text:       fmt.Sprintf("Most awards are published in %s. Plan submission capacity accordingly.", strings.Join(names, ", ")),
		DataPoints: points,
		Confidence: seasonalConfidence,
	}}
}
