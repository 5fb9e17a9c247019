package intel

import (
	"fmt"
	"sort"

	"github.com/tenderedge/postaward/internal/model"
)

// benchmarkWindow caps a benchmark to the most recent awards.
const benchmarkWindow = 100

// Benchmark summarizes winning price ratios for a sector.
type Benchmark struct {
	Sector      string  `json:"sector"`
	DataPoints  int     `json:"data_points"`
	AvgRatio    float64 `json:"avg_winning_ratio,omitempty"`
	Median      float64 `json:"median_ratio,omitempty"`
	P25         float64 `json:"p25_ratio,omitempty"`
	P75         float64 `json:"p75_ratio,omitempty"`
	Min         float64 `json:"min_ratio,omitempty"`
	Max         float64 `json:"max_ratio,omitempty"`
	Recommended string  `json:"recommended_range,omitempty"`
}

// PricingBenchmark computes a sector benchmark from the most recent plausible
// ratios. A sector without data yields a benchmark with zero data points.
func PricingBenchmark(sector string, awards []model.AwardRecord) Benchmark {
	type point struct {
		date  string
		ratio float64
	}
	var pts []point
	for _, a := range awards {
		if a.Sector != sector {
			continue
		}
		if r, ok := plausibleRatio(a); ok {
			pts = append(pts, point{date: a.AwardDate, ratio: r})
		}
	}

	b := Benchmark{Sector: sector}
	if len(pts) == 0 {
		return b
	}

	sort.SliceStable(pts, func(i, j int) bool { return pts[i].date > pts[j].date })
	if len(pts) > benchmarkWindow {
		pts = pts[:benchmarkWindow]
	}
	s := make([]float64, len(pts))
	for i, p := range pts {
		s[i] = p.ratio
	}
	sort.Float64s(s)

	n := len(s)
	b.DataPoints = n
	b.AvgRatio = model.Round(mean(s), 4)
	b.Median = s[n/2]
	b.P25 = s[n/4]
	b.P75 = s[3*n/4]
	b.Min = s[0]
	b.Max = s[n-1]
	b.Recommended = fmt.Sprintf("Bid between %.1f%% and %.1f%% of estimate", b.P25*100, b.P75*100)
	return b
}
