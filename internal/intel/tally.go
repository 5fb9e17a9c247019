package intel

import "sort"

// tally counts keys while remembering first-seen order, so ranking ties
// resolve to the key seen earliest.
type tally[K comparable] struct {
	order []K
	count map[K]int
}

func newTally[K comparable]() *tally[K] {
	return &tally[K]{count: make(map[K]int)}
}

func (t *tally[K]) add(k K) {
	if _, ok := t.count[k]; !ok {
		t.order = append(t.order, k)
	}
	t.count[k]++
}

func (t *tally[K]) len() int { return len(t.order) }

// ranked returns keys by count descending, ties in first-seen order.
func (t *tally[K]) ranked() []K {
	out := make([]K, len(t.order))
	copy(out, t.order)
	sort.SliceStable(out, func(i, j int) bool {
		return t.count[out[i]] > t.count[out[j]]
	})
	return out
}

// top returns at most n keys of ranked().
func (t *tally[K]) top(n int) []K {
	r := t.ranked()
	if len(r) > n {
		r = r[:n]
	}
	return r
}

// asMap returns a copy of the counts keyed by string.
func asMap(t *tally[string]) map[string]int {
	m := make(map[string]int, len(t.count))
	for k, v := range t.count {
		m[k] = v
	}
	return m
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func minMax(vs []float64) (lo, hi float64) {
	for i, v := range vs {
		if i == 0 || v < lo {
			lo = v
		}
		if i == 0 || v > hi {
			hi = v
		}
	}
	return lo, hi
}

// saturate returns min(1, n/full).
func saturate(n int, full float64) float64 {
	v := float64(n) / full
	if v > 1 {
		return 1
	}
	return v
}
