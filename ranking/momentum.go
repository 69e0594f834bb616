// Package ranking orders challenges for display.
package ranking

import (
	"math"
	"sort"
)

// Signals are the inputs to the momentum score.
type Signals struct {
	Current int // current value toward the goal
	Goal    int
	New24h  int // participants joined in the last 24 hours
}

// Progress is current/goal clamped to [0,1]. A goal below 1 counts as 1.
func Progress(current, goal int) float64 {
	if goal < 1 {
		goal = 1
	}
	p := float64(current) / float64(goal)
	return math.Max(0, math.Min(1, p))
}

// MomentumScore dampens raw popularity logarithmically, weights it by goal progress,
// adds the recent-joins signal and a tiny progress tie-breaker.
//
//	score = log10(1+current)*(0.5+0.5*progress) + log10(1+new24h)*1.2 + progress*0.01
func MomentumScore(s Signals) float64 {
	current := math.Max(0, float64(s.Current))
	recent := math.Max(0, float64(s.New24h))
	progress := Progress(s.Current, s.Goal)

	p := math.Log10(1 + current)
	v := math.Log10(1 + recent)
	return p*(0.5+0.5*progress) + v*1.2 + progress*0.01
}

// SortByMomentum sorts items in place by descending score. Ties keep their input order.
func SortByMomentum[T any](items []T, signals func(T) Signals) {
	scores := make(map[int]float64, len(items))
	idx := make([]int, len(items))
	for i := range items {
		idx[i] = i
		scores[i] = MomentumScore(signals(items[i]))
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	sorted := make([]T, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
}
