package ranking

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMomentumMonotonicInCurrent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		goal := rng.Intn(10_000) + 1
		new24h := rng.Intn(200)
		prev := MomentumScore(Signals{Current: 0, Goal: goal, New24h: new24h})
		for current := 1; current <= goal*2; current += rng.Intn(goal/10+1) + 1 {
			score := MomentumScore(Signals{Current: current, Goal: goal, New24h: new24h})
			require.GreaterOrEqual(t, score, prev, "goal=%d current=%d", goal, current)
			prev = score
		}
	}
}

func TestMomentumZeroGoalIsFloored(t *testing.T) {
	score := MomentumScore(Signals{Current: 5, Goal: 0})
	assert.False(t, math.IsNaN(score))
	assert.False(t, math.IsInf(score, 0))
	assert.Equal(t, MomentumScore(Signals{Current: 5, Goal: 1}), score)
}

func TestMomentumKnownValues(t *testing.T) {
	assert.Equal(t, 0.0, MomentumScore(Signals{Goal: 100}))

	// current 99 of 99: log10(100)*1 + 0 + 0.01
	assert.InDelta(t, 2.01, MomentumScore(Signals{Current: 99, Goal: 99}), 1e-9)

	// only the recent signal: log10(10)*1.2
	assert.InDelta(t, 1.2, MomentumScore(Signals{Goal: 100, New24h: 9}), 1e-9)
}

func TestProgressClamp(t *testing.T) {
	assert.Equal(t, 0.0, Progress(-5, 10))
	assert.Equal(t, 0.5, Progress(5, 10))
	assert.Equal(t, 1.0, Progress(50, 10))
	assert.Equal(t, 1.0, Progress(3, 0))
}

func TestSortByMomentum(t *testing.T) {
	type item struct {
		name string
		s    Signals
	}
	items := []item{
		{"quiet", Signals{Current: 1, Goal: 100}},
		{"trending", Signals{Current: 40, Goal: 100, New24h: 30}},
		{"big", Signals{Current: 900, Goal: 1000}},
		{"quiet-twin", Signals{Current: 1, Goal: 100}},
	}
	SortByMomentum(items, func(i item) Signals { return i.s })

	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.name
	}
	assert.Equal(t, []string{"trending", "big", "quiet", "quiet-twin"}, names)
}
