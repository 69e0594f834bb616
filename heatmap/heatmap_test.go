package heatmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorEmpty(t *testing.T) {
	for _, count := range []int{0, -1, -100} {
		for _, max := range []int{0, 1, 10, 1000} {
			assert.Equal(t, EmptyColor, Color(count, max), "count=%d max=%d", count, max)
		}
	}
}

func TestColorCeilingByObservedMax(t *testing.T) {
	tests := []struct {
		name  string
		count int
		max   int
		want  string
	}{
		{"small max stops at cyan", 10, 10, "rgb(34, 211, 238)"},
		{"medium max stops at yellow", 50, 50, "rgb(251, 191, 36)"},
		{"large max stops at orange", 100, 100, "rgb(249, 115, 22)"},
		{"full range reaches red", 500, 500, "rgb(239, 68, 68)"},
		{"half of small range", 5, 10, "rgb(47, 171, 242)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Color(tt.count, tt.max))
		})
	}
}

func TestColorGuardsZeroMax(t *testing.T) {
	// max below count is treated as count
	assert.Equal(t, Color(3, 3), Color(3, 0))
	assert.Equal(t, "rgb(34, 211, 238)", Color(3, 0))
}

func TestMaxIntensity(t *testing.T) {
	assert.Equal(t, 0.25, MaxIntensity(1))
	assert.Equal(t, 0.25, MaxIntensity(10))
	assert.Equal(t, 0.5, MaxIntensity(11))
	assert.Equal(t, 0.5, MaxIntensity(50))
	assert.Equal(t, 0.75, MaxIntensity(51))
	assert.Equal(t, 0.75, MaxIntensity(100))
	assert.Equal(t, 1.0, MaxIntensity(101))
}

func TestNormalizePrefecture(t *testing.T) {
	tests := map[string]string{
		"東京":    "東京都",
		"大阪":    "大阪府",
		"京都":    "京都府",
		"北海道":   "北海道",
		"愛知":    "愛知県",
		"愛知県":   "愛知県",
		"京都府":   "京都府",
		" 福岡 ":  "福岡県",
		"":      "",
		"　東京　": "東京都", // full-width spaces fold under NFKC
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePrefecture(in), "input %q", in)
	}
}

func TestRegionsCoverAllPrefectures(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range Regions {
		for _, p := range r.Prefectures {
			require.False(t, seen[p], "duplicate %s", p)
			seen[p] = true
			require.NotZero(t, Code(p), "unknown prefecture %s", p)
		}
	}
	require.Len(t, seen, 47)
	assert.Equal(t, "関東", RegionOf("東京"))
	assert.Equal(t, "関西", RegionOf("京都"))
	assert.Equal(t, Code("京都府"), Code("京都"))
	assert.Equal(t, "九州・沖縄", RegionOf("沖縄県"))
	assert.Equal(t, "", RegionOf(Unset))
}

func TestBuild(t *testing.T) {
	m := Build(map[string]Tally{
		"東京":   {Count: 3, Contribution: 5},
		"東京都":  {Count: 2, Contribution: 2},
		"大阪府":  {Count: 1, Contribution: 1},
		Unset:   {Count: 4, Contribution: 4},
	})

	require.Len(t, m.Prefectures, 47)
	assert.Equal(t, 10, m.Total)
	assert.Equal(t, 4, m.Unassigned)
	assert.Equal(t, 5, m.MaxCount)

	tokyo := m.Prefectures[Code("東京都")-1]
	assert.Equal(t, "東京都", tokyo.Name)
	assert.Equal(t, 5, tokyo.Count)
	assert.Equal(t, 7, tokyo.Contribution)
	assert.Equal(t, "rgb(34, 211, 238)", tokyo.Color)

	assert.Equal(t, EmptyColor, m.Prefectures[0].Color) // 北海道

	var kanto RegionTotal
	for _, r := range m.Regions {
		if r.Name == "関東" {
			kanto = r
		}
	}
	assert.Equal(t, 5, kanto.Count)
}

func TestBuildFoldsBareKyoto(t *testing.T) {
	m := Build(map[string]Tally{
		"京都":  {Count: 3, Contribution: 3},
		"京都府": {Count: 1, Contribution: 2},
	})

	assert.Equal(t, 0, m.Unassigned)
	kyoto := m.Prefectures[Code("京都府")-1]
	assert.Equal(t, "京都府", kyoto.Name)
	assert.Equal(t, 4, kyoto.Count)
	assert.Equal(t, 5, kyoto.Contribution)

	for _, r := range m.Regions {
		if r.Name == "関西" {
			assert.Equal(t, 4, r.Count)
		}
	}
}
