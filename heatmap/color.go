package heatmap

import (
	"fmt"
	"math"
)

// EmptyColor is used for prefectures without participants.
const EmptyColor = "#2D3139"

type rgb struct{ r, g, b float64 }

// blue → cyan → yellow → orange → red, one segment per quarter of intensity
var ramp = []rgb{
	{59, 130, 246},
	{34, 211, 238},
	{251, 191, 36},
	{249, 115, 22},
	{239, 68, 68},
}

// MaxIntensity narrows the reachable part of the ramp when the observed maximum is small,
// so a handful of participants never reads as hot.
func MaxIntensity(maxCount int) float64 {
	switch {
	case maxCount <= 10:
		return 0.25
	case maxCount <= 50:
		return 0.5
	case maxCount <= 100:
		return 0.75
	default:
		return 1.0
	}
}

// Color maps count against the largest observed count to an "rgb(r, g, b)" string.
func Color(count, maxCount int) string {
	if count <= 0 {
		return EmptyColor
	}
	if maxCount < count {
		maxCount = count
	}

	intensity := float64(count) / float64(maxCount) * MaxIntensity(maxCount)

	var seg int
	switch {
	case intensity <= 0.25:
		seg = 0
	case intensity <= 0.5:
		seg = 1
	case intensity <= 0.75:
		seg = 2
	default:
		seg = 3
	}
	t := (intensity - float64(seg)*0.25) * 4
	from, to := ramp[seg], ramp[seg+1]

	r := math.Round(from.r + (to.r-from.r)*t)
	g := math.Round(from.g + (to.g-from.g)*t)
	b := math.Round(from.b + (to.b-from.b)*t)
	return fmt.Sprintf("rgb(%d, %d, %d)", int(r), int(g), int(b))
}

type PrefectureCell struct {
	Code         int    `json:"code"`
	Name         string `json:"name"`
	Count        int    `json:"count"`
	Contribution int    `json:"contribution"`
	Color        string `json:"color"`
}

type RegionTotal struct {
	Name         string `json:"name"`
	Count        int    `json:"count"`
	Contribution int    `json:"contribution"`
	Color        string `json:"color"`
}

type Map struct {
	Prefectures []PrefectureCell `json:"prefectures"`
	Regions     []RegionTotal    `json:"regions"`
	MaxCount    int              `json:"max_count"`
	Total       int              `json:"total"`
	Unassigned  int              `json:"unassigned"`
}

// Tally is a count and contribution sum for one prefecture label.
type Tally struct {
	Count        int
	Contribution int
}

// Build normalizes prefecture labels, folds variants together, and colors all 47 cells.
// Labels that are not prefectures (including 未設定) land in Unassigned.
func Build(tallies map[string]Tally) Map {
	merged := make(map[string]Tally, len(Prefectures))
	out := Map{}
	for name, t := range tallies {
		out.Total += t.Count
		normalized := NormalizePrefecture(name)
		if _, ok := prefectureCodes[normalized]; !ok {
			out.Unassigned += t.Count
			continue
		}
		m := merged[normalized]
		m.Count += t.Count
		m.Contribution += t.Contribution
		merged[normalized] = m
	}

	for _, t := range merged {
		if t.Count > out.MaxCount {
			out.MaxCount = t.Count
		}
	}

	out.Prefectures = make([]PrefectureCell, 0, len(Prefectures))
	for i, name := range Prefectures {
		t := merged[name]
		out.Prefectures = append(out.Prefectures, PrefectureCell{
			Code:         i + 1,
			Name:         name,
			Count:        t.Count,
			Contribution: t.Contribution,
			Color:        Color(t.Count, out.MaxCount),
		})
	}

	regionMax := 0
	out.Regions = make([]RegionTotal, 0, len(Regions))
	for _, r := range Regions {
		total := RegionTotal{Name: r.Name}
		for _, p := range r.Prefectures {
			total.Count += merged[p].Count
			total.Contribution += merged[p].Contribution
		}
		if total.Count > regionMax {
			regionMax = total.Count
		}
		out.Regions = append(out.Regions, total)
	}
	for i := range out.Regions {
		out.Regions[i].Color = Color(out.Regions[i].Count, regionMax)
	}
	return out
}
