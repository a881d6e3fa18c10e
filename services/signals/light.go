package signals

import (
	"fmt"
	"math"

	"homescout/config"
	"homescout/models"
)

// EstimateLightPotential scores natural-light potential 0..100 from
// description keywords, listing flags and photo count. Orientation cannot be
// known from listing data, so this is a heuristic.
func EstimateLightPotential(description string, kw config.LightKeywords, flags models.Flags, photoCount int) models.LightPotential {
	score := 50.0
	var signals []string
	text := Normalize(description)

	positive := FindHits(text, kw.Positive)
	for i, hit := range positive {
		if i < 3 {
			signals = append(signals, fmt.Sprintf("mentions '%s'", hit))
		}
	}
	if n := len(positive); n > 0 {
		score += math.Min(25, float64(n*5))
	}

	negative := FindHits(text, kw.Negative)
	for i, hit := range negative {
		if i < 2 {
			signals = append(signals, fmt.Sprintf("mentions '%s'", hit))
		}
	}
	if n := len(negative); n > 0 {
		score -= math.Min(30, float64(n*10))
	}

	if flags.NaturalLight {
		score += 15
		signals = append(signals, "natural_light_flag: true")
	}
	if flags.NorthFacingOnly {
		score -= 25
		signals = append(signals, "north_facing_only: true")
	}
	if flags.BasementUnit {
		score -= 30
		signals = append(signals, "basement_unit: true")
	}

	if ContainsAny(text, []string{"top floor", "penthouse", "top level"}) {
		score += 10
		signals = append(signals, "top_floor_unit")
	}
	if ContainsAny(text, []string{"corner unit", "corner apartment"}) {
		score += 8
		signals = append(signals, "corner_unit")
	}

	switch {
	case photoCount >= 15:
		score += 5
		signals = append(signals, "high_photo_count")
	case photoCount >= 10:
		score += 3
	}

	score = math.Max(0, math.Min(100, score))

	confidence := "low"
	switch {
	case flags.BasementUnit || flags.NorthFacingOnly:
		confidence = "high"
	case len(signals) >= 3:
		confidence = "medium"
	}

	return models.LightPotential{
		Score:      int(math.Round(score)),
		Signals:    signals,
		Confidence: confidence,
	}
}

// LightTier labels a light-potential score.
func LightTier(score int) string {
	switch {
	case score >= 75:
		return "Excellent"
	case score >= 55:
		return "Good"
	case score >= 35:
		return "Moderate"
	default:
		return "Limited"
	}
}
