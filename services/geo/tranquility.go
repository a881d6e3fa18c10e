// Package geo estimates how quiet a location is from its distance to modelled
// noise sources: busy streets, freeways and fire stations.
package geo

import (
	"fmt"
	"math"

	"homescout/models"
)

const (
	FactorBusyStreet  = "nearest_busy_street"
	FactorFreeway     = "nearest_freeway"
	FactorFireStation = "nearest_fire_station"
)

// band is one distance tier: within MaxM metres the penalty is
// Penalty x severity.
type band struct {
	MaxM    float64
	Penalty float64
	Warning string
}

var streetBands = []band{
	{30, 35, "On %s (high traffic)"},
	{75, 25, "Near %s"},
	{150, 15, ""},
	{300, 8, ""},
}

var freewayBands = []band{
	{100, 40, "Adjacent to %s"},
	{200, 30, "Very close to %s"},
	{300, 20, ""},
	{500, 10, ""},
}

var sirenBands = []band{
	{150, 10, "Near %s (sirens)"},
	{300, 5, ""},
}

// highConfidenceStreetM is the street distance under which the model counts
// as well-covered.
const highConfidenceStreetM = 500

// Model scores coordinates against a fixed set of metros.
type Model struct {
	metros []Metro
}

// NewModel builds a model over the given metros, or DefaultMetros when none
// are passed.
func NewModel(metros ...Metro) *Model {
	if len(metros) == 0 {
		metros = DefaultMetros
	}
	return &Model{metros: metros}
}

var defaultModel = NewModel()

// Score is a shorthand for the default model's Score.
func Score(lat, lon float64) models.TranquilityResult {
	return defaultModel.Score(lat, lon)
}

// ScoreOptional handles listings without coordinates: the result is a
// neutral 50 with low confidence.
func (m *Model) ScoreOptional(lat, lon *float64) models.TranquilityResult {
	if lat == nil || lon == nil {
		neutral := 50
		return models.TranquilityResult{
			Score:      &neutral,
			Factors:    map[string]models.Factor{},
			Warnings:   []string{"No location data available"},
			Confidence: "low",
		}
	}
	return m.Score(*lat, *lon)
}

// Score returns the 0..100 tranquility estimate for a coordinate. Outside
// every covered metro the score is nil and confidence is low.
func (m *Model) Score(lat, lon float64) models.TranquilityResult {
	p := Point{Lat: lat, Lon: lon}

	metro, ok := m.metroFor(p)
	if !ok {
		return models.TranquilityResult{
			Factors:    map[string]models.Factor{},
			Warnings:   []string{"Outside coverage area"},
			Confidence: "low",
		}
	}

	score := 100.0
	factors := make(map[string]models.Factor, 3)
	var warnings []string

	streetDist := math.Inf(1)
	if src, d, found := nearestLine(p, metro.Streets); found {
		streetDist = d
		factors[FactorBusyStreet] = factor(src.Name, d)
		penalty, warning := applyBands(streetBands, d, src.Severity, src.Name)
		score -= penalty
		if warning != "" {
			warnings = append(warnings, warning)
		}
	}

	if src, d, found := nearestLine(p, metro.Freeways); found {
		factors[FactorFreeway] = factor(src.Name, d)
		penalty, warning := applyBands(freewayBands, d, src.Severity, src.Name)
		score -= penalty
		if warning != "" {
			warnings = append(warnings, warning)
		}
	}

	if src, d, found := nearestPoint(p, metro.Sirens); found {
		factors[FactorFireStation] = factor(src.Name, d)
		penalty, warning := applyBands(sirenBands, d, src.Severity, src.Name)
		score -= penalty
		if warning != "" {
			warnings = append(warnings, warning)
		}
	}

	final := int(math.Round(math.Max(0, math.Min(100, score))))

	confidence := "medium"
	if streetDist < highConfidenceStreetM {
		confidence = "high"
	}

	return models.TranquilityResult{
		Score:      &final,
		Factors:    factors,
		Warnings:   warnings,
		Confidence: confidence,
	}
}

func (m *Model) metroFor(p Point) (Metro, bool) {
	for _, metro := range m.metros {
		if metro.Box.Contains(p) {
			return metro, true
		}
	}
	return Metro{}, false
}

func nearestLine(p Point, sources []LineSource) (LineSource, float64, bool) {
	best := math.Inf(1)
	var bestSrc LineSource
	for _, src := range sources {
		if d := DistanceToPolyline(p, src.Coords); d < best {
			best, bestSrc = d, src
		}
	}
	return bestSrc, best, !math.IsInf(best, 1)
}

func nearestPoint(p Point, sources []PointSource) (PointSource, float64, bool) {
	best := math.Inf(1)
	var bestSrc PointSource
	for _, src := range sources {
		if d := Haversine(p, src.Location); d < best {
			best, bestSrc = d, src
		}
	}
	return bestSrc, best, !math.IsInf(best, 1)
}

// applyBands returns the penalty of the first band containing d.
func applyBands(bands []band, d, severity float64, name string) (float64, string) {
	for _, b := range bands {
		if d < b.MaxM {
			warning := ""
			if b.Warning != "" {
				warning = fmt.Sprintf(b.Warning, name)
			}
			return b.Penalty * severity, warning
		}
	}
	return 0, ""
}

func factor(name string, d float64) models.Factor {
	return models.Factor{Name: name, DistanceM: math.Round(d*10) / 10}
}

// Tier maps a tranquility score to a label.
func Tier(score int) string {
	switch {
	case score >= 80:
		return "Very Quiet"
	case score >= 60:
		return "Quiet"
	case score >= 40:
		return "Moderate"
	case score >= 20:
		return "Noisy"
	default:
		return "Very Noisy"
	}
}
