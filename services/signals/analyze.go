package signals

import (
	"homescout/config"
	"homescout/models"
)

// Group names that drive context rules and gates.
const (
	GroupLight         = "light"
	GroupDark          = "dark"
	GroupNoPets        = "no_pets"
	GroupLocationNoise = "location_noise"
)

// Analyze returns the positive and negative NLP group hits in text. A "dark"
// hit is dropped when any light-positive keyword is also present.
func Analyze(text string, nlp config.NLPSignals) models.SignalHits {
	normalized := Normalize(text)
	out := models.SignalHits{
		Positive: map[string][]string{},
		Negative: map[string][]string{},
	}
	if normalized == "" {
		return out
	}

	for group, g := range nlp.Positive {
		if hits := FindHits(normalized, g.Keywords); len(hits) > 0 {
			out.Positive[group] = hits
		}
	}
	for group, g := range nlp.Negative {
		if hits := FindHits(normalized, g.Keywords); len(hits) > 0 {
			out.Negative[group] = hits
		}
	}

	if len(out.Positive[GroupLight]) > 0 {
		delete(out.Negative, GroupDark)
	}
	return out
}
