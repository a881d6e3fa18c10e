package learning

import (
	"context"
	"fmt"
	"math"
	"sort"

	"homescout/services/scoring"
)

// WeightView combines base weights with learned multipliers.
type WeightView struct {
	UserID       int64              `json:"user_id"`
	Base         map[string]float64 `json:"base_weights"`
	Multipliers  map[string]float64 `json:"learned_multipliers"`
	Effective    map[string]float64 `json:"effective_weights"`
	SignalCounts map[string]int     `json:"signal_counts"`
	TotalSignals int                `json:"total_signals"`
}

// Preference is one learned shift shown to the user.
type Preference struct {
	Criterion string `json:"criterion"`
	Percent   int    `json:"percent"`
	Signals   int    `json:"signals"`
}

// Summary is the human-readable view of what feedback taught the model.
type Summary struct {
	UserID             int64        `json:"user_id"`
	TotalSignals       int          `json:"total_signals"`
	PreferencesLearned int          `json:"preferences_learned"`
	Strengthened       []Preference `json:"strengthened_preferences"`
	Weakened           []Preference `json:"weakened_preferences"`
	Insight            string       `json:"insight"`
}

// Weights builds the effective-weight view for base.
func (s *Service) Weights(ctx context.Context, userID int64, base map[string]float64) (WeightView, error) {
	learned, err := s.store.LearnedWeights(ctx, userID)
	if err != nil {
		return WeightView{}, fmt.Errorf("learning: load weights: %w", err)
	}

	v := WeightView{
		UserID:       userID,
		Base:         make(map[string]float64, len(base)),
		Multipliers:  make(map[string]float64, len(learned)),
		Effective:    make(map[string]float64, len(base)),
		SignalCounts: make(map[string]int, len(learned)),
	}
	for c, w := range learned {
		v.Multipliers[c] = w.Multiplier
		v.SignalCounts[c] = w.SignalCount
		v.TotalSignals += w.SignalCount
	}
	for c, w := range base {
		v.Base[c] = w
		m, ok := v.Multipliers[c]
		if !ok {
			m = 1
		}
		v.Effective[c] = math.Round(w*m*100) / 100
	}
	return v, nil
}

// Summary reports strengthened (>1.1) and weakened (<0.9) preferences, up
// to five of each.
func (s *Service) Summary(ctx context.Context, userID int64) (Summary, error) {
	v, err := s.Weights(ctx, userID, nil)
	if err != nil {
		return Summary{}, err
	}

	type cm struct {
		c string
		m float64
	}
	var boosted, reduced []cm
	for c, m := range v.Multipliers {
		switch {
		case m > 1.1:
			boosted = append(boosted, cm{c, m})
		case m < 0.9:
			reduced = append(reduced, cm{c, m})
		}
	}
	sort.Slice(boosted, func(i, j int) bool {
		if boosted[i].m != boosted[j].m {
			return boosted[i].m > boosted[j].m
		}
		return boosted[i].c < boosted[j].c
	})
	sort.Slice(reduced, func(i, j int) bool {
		if reduced[i].m != reduced[j].m {
			return reduced[i].m < reduced[j].m
		}
		return reduced[i].c < reduced[j].c
	})

	out := Summary{
		UserID:             userID,
		TotalSignals:       v.TotalSignals,
		PreferencesLearned: len(v.Multipliers),
		Strengthened:       []Preference{},
		Weakened:           []Preference{},
	}
	for i := 0; i < len(boosted) && i < 5; i++ {
		out.Strengthened = append(out.Strengthened, Preference{
			Criterion: scoring.Label(boosted[i].c),
			Percent:   int(math.Round((boosted[i].m - 1) * 100)),
			Signals:   v.SignalCounts[boosted[i].c],
		})
	}
	for i := 0; i < len(reduced) && i < 5; i++ {
		out.Weakened = append(out.Weakened, Preference{
			Criterion: scoring.Label(reduced[i].c),
			Percent:   int(math.Round((1 - reduced[i].m) * 100)),
			Signals:   v.SignalCounts[reduced[i].c],
		})
	}

	switch {
	case len(boosted) > 0:
		out.Insight = fmt.Sprintf("Your feedback suggests '%s' matters more to you than average.", scoring.Label(boosted[0].c))
	case len(reduced) > 0:
		out.Insight = fmt.Sprintf("Your feedback suggests '%s' matters less to you than average.", scoring.Label(reduced[0].c))
	default:
		out.Insight = "Not enough feedback yet to identify clear preferences."
	}
	return out, nil
}
