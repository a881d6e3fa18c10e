package learning

import (
	"context"
	"testing"
	"time"

	"homescout/models"
	"homescout/utils"
)

type fakeStore struct {
	signals []models.FeedbackSignal
	weights map[string]models.LearnedWeight
	saves   int
}

func (f *fakeStore) FeedbackSignals(ctx context.Context, userID int64) ([]models.FeedbackSignal, error) {
	return f.signals, nil
}

func (f *fakeStore) LearnedWeights(ctx context.Context, userID int64) (map[string]models.LearnedWeight, error) {
	out := make(map[string]models.LearnedWeight, len(f.weights))
	for k, v := range f.weights {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) SaveLearnedWeights(ctx context.Context, userID int64, w map[string]models.LearnedWeight) error {
	f.saves++
	f.weights = w
	return nil
}

func (f *fakeStore) ResetLearnedWeights(ctx context.Context, userID int64) error {
	f.weights = nil
	return nil
}

// breakdown builds feature scores whose contributions rank in argument order.
func breakdown(criteria ...string) map[string]models.CriterionScore {
	out := map[string]models.CriterionScore{}
	for i, c := range criteria {
		contribution := float64(10 - i)
		out[c] = models.CriterionScore{Score: 10, Weight: contribution, Contribution: contribution}
	}
	return out
}

func signal(t models.FeedbackType, criteria ...string) models.FeedbackSignal {
	return models.FeedbackSignal{Type: t, FeatureScores: breakdown(criteria...)}
}

func likes(n int, criteria ...string) []models.FeedbackSignal {
	var out []models.FeedbackSignal
	for i := 0; i < n; i++ {
		out = append(out, signal(models.FeedbackLike, criteria...))
	}
	return out
}

func dislikes(n int, criteria ...string) []models.FeedbackSignal {
	var out []models.FeedbackSignal
	for i := 0; i < n; i++ {
		out = append(out, signal(models.FeedbackDislike, criteria...))
	}
	return out
}

func TestRecalculateRequiresEnoughSignal(t *testing.T) {
	tests := []struct {
		name    string
		signals []models.FeedbackSignal
		want    string
	}{
		{"too few", likes(4, "views"), "Need 5 total signals before learning (have 4)"},
		{"too few likes", append(likes(2, "views"), dislikes(3, "views")...), "Need at least 3 likes before learning (have 2)"},
		{"too few dislikes", likes(5, "views"), "Need at least 2 dislikes before learning (have 0)"},
		{
			"unscored listings ignored",
			append(likes(3, "views"), models.FeedbackSignal{Type: models.FeedbackDislike}, models.FeedbackSignal{Type: models.FeedbackDislike}),
			"Need 5 total signals before learning (have 3)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{signals: tt.signals}
			res, err := NewService(store, utils.NewNopLogger()).Recalculate(context.Background(), 1)
			if err != nil {
				t.Fatalf("Recalculate: %v", err)
			}
			if res.Updated || store.saves != 0 {
				t.Errorf("expected no mutation, got updated=%v saves=%d", res.Updated, store.saves)
			}
			if res.Message != tt.want {
				t.Errorf("message = %q; want %q", res.Message, tt.want)
			}
		})
	}
}

func TestRecalculateAppliesBoundedDeltas(t *testing.T) {
	signals := append(
		likes(3, "natural_light", "outdoor_space", "views", "kitchen_quality"),
		dislikes(2, "parking", "gym_fitness", "views")...,
	)
	store := &fakeStore{
		signals: signals,
		weights: map[string]models.LearnedWeight{"storage": {Multiplier: 1.3, SignalCount: 4}},
	}

	res, err := NewService(store, utils.NewNopLogger()).Recalculate(context.Background(), 1)
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if !res.Updated {
		t.Fatalf("expected update, got %q", res.Message)
	}

	want := map[string]float64{
		"natural_light": 1.15,
		"outdoor_space": 1.15,
		"views":         1.05,
		"parking":       0.9,
		"gym_fitness":   0.9,
		"storage":       1.3,
	}
	for c, m := range want {
		got, ok := store.weights[c]
		if !ok {
			t.Errorf("%s missing from stored weights", c)
			continue
		}
		if got.Multiplier != m {
			t.Errorf("%s multiplier = %v; want %v", c, got.Multiplier, m)
		}
	}
	if _, ok := store.weights["kitchen_quality"]; ok {
		t.Error("kitchen_quality was never a top-3 criterion and must not be stored")
	}
	if store.weights["views"].SignalCount != 5 {
		t.Errorf("views signal count = %d; want 5", store.weights["views"].SignalCount)
	}
}

func TestRecalculateStaysWithinBounds(t *testing.T) {
	signals := append(likes(12, "natural_light", "views", "parking"), dislikes(12, "gym_fitness", "storage", "dishwasher")...)
	store := &fakeStore{signals: signals}
	svc := NewService(store, utils.NewNopLogger())

	for i := 0; i < 20; i++ {
		if _, err := svc.Recalculate(context.Background(), 1); err != nil {
			t.Fatalf("Recalculate #%d: %v", i, err)
		}
		for c, w := range store.weights {
			if w.Multiplier < MultiplierMin || w.Multiplier > MultiplierMax {
				t.Fatalf("after %d runs %s multiplier %v out of bounds", i+1, c, w.Multiplier)
			}
		}
	}
	if store.weights["natural_light"].Multiplier != MultiplierMax {
		t.Errorf("natural_light = %v; want saturated at %v", store.weights["natural_light"].Multiplier, MultiplierMax)
	}
	if store.weights["storage"].Multiplier != MultiplierMin {
		t.Errorf("storage = %v; want saturated at %v", store.weights["storage"].Multiplier, MultiplierMin)
	}
}

func TestResetAndMultipliers(t *testing.T) {
	store := &fakeStore{weights: map[string]models.LearnedWeight{
		"views":   {Multiplier: 1.2, SignalCount: 3},
		"parking": {Multiplier: 1.7, SignalCount: 0},
	}}
	svc := NewService(store, utils.NewNopLogger())

	m, err := svc.Multipliers(context.Background(), 1)
	if err != nil {
		t.Fatalf("Multipliers: %v", err)
	}
	if len(m) != 1 || m["views"] != 1.2 {
		t.Errorf("multipliers = %v; want only views with signals", m)
	}

	if err := svc.Reset(context.Background(), 1); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	m, _ = svc.Multipliers(context.Background(), 1)
	if len(m) != 0 {
		t.Errorf("multipliers after reset = %v; want empty", m)
	}
}

func TestSummary(t *testing.T) {
	store := &fakeStore{weights: map[string]models.LearnedWeight{
		"natural_light": {Multiplier: 1.4, SignalCount: 3},
		"parking":       {Multiplier: 0.7, SignalCount: 2},
		"views":         {Multiplier: 1.0, SignalCount: 1},
	}}
	sum, err := NewService(store, utils.NewNopLogger()).Summary(context.Background(), 7)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalSignals != 6 || sum.PreferencesLearned != 3 {
		t.Errorf("totals = %d/%d; want 6/3", sum.TotalSignals, sum.PreferencesLearned)
	}
	if len(sum.Strengthened) != 1 || sum.Strengthened[0] != (Preference{"Natural light", 40, 3}) {
		t.Errorf("strengthened = %+v", sum.Strengthened)
	}
	if len(sum.Weakened) != 1 || sum.Weakened[0] != (Preference{"Parking", 30, 2}) {
		t.Errorf("weakened = %+v", sum.Weakened)
	}
	if sum.Insight != "Your feedback suggests 'Natural light' matters more to you than average." {
		t.Errorf("insight = %q", sum.Insight)
	}
}

func TestWeightsView(t *testing.T) {
	store := &fakeStore{weights: map[string]models.LearnedWeight{"views": {Multiplier: 1.5, SignalCount: 2}}}
	v, err := NewService(store, utils.NewNopLogger()).Weights(context.Background(), 1, map[string]float64{"views": 3, "parking": 4})
	if err != nil {
		t.Fatalf("Weights: %v", err)
	}
	if v.Effective["views"] != 4.5 || v.Effective["parking"] != 4 {
		t.Errorf("effective = %v", v.Effective)
	}
}

func TestRecalculateIfNewWaitsForFeedback(t *testing.T) {
	given := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	signals := append(likes(3, "natural_light"), dislikes(2, "parking")...)
	for i := range signals {
		signals[i].CreatedAt = given
	}
	store := &fakeStore{signals: signals}
	svc := NewService(store, utils.NewNopLogger())
	clock := given.Add(time.Hour)
	svc.now = func() time.Time { return clock }

	ctx := context.Background()
	if res, err := svc.RecalculateIfNew(ctx, 1); err != nil || !res.Updated {
		t.Fatalf("first RecalculateIfNew = %+v, %v; want update", res, err)
	}
	if got := store.weights["natural_light"].Multiplier; got != 1.15 {
		t.Fatalf("natural_light = %v; want 1.15", got)
	}

	clock = clock.Add(time.Hour)
	res, err := svc.RecalculateIfNew(ctx, 1)
	if err != nil {
		t.Fatalf("RecalculateIfNew: %v", err)
	}
	if res.Updated || store.saves != 1 {
		t.Errorf("unchanged feedback recalculated: updated=%v saves=%d", res.Updated, store.saves)
	}
	if got := store.weights["natural_light"].Multiplier; got != 1.15 {
		t.Errorf("natural_light drifted to %v", got)
	}

	extra := signal(models.FeedbackLike, "natural_light")
	extra.CreatedAt = clock.Add(time.Minute)
	store.signals = append(store.signals, extra)
	clock = clock.Add(time.Hour)
	if res, err := svc.RecalculateIfNew(ctx, 1); err != nil || !res.Updated {
		t.Errorf("RecalculateIfNew after new feedback = %+v, %v; want update", res, err)
	}
}

func TestZeroContributionIsNotCredited(t *testing.T) {
	flat := map[string]models.CriterionScore{
		"views":       {Score: 8, Weight: 10, Contribution: 8},
		"gym_fitness": {Score: 0, Weight: 4},
		"storage":     {Score: 0, Weight: 4},
	}
	var signals []models.FeedbackSignal
	for i := 0; i < 5; i++ {
		typ := models.FeedbackLike
		if i >= 3 {
			typ = models.FeedbackDislike
		}
		signals = append(signals, models.FeedbackSignal{Type: typ, FeatureScores: flat})
	}
	d, msg, ok := ComputeDeltas(signals)
	if !ok {
		t.Fatalf("ComputeDeltas: %s", msg)
	}
	for _, c := range []string{"gym_fitness", "storage"} {
		if _, ok := d.Values[c]; ok {
			t.Errorf("%s earned nothing but was adjusted", c)
		}
	}
	if d.Counts["views"] != 5 {
		t.Errorf("views count = %d; want 5", d.Counts["views"])
	}
}
