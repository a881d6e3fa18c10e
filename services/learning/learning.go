// Package learning adapts per-user criterion weights from like/dislike
// feedback. Adjustments are bounded per recalculation and in total, so a
// handful of signals can never dominate the configured weights.
package learning

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"homescout/models"
	"homescout/services/scoring"
	"homescout/utils"
)

const (
	DeltaPerSignal    = 0.05
	MaxDeltaPerRecalc = 0.5
	MinSignals        = 5
	MinLikes          = 3
	MinDislikes       = 2
	MultiplierMin     = 0.5
	MultiplierMax     = 2.0
	TopCriteriaCount  = 3

	negligibleDelta = 0.001
)

// Store is the persistence the service needs.
type Store interface {
	FeedbackSignals(ctx context.Context, userID int64) ([]models.FeedbackSignal, error)
	LearnedWeights(ctx context.Context, userID int64) (map[string]models.LearnedWeight, error)
	SaveLearnedWeights(ctx context.Context, userID int64, weights map[string]models.LearnedWeight) error
	ResetLearnedWeights(ctx context.Context, userID int64) error
}

// Result describes one recalculation.
type Result struct {
	Updated  bool
	Message  string
	Likes    int
	Dislikes int
	Adjusted []string
	Weights  map[string]models.LearnedWeight
}

// Service recalculates, resets and reports learned weights.
type Service struct {
	store  Store
	logger *utils.Logger
	now    func() time.Time
}

func NewService(store Store, logger *utils.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// Deltas is the bounded per-criterion adjustment computed from feedback.
type Deltas struct {
	Values   map[string]float64
	Counts   map[string]int
	Likes    int
	Dislikes int
}

// ComputeDeltas credits the top criteria of liked listings and blames the
// top criteria of disliked ones. It reports a reason when the feedback does
// not yet meet the signal minimums.
func ComputeDeltas(signals []models.FeedbackSignal) (Deltas, string, bool) {
	var likes, dislikes []models.FeedbackSignal
	for _, s := range signals {
		if len(s.FeatureScores) == 0 {
			continue
		}
		switch s.Type {
		case models.FeedbackLike:
			likes = append(likes, s)
		case models.FeedbackDislike:
			dislikes = append(dislikes, s)
		}
	}

	d := Deltas{
		Values:   map[string]float64{},
		Counts:   map[string]int{},
		Likes:    len(likes),
		Dislikes: len(dislikes),
	}
	total := d.Likes + d.Dislikes
	switch {
	case total < MinSignals:
		return d, fmt.Sprintf("Need %d total signals before learning (have %d)", MinSignals, total), false
	case d.Likes < MinLikes:
		return d, fmt.Sprintf("Need at least %d likes before learning (have %d)", MinLikes, d.Likes), false
	case d.Dislikes < MinDislikes:
		return d, fmt.Sprintf("Need at least %d dislikes before learning (have %d)", MinDislikes, d.Dislikes), false
	}

	apply := func(list []models.FeedbackSignal, delta float64) {
		for _, s := range list {
			for _, c := range scoring.TopCriteria(s.FeatureScores, TopCriteriaCount) {
				d.Values[c] += delta
				d.Counts[c]++
			}
		}
	}
	apply(likes, DeltaPerSignal)
	apply(dislikes, -DeltaPerSignal)

	for c, v := range d.Values {
		d.Values[c] = math.Max(-MaxDeltaPerRecalc, math.Min(MaxDeltaPerRecalc, v))
	}
	return d, fmt.Sprintf("Calculated weight adjustments from %d likes and %d dislikes", d.Likes, d.Dislikes), true
}

// Recalculate applies the current feedback to the user's stored multipliers.
// Criteria without a meaningful delta keep their previous state.
func (s *Service) Recalculate(ctx context.Context, userID int64) (Result, error) {
	signals, existing, err := s.load(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	return s.apply(ctx, userID, signals, existing)
}

// RecalculateIfNew recalculates only when the user left feedback after the
// stored weights were last updated. Scheduled jobs use it so unchanged
// feedback is not applied twice.
func (s *Service) RecalculateIfNew(ctx context.Context, userID int64) (Result, error) {
	signals, existing, err := s.load(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	learnedAt := lastUpdated(existing)
	if !learnedAt.IsZero() && !newestFeedback(signals).After(learnedAt) {
		return Result{Message: "No new feedback since " + learnedAt.Format(time.RFC3339)}, nil
	}
	return s.apply(ctx, userID, signals, existing)
}

func (s *Service) load(ctx context.Context, userID int64) ([]models.FeedbackSignal, map[string]models.LearnedWeight, error) {
	signals, err := s.store.FeedbackSignals(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("learning: load feedback: %w", err)
	}
	existing, err := s.store.LearnedWeights(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("learning: load weights: %w", err)
	}
	return signals, existing, nil
}

func (s *Service) apply(ctx context.Context, userID int64, signals []models.FeedbackSignal, existing map[string]models.LearnedWeight) (Result, error) {
	deltas, msg, ok := ComputeDeltas(signals)
	res := Result{Message: msg, Likes: deltas.Likes, Dislikes: deltas.Dislikes}
	if !ok {
		return res, nil
	}

	now := s.now().UTC()
	updated := make(map[string]models.LearnedWeight, len(existing)+len(deltas.Values))
	for c, w := range existing {
		updated[c] = w
	}
	for c, delta := range deltas.Values {
		if math.Abs(delta) <= negligibleDelta {
			continue
		}
		current := 1.0
		if w, ok := existing[c]; ok && w.Multiplier > 0 {
			current = w.Multiplier
		}
		updated[c] = models.LearnedWeight{
			Multiplier:  math.Round(Bound(current+delta)*1000) / 1000,
			SignalCount: deltas.Counts[c],
			LastUpdated: now,
		}
		res.Adjusted = append(res.Adjusted, c)
	}
	sort.Strings(res.Adjusted)

	if err := s.store.SaveLearnedWeights(ctx, userID, updated); err != nil {
		return Result{}, fmt.Errorf("learning: save weights: %w", err)
	}
	s.logger.Info("[learning] user %d: %d criteria stored, adjusted %v", userID, len(updated), res.Adjusted)

	res.Updated = true
	res.Weights = updated
	return res, nil
}

func lastUpdated(weights map[string]models.LearnedWeight) time.Time {
	var t time.Time
	for _, w := range weights {
		if w.LastUpdated.After(t) {
			t = w.LastUpdated
		}
	}
	return t
}

func newestFeedback(signals []models.FeedbackSignal) time.Time {
	var t time.Time
	for _, s := range signals {
		if s.CreatedAt.After(t) {
			t = s.CreatedAt
		}
	}
	return t
}

// Reset clears all learned state for a user.
func (s *Service) Reset(ctx context.Context, userID int64) error {
	if err := s.store.ResetLearnedWeights(ctx, userID); err != nil {
		return fmt.Errorf("learning: reset: %w", err)
	}
	s.logger.Info("[learning] reset learned weights for user %d", userID)
	return nil
}

// Multipliers returns the learned multipliers for scoring.
func (s *Service) Multipliers(ctx context.Context, userID int64) (map[string]float64, error) {
	weights, err := s.store.LearnedWeights(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("learning: load weights: %w", err)
	}
	out := make(map[string]float64, len(weights))
	for c, w := range weights {
		if w.SignalCount == 0 {
			continue
		}
		out[c] = w.Multiplier
	}
	return out, nil
}

// Bound clamps a multiplier to the allowed range.
func Bound(m float64) float64 {
	return math.Max(MultiplierMin, math.Min(MultiplierMax, m))
}
