// Package scoring is the gate-then-score matching engine. Scoring is pure:
// the same listing and criteria always produce the same result, and missing
// listing data lowers the score instead of returning an error.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"homescout/config"
	"homescout/models"
	"homescout/services/neighborhoods"
	"homescout/services/signals"
)

// Search modes.
const (
	ModeBuy  = "buy"
	ModeRent = "rent"
)

// Gate failure reasons.
const (
	GatePriceAboveMax = "price above hard cap"
	GatePriceUnknown  = "price unknown"
	GateBedrooms      = "too few bedrooms"
	GateBathrooms     = "too few bathrooms"
	GateSqft          = "too small"
	GateNeighborhood  = "outside required neighborhoods"
	GateInactive      = "listing not active"
	GateDark          = "dark interior"
	GateNoisy         = "noisy location"
	GateLayout        = "layout concerns"
	GateNoParking     = "no parking"
	GateNoPets        = "no pets allowed"
	GateNoListing     = "no listing"
)

const (
	quietGateMinimum   = 40
	topPositivesToShow = 3
)

// Engine scores listings against one criteria snapshot.
type Engine struct {
	crit        *config.Criteria
	multipliers map[string]float64
	mode        string
	required    map[string]struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithMultipliers applies per-criterion learned multipliers. Criteria absent
// from m keep a multiplier of 1.
func WithMultipliers(m map[string]float64) Option {
	return func(e *Engine) {
		e.multipliers = m
	}
}

// WithMode selects buy or rent gating.
func WithMode(mode string) Option {
	return func(e *Engine) {
		if mode == ModeRent {
			e.mode = ModeRent
		}
	}
}

// NewEngine creates an engine for crit, which must not be mutated while the
// engine is in use.
func NewEngine(crit *config.Criteria, opts ...Option) *Engine {
	e := &Engine{crit: crit, mode: ModeBuy}
	for _, opt := range opts {
		opt(e)
	}
	if names := neighborhoods.NormalizeList(crit.HardFilters.Neighborhoods); len(names) > 0 {
		e.required = make(map[string]struct{}, len(names))
		for _, n := range names {
			e.required[strings.ToLower(n)] = struct{}{}
		}
	}
	return e
}

// Criteria returns the criteria snapshot the engine scores against.
func (e *Engine) Criteria() *config.Criteria { return e.crit }

// Multiplier returns the learned multiplier for a criterion.
func (e *Engine) Multiplier(criterion string) float64 {
	if m, ok := e.multipliers[criterion]; ok && m > 0 {
		return m
	}
	return 1
}

// EffectiveWeights returns base weight × learned multiplier per criterion.
func (e *Engine) EffectiveWeights() map[string]float64 {
	out := make(map[string]float64, len(e.crit.Weights))
	for name, w := range e.crit.Weights {
		out[name] = w * e.Multiplier(name)
	}
	return out
}

// ScoreListing scores l and reports whether it passes the gates and reaches
// minPercent.
func (e *Engine) ScoreListing(l *models.Listing, minPercent float64) (bool, models.ScoreResult) {
	res := e.Score(l)
	res.Matches = res.Matches && res.Percent >= minPercent
	return res.Matches, res
}

// Score gates and scores l with no minimum.
func (e *Engine) Score(l *models.Listing) models.ScoreResult {
	if l == nil {
		return models.ScoreResult{GateFailure: GateNoListing, Tier: TierPass}
	}
	in := newInput(l, e.crit)
	if reason := e.gate(in); reason != "" {
		return models.ScoreResult{GateFailure: reason, Tier: TierPass, Signals: in.hits}
	}

	names := make([]string, 0, len(e.crit.Weights))
	for name := range e.crit.Weights {
		names = append(names, name)
	}
	sort.Strings(names)

	breakdown := make(map[string]models.CriterionScore, len(names))
	var points, possible float64
	for _, name := range names {
		w := e.crit.Weights[name] * e.Multiplier(name)
		if w <= 0 {
			continue
		}
		var score float64
		var evidence []string
		if fn, ok := scorers[name]; ok {
			score, evidence = fn(in)
		}
		contribution := score / 10 * w
		breakdown[name] = models.CriterionScore{
			Score:        round2(score),
			Weight:       w,
			Contribution: round2(contribution),
			Evidence:     evidence,
		}
		points += contribution
		possible += w
	}

	soft := SoftCapPenalty(l.Price, e.crit.SoftCaps.PriceSoft, e.crit.HardFilters.PriceMax)
	hoa := HOAPenalty(l.HOAFee)
	total := math.Max(0, points-soft-hoa)

	var percent float64
	if possible > 0 {
		percent = round2(total * 100 / possible)
	}

	return models.ScoreResult{
		Matches:        true,
		Points:         round2(total),
		Possible:       round2(possible),
		Percent:        percent,
		Tier:           Tier(percent),
		Breakdown:      breakdown,
		SoftCapPenalty: round2(soft),
		HOAPenalty:     hoa,
		TopPositives:   topPositives(breakdown, topPositivesToShow),
		Tradeoff:       e.tradeoff(l, breakdown, soft, hoa),
		Signals:        in.hits,
	}
}

// gate returns the first failing hard filter or signal exclusion, or "".
func (e *Engine) gate(in input) string {
	hf := e.crit.HardFilters
	l := in.l

	if hf.PriceMax != nil {
		if l.Price == nil {
			return GatePriceUnknown
		}
		if *l.Price > *hf.PriceMax {
			return GatePriceAboveMax
		}
	}
	if below(l.Beds, hf.BedroomsMin) {
		return GateBedrooms
	}
	if below(l.Baths, hf.BathroomsMin) {
		return GateBathrooms
	}
	if below(l.Sqft, hf.SqftMin) {
		return GateSqft
	}
	if e.required != nil {
		n := strings.ToLower(neighborhoods.Normalize(l.Neighborhood))
		if _, ok := e.required[n]; !ok {
			return GateNeighborhood
		}
	}
	if e.inactive(l) {
		return GateInactive
	}

	if len(in.neg(signals.GroupDark)) > 0 {
		return GateDark
	}
	if in.flags.BusyStreet || len(in.neg(signals.GroupLocationNoise)) > 0 ||
		(l.TranquilityScore != nil && *l.TranquilityScore < quietGateMinimum) {
		return GateNoisy
	}
	if len(in.kw("layout_negative")) > 0 {
		return GateLayout
	}
	switch e.mode {
	case ModeRent:
		if in.flags.NoPets || len(in.neg(signals.GroupNoPets)) > 0 {
			return GateNoPets
		}
	default:
		if len(in.kw("no_parking")) > 0 {
			return GateNoParking
		}
	}
	return ""
}

func (e *Engine) inactive(l *models.Listing) bool {
	status := strings.ToLower(strings.TrimSpace(l.ListingStatus))
	if status == "" {
		status = strings.ToLower(strings.TrimSpace(l.Status))
	}
	if status == "" {
		return false
	}
	for _, s := range e.crit.InactiveStatuses {
		if s != "" && strings.Contains(status, s) {
			return true
		}
	}
	return false
}

// below reports a failed minimum. A missing value fails a configured minimum.
func below(v, minimum *float64) bool {
	if minimum == nil {
		return false
	}
	return v == nil || *v < *minimum
}

func topPositives(breakdown map[string]models.CriterionScore, n int) []string {
	type kv struct {
		name string
		c    float64
	}
	var ranked []kv
	for name, cs := range breakdown {
		if cs.Contribution > 0 {
			ranked = append(ranked, kv{name, cs.Contribution})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].c != ranked[j].c {
			return ranked[i].c > ranked[j].c
		}
		return ranked[i].name < ranked[j].name
	})
	out := []string{}
	for i := 0; i < len(ranked) && i < n; i++ {
		out = append(out, Label(ranked[i].name))
	}
	return out
}

// TopCriteria returns up to n criterion names with the largest positive
// contribution. Criteria that earned nothing are never strong.
func TopCriteria(breakdown map[string]models.CriterionScore, n int) []string {
	names := make([]string, 0, len(breakdown))
	for name, c := range breakdown {
		if c.Contribution <= 0 {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := breakdown[names[i]].Contribution, breakdown[names[j]].Contribution
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}

// tradeoff picks one caveat: soft cap, then HOA, then the criterion that
// lost the most weighted points.
func (e *Engine) tradeoff(l *models.Listing, breakdown map[string]models.CriterionScore, soft, hoa float64) string {
	if soft > 0 && l.Price != nil && e.crit.SoftCaps.PriceSoft != nil {
		return "Above soft cap by " + FormatCurrency(*l.Price-*e.crit.SoftCaps.PriceSoft)
	}
	if hoa > 0 && l.HOAFee != nil {
		return fmt.Sprintf("HOA %s/mo", FormatCurrency(*l.HOAFee))
	}

	var weakest string
	var missed float64
	for name, cs := range breakdown {
		m := cs.Weight - cs.Contribution
		if m > missed || (m == missed && m > 0 && name < weakest) {
			weakest, missed = name, m
		}
	}
	if weakest == "" || missed <= 0 {
		return ""
	}
	return "Weak on " + strings.ToLower(Label(weakest))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
