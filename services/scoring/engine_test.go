package scoring

import (
	"reflect"
	"testing"

	"homescout/config"
	"homescout/models"
)

const baseCriteria = `
hard_filters:
  price_max: 3500000
  bedrooms_min: 2
soft_caps:
  price_soft: 3000000
weights:
  natural_light: 10
  outdoor_space: 9
nlp_signals:
  positive:
    light:
      keywords: [bright, sunny]
      weight: 1.0
    outdoor:
      keywords: [terrace, balcony, deck]
      weight: 1.0
    outdoor_private:
      keywords: [private terrace]
      weight: 1.0
  negative:
    dark:
      keywords: [dark]
      weight: 0.6
    no_pets:
      keywords: [no pets]
      weight: 0
    weak_outdoor:
      keywords: [juliet balcony]
      weight: 0.8
`

func mustCriteria(t *testing.T, raw string) *config.Criteria {
	t.Helper()
	c, err := config.ParseCriteria([]byte(raw))
	if err != nil {
		t.Fatalf("ParseCriteria: %v", err)
	}
	return c
}

func f(v float64) *float64 { return &v }

func listing(id int64, price float64, desc string) *models.Listing {
	return &models.Listing{
		ID:          id,
		Address:     "1 Test St",
		Price:       f(price),
		Beds:        f(3),
		Description: desc,
	}
}

func TestGateRejectsPriceAboveMax(t *testing.T) {
	e := NewEngine(mustCriteria(t, baseCriteria))
	l := listing(1, 3600000, "Bright, sunny, private terrace, deck and balcony.")

	ok, res := e.ScoreListing(l, 0)
	if ok {
		t.Fatal("listing above price_max must not match")
	}
	if res.GateFailure != GatePriceAboveMax {
		t.Errorf("gate failure = %q; want %q", res.GateFailure, GatePriceAboveMax)
	}
}

func TestGateMissingRequiredFields(t *testing.T) {
	e := NewEngine(mustCriteria(t, baseCriteria))

	noBeds := listing(1, 2000000, "Bright")
	noBeds.Beds = nil
	if _, res := e.ScoreListing(noBeds, 0); res.GateFailure != GateBedrooms {
		t.Errorf("missing beds: gate failure = %q; want %q", res.GateFailure, GateBedrooms)
	}

	noPrice := listing(2, 0, "Bright")
	noPrice.Price = nil
	if _, res := e.ScoreListing(noPrice, 0); res.GateFailure != GatePriceUnknown {
		t.Errorf("missing price: gate failure = %q; want %q", res.GateFailure, GatePriceUnknown)
	}
}

func TestGateDarkWithoutLight(t *testing.T) {
	e := NewEngine(mustCriteria(t, baseCriteria))

	ok, res := e.ScoreListing(listing(1, 2500000, "Dark and cozy rooms."), 0)
	if ok || res.GateFailure != GateDark {
		t.Errorf("dark listing: ok=%v gate=%q; want rejection %q", ok, res.GateFailure, GateDark)
	}

	ok, res = e.ScoreListing(listing(2, 2500000, "Bright rooms with dark wood floors."), 0)
	if !ok {
		t.Errorf("dark with light should pass the gate, got %q", res.GateFailure)
	}
}

func TestGateInactiveStatus(t *testing.T) {
	e := NewEngine(mustCriteria(t, baseCriteria))
	l := listing(1, 2500000, "Bright")
	l.ListingStatus = "Pending Sale"
	if _, res := e.ScoreListing(l, 0); res.GateFailure != GateInactive {
		t.Errorf("gate failure = %q; want %q", res.GateFailure, GateInactive)
	}
}

func TestGateNoisyTranquility(t *testing.T) {
	e := NewEngine(mustCriteria(t, baseCriteria))
	l := listing(1, 2500000, "Bright")
	score := 35
	l.TranquilityScore = &score
	if _, res := e.ScoreListing(l, 0); res.GateFailure != GateNoisy {
		t.Errorf("gate failure = %q; want %q", res.GateFailure, GateNoisy)
	}
}

func TestGateNoPetsOnlyInRentMode(t *testing.T) {
	crit := mustCriteria(t, baseCriteria)
	l := listing(1, 2500000, "No pets. Bright flat.")

	if ok, res := NewEngine(crit, WithMode(ModeRent)).ScoreListing(l, 0); ok || res.GateFailure != GateNoPets {
		t.Errorf("rent mode: ok=%v gate=%q; want %q", ok, res.GateFailure, GateNoPets)
	}
	if ok, res := NewEngine(crit, WithMode(ModeBuy)).ScoreListing(l, 0); !ok {
		t.Errorf("buy mode should ignore pets, got gate %q", res.GateFailure)
	}
}

func TestTierBoundaryExactlyEighty(t *testing.T) {
	crit := mustCriteria(t, `
weights:
  in_unit_laundry: 8
  gym_fitness: 2
`)
	e := NewEngine(crit)
	l := &models.Listing{ID: 1, Address: "2 Test St", Description: "Washer/dryer in unit."}

	ok, res := e.ScoreListing(l, 80)
	if !ok {
		t.Fatalf("expected a match at exactly 80%%, got %+v", res)
	}
	if res.Percent != 80 {
		t.Errorf("percent = %v; want 80", res.Percent)
	}
	if res.Tier != TierExceptional {
		t.Errorf("tier = %q; want %q", res.Tier, TierExceptional)
	}
}

func TestTier(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{100, TierExceptional}, {80, TierExceptional}, {79.99, TierStrong}, {70, TierStrong},
		{60, TierInteresting}, {59.9, TierPass}, {0, TierPass},
	}
	for _, tt := range tests {
		if got := Tier(tt.pct); got != tt.want {
			t.Errorf("Tier(%v) = %q; want %q", tt.pct, got, tt.want)
		}
	}
}

func TestScoreDeterministic(t *testing.T) {
	e := NewEngine(mustCriteria(t, baseCriteria))
	l := listing(1, 3100000, "Sunny top floor with a private terrace and deck.")
	tq := 82
	l.TranquilityScore = &tq

	first := e.Score(l)
	for i := 0; i < 5; i++ {
		if got := e.Score(l); !reflect.DeepEqual(got, first) {
			t.Fatalf("score changed between calls:\n%+v\n%+v", first, got)
		}
	}
}

func TestOutdoorPrivateBeatsWeak(t *testing.T) {
	e := NewEngine(mustCriteria(t, baseCriteria))
	private := e.Score(listing(1, 2000000, "Private terrace off the living room."))
	weak := e.Score(listing(2, 2000000, "Juliet balcony off the bedroom."))

	p := private.Breakdown["outdoor_space"].Score
	w := weak.Breakdown["outdoor_space"].Score
	if p != 7.5 {
		t.Errorf("private outdoor score = %v; want 7.5", p)
	}
	if w != 2 {
		t.Errorf("weak outdoor score = %v; want 2", w)
	}
}

func TestSoftCapTradeoff(t *testing.T) {
	e := NewEngine(mustCriteria(t, baseCriteria))
	res := e.Score(listing(1, 3200000, "Bright"))
	if res.SoftCapPenalty != 4 {
		t.Errorf("soft cap penalty = %v; want 4", res.SoftCapPenalty)
	}
	if res.Tradeoff != "Above soft cap by $200,000" {
		t.Errorf("tradeoff = %q", res.Tradeoff)
	}
}

func TestMultipliersScaleEffectiveWeights(t *testing.T) {
	crit := mustCriteria(t, baseCriteria)
	e := NewEngine(crit, WithMultipliers(map[string]float64{"natural_light": 2}))
	w := e.EffectiveWeights()
	if w["natural_light"] != 20 || w["outdoor_space"] != 9 {
		t.Errorf("effective weights = %v", w)
	}
}

func TestScoreNeverFailsOnEmptyListing(t *testing.T) {
	e := NewEngine(mustCriteria(t, "weights:\n  natural_light: 5\n"))
	res := e.Score(&models.Listing{})
	if !res.Matches || res.Percent != 0 || res.Tier != TierPass {
		t.Errorf("empty listing result = %+v", res)
	}
	if res := e.Score(nil); res.Matches {
		t.Error("nil listing must not match")
	}
}

func TestFindMatchesRanksAndSummarises(t *testing.T) {
	e := NewEngine(mustCriteria(t, baseCriteria))
	listings := []*models.Listing{
		listing(2, 2500000, "Sunny."),
		listing(3, 4000000, "Bright terrace."),
		listing(1, 2500000, "Bright terrace."),
	}

	report := e.FindMatches(listings, 0, 10)
	if report.Analyzed != 3 {
		t.Errorf("analyzed = %d; want 3", report.Analyzed)
	}
	if len(report.Matches) != 2 {
		t.Fatalf("matches = %d; want 2", len(report.Matches))
	}
	if report.Matches[0].Listing.ID != 1 || report.Matches[1].Listing.ID != 2 {
		t.Errorf("order = %d, %d; want 1, 2", report.Matches[0].Listing.ID, report.Matches[1].Listing.ID)
	}
	want := "Analyzed 3 listings. Showing 2 that matter. Filtered by: price under $3.5M, 2+ beds"
	if report.Summary != want {
		t.Errorf("summary = %q; want %q", report.Summary, want)
	}
}

func TestPenalties(t *testing.T) {
	soft, hard := f(3000000), f(3500000)
	softTests := []struct {
		price *float64
		want  float64
	}{
		{nil, 0}, {f(2900000), 0}, {f(3000000), 0}, {f(3250000), 5}, {f(3500000), 10}, {f(4000000), 10},
	}
	for _, tt := range softTests {
		if got := SoftCapPenalty(tt.price, soft, hard); got != tt.want {
			t.Errorf("SoftCapPenalty(%v) = %v; want %v", tt.price, got, tt.want)
		}
	}

	hoaTests := []struct {
		fee  *float64
		want float64
	}{
		{nil, 0}, {f(300), 0}, {f(800), 0}, {f(801), 5}, {f(1000), 5}, {f(1001), 10},
	}
	for _, tt := range hoaTests {
		if got := HOAPenalty(tt.fee); got != tt.want {
			t.Errorf("HOAPenalty(%v) = %v; want %v", tt.fee, got, tt.want)
		}
	}
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{3500000, "$3.5M"}, {1250000, "$1.25M"}, {2000000, "$2M"}, {950000, "$950,000"}, {800, "$800"},
	}
	for _, tt := range tests {
		if got := FormatCurrency(tt.v); got != tt.want {
			t.Errorf("FormatCurrency(%v) = %q; want %q", tt.v, got, tt.want)
		}
	}
}

func TestSkipSummaryAllShown(t *testing.T) {
	if got := SkipSummary(4, 4, nil); got != "Showing all 4 matching listings." {
		t.Errorf("SkipSummary = %q", got)
	}
	if got := SkipSummary(1847, 12, nil); got != "Analyzed 1,847 listings. Showing 12 that matter." {
		t.Errorf("SkipSummary = %q", got)
	}
}

func TestMeasuredScoresFloorTextSignals(t *testing.T) {
	crit := mustCriteria(t, baseCriteria)
	tests := []struct {
		name  string
		tq    int
		score float64
	}{
		{"very quiet without wording", 100, 10},
		{"moderate without wording", 60, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := listing(1, 2000000, "Bright flat.")
			tq := tt.tq
			l.TranquilityScore = &tq
			if got, _ := scoreQuiet(newInput(l, crit)); got != tt.score {
				t.Errorf("location_quiet = %v; want %v", got, tt.score)
			}
		})
	}

	l := listing(1, 2000000, "Bright flat.")
	vq := 90.0
	l.VisualQuality = &vq
	if got, _ := scoreBuilding(newInput(l, crit)); got != 9 {
		t.Errorf("building = %v; want 9", got)
	}
}
