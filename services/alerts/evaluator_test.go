package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"homescout/config"
	"homescout/models"
	"homescout/storage"
	"homescout/utils"
)

const testCriteria = `
hard_filters:
  price_max: 3000000
weights:
  parking: 10
`

type recordingTransport struct {
	batches []models.AlertBatch
	err     error
}

func (r *recordingTransport) Send(ctx context.Context, b models.AlertBatch) error {
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, b)
	return nil
}

func (r *recordingTransport) kind(k models.AlertKind) []models.Alert {
	var out []models.Alert
	for _, b := range r.batches {
		if b.Kind == k {
			out = append(out, b.Alerts...)
		}
	}
	return out
}

type fixture struct {
	t         *testing.T
	ctx       context.Context
	store     *storage.MemoryStore
	transport *recordingTransport
	eval      *Evaluator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	crit, err := config.ParseCriteria([]byte(testCriteria))
	if err != nil {
		t.Fatalf("ParseCriteria: %v", err)
	}
	store := storage.NewMemoryStore()
	tr := &recordingTransport{}
	return &fixture{
		t:         t,
		ctx:       context.Background(),
		store:     store,
		transport: tr,
		eval:      NewEvaluator(store, tr, config.NewStaticCriteriaStore(crit), utils.NewNopLogger()),
	}
}

// listing seeds a listing that scores 100% when good, and one priced above
// the hard cap otherwise.
func (f *fixture) listing(address string, good bool, dom *int) int64 {
	f.t.Helper()
	price := 2_000_000.0
	if !good {
		price = 3_500_000
	}
	l := &models.Listing{
		Source:        "mock",
		Address:       address,
		URL:           "https://example.com/" + address,
		Price:         &price,
		ListingStatus: "active",
		Status:        "active",
		DaysOnMarket:  dom,
	}
	if good {
		spaces := 1
		l.ParkingSpaces = &spaces
	}
	var id int64
	err := f.store.WithTx(f.ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		id, err = tx.InsertListing(ctx, l)
		return err
	})
	if err != nil {
		f.t.Fatalf("InsertListing: %v", err)
	}
	return id
}

func (f *fixture) event(listingID int64, typ models.EventType, percent *float64) int64 {
	f.t.Helper()
	ev, err := f.store.InsertEvent(f.ctx, models.Event{
		ListingID: listingID,
		Type:      typ,
		Details:   models.EventDetails{Percent: percent},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		f.t.Fatalf("InsertEvent: %v", err)
	}
	return ev.ID
}

func (f *fixture) evaluate() Result {
	f.t.Helper()
	res, err := f.eval.Evaluate(f.ctx, time.Time{})
	if err != nil {
		f.t.Fatalf("Evaluate: %v", err)
	}
	return res
}

func (f *fixture) flags(eventID int64) models.AlertFlags {
	for _, e := range f.store.Events() {
		if e.ID == eventID {
			return e.Alerts
		}
	}
	f.t.Fatalf("event %d not found", eventID)
	return models.AlertFlags{}
}

func pct(v float64) *float64 { return &v }
func days(v int) *int         { return &v }

func TestNewListingImmediateOnce(t *testing.T) {
	f := newFixture(t)
	good := f.event(f.listing("1 Good St", true, nil), models.EventNewListing, nil)
	f.event(f.listing("2 Poor St", false, nil), models.EventNewListing, nil)

	res := f.evaluate()
	if res.Immediate != 1 || res.Digest != 0 {
		t.Fatalf("result = %+v; want 1 immediate", res)
	}
	alerts := f.transport.kind(models.AlertImmediate)
	if alerts[0].Address != "1 Good St" || alerts[0].Reason != ReasonNewListing {
		t.Errorf("alert = %+v", alerts[0])
	}
	if alerts[0].ScorePercent != "100.0" || alerts[0].Tier != "Exceptional" {
		t.Errorf("score = %s %s; want 100.0 Exceptional", alerts[0].ScorePercent, alerts[0].Tier)
	}
	if !f.flags(good).AlertedImmediate {
		t.Error("event not flagged alerted_immediate")
	}

	if again := f.evaluate(); again.Immediate != 0 {
		t.Errorf("second run immediate = %d; want 0", again.Immediate)
	}
}

func TestPriceDropTiers(t *testing.T) {
	tests := []struct {
		name          string
		percent       *float64
		wantImmediate int
		wantDigest    int
	}{
		{"large drop", pct(6), 1, 0},
		{"exactly immediate threshold", pct(5), 1, 0},
		{"just under immediate threshold", pct(4.9999), 0, 1},
		{"digest drop", pct(4), 0, 1},
		{"below digest threshold", pct(2), 0, 0},
		{"missing percent", nil, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id := f.event(f.listing("1 Drop St", true, nil), models.EventPriceDrop, tt.percent)

			res := f.evaluate()
			if res.Immediate != tt.wantImmediate || res.Digest != tt.wantDigest {
				t.Fatalf("result = %+v; want %d immediate, %d digest", res, tt.wantImmediate, tt.wantDigest)
			}
			fl := f.flags(id)
			if fl.AlertedImmediate != (tt.wantImmediate == 1) || fl.AlertedDigest != (tt.wantDigest == 1) {
				t.Errorf("flags = %+v", fl)
			}
		})
	}
}

func TestPriceDropRequiresGate(t *testing.T) {
	f := newFixture(t)
	f.event(f.listing("1 Pricey St", false, nil), models.EventPriceDrop, pct(10))

	if res := f.evaluate(); res.Immediate != 0 {
		t.Errorf("immediate = %d; want 0 above the hard cap", res.Immediate)
	}
}

func TestBackOnMarketAndDedupe(t *testing.T) {
	f := newFixture(t)
	id := f.listing("1 Return St", true, nil)
	first := f.event(id, models.EventNewListing, nil)
	second := f.event(id, models.EventBackOnMarket, nil)

	res := f.evaluate()
	if res.Immediate != 1 {
		t.Fatalf("immediate = %d; want one alert per listing", res.Immediate)
	}
	if !f.flags(first).AlertedImmediate || !f.flags(second).AlertedImmediate {
		t.Error("both events should be flagged")
	}
}

func TestBackOnMarketReason(t *testing.T) {
	f := newFixture(t)
	f.event(f.listing("1 Return St", true, nil), models.EventBackOnMarket, nil)
	f.evaluate()
	alerts := f.transport.kind(models.AlertImmediate)
	if len(alerts) != 1 || alerts[0].Reason != ReasonBackOnMarket {
		t.Errorf("alerts = %+v; want one back-on-market alert", alerts)
	}
}

func TestDOMStaleDigestOncePerListing(t *testing.T) {
	f := newFixture(t)
	id := f.listing("1 Stale St", true, days(50))
	f.listing("2 Fresh St", true, days(10))
	f.listing("3 Stale Poor St", false, days(90))

	res := f.evaluate()
	if res.Digest != 1 || res.StaleEvents != 1 {
		t.Fatalf("result = %+v; want 1 digest and 1 dom_stale event", res)
	}
	a := f.transport.kind(models.AlertDigest)[0]
	if a.Reason != "DOM 50" || a.WhyNow != "DOM 50" {
		t.Errorf("alert reason = %q why_now = %q; want DOM 50", a.Reason, a.WhyNow)
	}
	seen, _ := f.store.HasEvent(f.ctx, id, models.EventDOMStale)
	if !seen {
		t.Error("dom_stale event not recorded")
	}

	if again := f.evaluate(); again.Digest != 0 {
		t.Errorf("second run digest = %d; want 0", again.Digest)
	}
}

func TestSendFailureLeavesEventsUnflagged(t *testing.T) {
	f := newFixture(t)
	f.transport.err = errors.New("broker down")
	id := f.event(f.listing("1 Good St", true, days(60)), models.EventNewListing, nil)

	_, err := f.eval.Evaluate(f.ctx, time.Time{})
	if err == nil {
		t.Fatal("Evaluate returned nil error on transport failure")
	}
	if f.flags(id).AlertedImmediate {
		t.Error("event flagged despite failed send")
	}
	listings, _ := f.store.Listings(f.ctx)
	if seen, _ := f.store.HasEvent(f.ctx, listings[0].ID, models.EventDOMStale); seen {
		t.Error("dom_stale recorded despite failed send")
	}

	f.transport.err = nil
	if res := f.evaluate(); res.Immediate != 1 || res.Digest != 1 {
		t.Errorf("retry result = %+v; want 1 immediate, 1 digest", res)
	}
}

type fakeWeights struct {
	m   map[string]float64
	err error
}

func (w fakeWeights) Multipliers(ctx context.Context, userID int64) (map[string]float64, error) {
	return w.m, w.err
}

func TestLearnedWeightsFallback(t *testing.T) {
	f := newFixture(t)
	f.eval = NewEvaluator(f.store, f.transport, f.eval.criteria, utils.NewNopLogger(),
		WithLearnedWeights(fakeWeights{err: errors.New("db down")}, 7))
	f.event(f.listing("1 Good St", true, nil), models.EventNewListing, nil)

	if res := f.evaluate(); res.Immediate != 1 {
		t.Errorf("immediate = %d; want base-weight scoring when learned weights fail", res.Immediate)
	}
}

func TestWhyNow(t *testing.T) {
	cut := 100_000.0
	price := 1_900_000.0
	tests := []struct {
		name string
		l    models.Listing
		want string
	}{
		{"price reduction", models.Listing{Price: &price, PriceReductionAmount: &cut}, "Price drop 5%"},
		{"back on market", models.Listing{Flags: models.Flags{BackOnMarket: true}}, ReasonBackOnMarket},
		{"stale", models.Listing{DaysOnMarket: days(45)}, "DOM 45"},
		{"fresh", models.Listing{DaysOnMarket: days(3)}, ReasonNewListing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WhyNow(&tt.l, 45); got != tt.want {
				t.Errorf("WhyNow() = %q; want %q", got, tt.want)
			}
		})
	}
}
