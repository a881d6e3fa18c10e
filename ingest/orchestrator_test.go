package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"homescout/config"
	"homescout/models"
	"homescout/providers"
	"homescout/storage"
	"homescout/utils"
)

type recordingUpserter struct {
	mu      sync.Mutex
	batches [][]*models.RawListing
}

func (r *recordingUpserter) Upsert(ctx context.Context, records []*models.RawListing) storage.UpsertStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, records)
	return storage.UpsertStats{Inserted: len(records)}
}

func (r *recordingUpserter) records() []*models.RawListing {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.RawListing
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func testCriteria(t *testing.T) *config.CriteriaStore {
	t.Helper()
	c, err := config.ParseCriteria([]byte("hard_filters: {}\n"))
	if err != nil {
		t.Fatalf("ParseCriteria: %v", err)
	}
	return config.NewStaticCriteriaStore(c)
}

func summary(id string, price float64, photos int) *models.RawListing {
	r := &models.RawListing{
		SourceListingID: models.Ptr(id),
		Address:         models.Ptr(id + " Test St"),
		Price:           models.Ptr(price),
	}
	for i := 0; i < photos; i++ {
		r.Photos = append(r.Photos, "https://img/"+id+"/"+string(rune('a'+i))+".jpg")
	}
	return r
}

func factoryFor(mocks map[string]*providers.MockProvider) ProviderFactory {
	return func(key string) (providers.Provider, error) {
		m, ok := mocks[key]
		if !ok {
			return nil, providers.ErrUnknownProvider
		}
		return m, nil
	}
}

func newTestOrchestrator(t *testing.T, opts Options, mocks map[string]*providers.MockProvider, up Upserter) *Orchestrator {
	t.Helper()
	return New(opts, factoryFor(mocks), up, testCriteria(t), utils.NewNopLogger())
}

func TestDetailBudgetExhaustion(t *testing.T) {
	mock := providers.NewMockProvider(
		[][]*models.RawListing{{summary("a", 1e6, 0), summary("b", 1e6, 0), summary("c", 1e6, 0)}},
		map[string]*models.RawListing{
			"a": {Description: models.Ptr("Bright home with garage.")},
			"b": {Description: models.Ptr("Bright home with garage.")},
			"c": {Description: models.Ptr("Bright home with garage.")},
		},
	)
	up := &recordingUpserter{}
	o := newTestOrchestrator(t, Options{Sources: []string{"mock"}, MaxPages: 1, MaxDetailCalls: 2},
		map[string]*providers.MockProvider{"mock": mock}, up)

	progress := o.Run(context.Background())

	if got := progress.DetailCalls(); got != 2 {
		t.Errorf("DetailCalls = %d; want 2", got)
	}
	if got := mock.DetailCalls(); got != 2 {
		t.Errorf("provider detail calls = %d; want 2", got)
	}
	recs := up.records()
	if len(recs) != 3 {
		t.Fatalf("upserted %d records; want 3", len(recs))
	}
	enriched := 0
	for _, r := range recs {
		if r.Description != nil {
			enriched++
		}
	}
	if enriched != 2 {
		t.Errorf("enriched = %d; want 2 (1 summary-only)", enriched)
	}
	if !mock.Closed() {
		t.Error("provider was not closed")
	}
	if progress.Running() {
		t.Error("progress still running after Run returned")
	}
}

func TestPagingStopsAtPageCap(t *testing.T) {
	mock := providers.NewMockProvider([][]*models.RawListing{
		{summary("p1", 1, 0)},
		{summary("p2", 1, 0)},
		{summary("p3", 1, 0)},
	}, nil)
	up := &recordingUpserter{}
	o := newTestOrchestrator(t, Options{Sources: []string{"mock"}, MaxPages: 2},
		map[string]*providers.MockProvider{"mock": mock}, up)

	progress := o.Run(context.Background())

	if got := mock.SearchCalls(); got != 2 {
		t.Errorf("search calls = %d; want 2", got)
	}
	if got := progress.SummaryCount(); got != 2 {
		t.Errorf("SummaryCount = %d; want 2", got)
	}
	if got := progress.DetailCalls(); got != 0 {
		t.Errorf("DetailCalls = %d; want 0 with a zero budget", got)
	}
}

func TestSourceFailuresAreIsolated(t *testing.T) {
	flaky := providers.NewMockProvider([][]*models.RawListing{
		{summary("f1", 1, 0)},
		{summary("f2", 1, 0)},
	}, nil)
	flaky.SearchErr = map[int]error{2: errors.New("upstream 503")}

	up := &recordingUpserter{}
	o := newTestOrchestrator(t, Options{Sources: []string{"missing", "flaky"}, MaxPages: 5},
		map[string]*providers.MockProvider{"flaky": flaky}, up)

	progress := o.Run(context.Background())
	stats := progress.Stats()

	if !strings.Contains(stats.Sources["missing"].Error, "unknown provider") {
		t.Errorf("missing source error = %q", stats.Sources["missing"].Error)
	}
	if !strings.Contains(stats.Sources["flaky"].Error, "page 2") {
		t.Errorf("flaky source error = %q; want page 2 failure", stats.Sources["flaky"].Error)
	}
	if stats.LastError == "" {
		t.Error("LastError is empty")
	}
	recs := up.records()
	if len(recs) != 1 || models.Str(recs[0].SourceListingID) != "f1" {
		t.Errorf("records = %+v; want page 1 persisted", recs)
	}
	if stats.UpsertCount != 1 {
		t.Errorf("UpsertCount = %d; want 1", stats.UpsertCount)
	}
}

// panickingProvider blows up on one search page and one detail id.
type panickingProvider struct {
	*providers.MockProvider
	page     int
	detailID string
}

func (p *panickingProvider) Search(ctx context.Context, page int) ([]*models.RawListing, bool, error) {
	if page == p.page {
		var m map[string]int
		m["boom"]++
	}
	return p.MockProvider.Search(ctx, page)
}

func (p *panickingProvider) GetDetails(ctx context.Context, id string) (*models.RawListing, error) {
	if id == p.detailID {
		panic("detail parser exploded")
	}
	return p.MockProvider.GetDetails(ctx, id)
}

func TestProviderPanicsAreIsolated(t *testing.T) {
	boom := &panickingProvider{
		MockProvider: providers.NewMockProvider([][]*models.RawListing{
			{summary("b1", 1, 0)},
			{summary("b2", 1, 0)},
		}, nil),
		page:     2,
		detailID: "b1",
	}
	steady := providers.NewMockProvider([][]*models.RawListing{{summary("s1", 1, 0)}},
		map[string]*models.RawListing{"s1": {Description: models.Ptr("Bright.")}})

	factory := func(key string) (providers.Provider, error) {
		switch key {
		case "boom":
			return boom, nil
		case "steady":
			return steady, nil
		}
		return nil, providers.ErrUnknownProvider
	}
	up := &recordingUpserter{}
	o := New(Options{Sources: []string{"boom", "steady"}, MaxPages: 5, MaxDetailCalls: 5, SourceConcurrency: 2},
		factory, up, testCriteria(t), utils.NewNopLogger())

	stats := o.Run(context.Background()).Stats()

	if !strings.Contains(stats.Sources["boom"].Error, "provider panic") {
		t.Errorf("boom source error = %q; want provider panic", stats.Sources["boom"].Error)
	}
	if stats.Sources["boom"].DetailCalls != 1 {
		t.Errorf("boom detail calls = %d; want 1", stats.Sources["boom"].DetailCalls)
	}
	if stats.Sources["steady"].Error != "" {
		t.Errorf("steady source error = %q; want none", stats.Sources["steady"].Error)
	}
	ids := map[string]bool{}
	for _, r := range up.records() {
		ids[models.Str(r.SourceListingID)] = true
	}
	if !ids["b1"] || !ids["s1"] || len(ids) != 2 {
		t.Errorf("persisted %v; want b1 and s1", ids)
	}
}

func TestDetailTimeoutLeavesSummary(t *testing.T) {
	mock := providers.NewMockProvider(
		[][]*models.RawListing{{summary("slow", 1, 0)}},
		map[string]*models.RawListing{"slow": {Description: models.Ptr("Bright.")}},
	)
	mock.DetailDelay = 500 * time.Millisecond
	up := &recordingUpserter{}
	o := newTestOrchestrator(t, Options{
		Sources:        []string{"mock"},
		MaxDetailCalls: 5,
		DetailTimeout:  20 * time.Millisecond,
	}, map[string]*providers.MockProvider{"mock": mock}, up)

	progress := o.Run(context.Background())

	if got := progress.DetailCalls(); got != 1 {
		t.Errorf("DetailCalls = %d; want 1 attempted call", got)
	}
	recs := up.records()
	if len(recs) != 1 {
		t.Fatalf("records = %d; want 1", len(recs))
	}
	if recs[0].Description != nil {
		t.Error("timed out detail should leave summary fields only")
	}
}

func TestProviderTimeoutPersistsCompletedWork(t *testing.T) {
	mock := providers.NewMockProvider(
		[][]*models.RawListing{{summary("a", 1, 0), summary("b", 1, 0)}},
		map[string]*models.RawListing{"a": {Description: models.Ptr("x")}, "b": {Description: models.Ptr("y")}},
	)
	mock.DetailDelay = time.Second
	up := &recordingUpserter{}
	o := newTestOrchestrator(t, Options{
		Sources:         []string{"mock"},
		MaxDetailCalls:  2,
		ProviderTimeout: 30 * time.Millisecond,
	}, map[string]*providers.MockProvider{"mock": mock}, up)

	progress := o.Run(context.Background())

	if !strings.Contains(progress.LastError(), "timeout for mock") {
		t.Errorf("LastError = %q; want source timeout", progress.LastError())
	}
	if got := len(up.records()); got != 2 {
		t.Errorf("records = %d; want summaries persisted after timeout", got)
	}
}

func TestEnrichAttachesDerivedFields(t *testing.T) {
	s := &models.RawListing{
		ListingID: models.Ptr("legacy-1"),
		Address:   models.Ptr("3951 21st St"),
		Lat:       models.Ptr(37.7566),
		Lon:       models.Ptr(-122.4309),
	}
	d := &models.RawListing{
		Description:  models.Ptr("Bright top floor home with a garage."),
		Neighborhood: models.Ptr("San Francisco"),
		Photos:       []string{"https://img/1.jpg"},
	}
	mock := providers.NewMockProvider([][]*models.RawListing{{s}},
		map[string]*models.RawListing{"legacy-1": d})
	up := &recordingUpserter{}
	o := newTestOrchestrator(t, Options{Sources: []string{"mock"}, MaxDetailCalls: 1},
		map[string]*providers.MockProvider{"mock": mock}, up)

	o.Run(context.Background())

	recs := up.records()
	if len(recs) != 1 {
		t.Fatalf("records = %d; want 1", len(recs))
	}
	r := recs[0]
	if models.Str(r.Source) != "mock" {
		t.Errorf("Source = %q; want provider key", models.Str(r.Source))
	}
	if models.Str(r.SourceListingID) != "legacy-1" {
		t.Errorf("SourceListingID = %q; want legacy id", models.Str(r.SourceListingID))
	}
	if r.Flags == nil || !r.Flags.Parking || !r.Flags.NaturalLight {
		t.Errorf("Flags = %+v; want parking and natural_light", r.Flags)
	}
	if r.Tranquility == nil {
		t.Error("Tranquility not attached")
	}
	if r.LightPotential == nil {
		t.Error("LightPotential not attached")
	}
	if got := models.Str(r.Neighborhood); got != "Dolores Heights" {
		t.Errorf("Neighborhood = %q; want Dolores Heights from coordinates", got)
	}
}

func TestDedupe(t *testing.T) {
	within := summary("dup", 900, 1)
	over := summary("dup", 2000, 5)
	many := summary("other", 2000, 4)
	none := &models.RawListing{Address: models.Ptr("no id")}

	got := Dedupe([]*models.RawListing{over, many, within, none}, "mock", 1000)

	if len(got) != 3 {
		t.Fatalf("len = %d; want 3", len(got))
	}
	if got[0] != within {
		t.Errorf("first = %+v; want in-budget duplicate", got[0])
	}
	if got[1] != many {
		t.Errorf("second = %+v; want the 4-photo candidate", got[1])
	}
	if got[2] != none {
		t.Errorf("third = %+v; want identifier-less record last", got[2])
	}
}

func TestDedupeWithoutBudgetPrefersPhotos(t *testing.T) {
	few := summary("x", 100, 1)
	more := summary("x", 100, 3)
	got := Dedupe([]*models.RawListing{few, more}, "mock", 0)
	if len(got) != 1 || got[0] != more {
		t.Errorf("got %+v; want the candidate with more photos", got)
	}
}

func TestOptionsFromConfigFallsBackToCriteriaCap(t *testing.T) {
	priceCap := 3_500_000.0
	crit := &config.Criteria{}
	crit.HardFilters.PriceMax = &priceCap

	opts := OptionsFromConfig(&config.Config{Sources: []string{"mock"}, PageDelayMs: 250}, crit)
	if opts.PriceMax != priceCap {
		t.Errorf("PriceMax = %v; want %v", opts.PriceMax, priceCap)
	}
	if opts.PageDelay != 250*time.Millisecond {
		t.Errorf("PageDelay = %v; want 250ms", opts.PageDelay)
	}

	opts = OptionsFromConfig(&config.Config{SearchPriceMax: 2_000_000}, crit)
	if opts.PriceMax != 2_000_000 {
		t.Errorf("PriceMax = %v; want env override", opts.PriceMax)
	}
}

func TestRunWithPersister(t *testing.T) {
	store := storage.NewMemoryStore()
	persister := storage.NewPersister(store, utils.NewNopLogger())
	o := New(Options{Sources: []string{"mock"}, MaxPages: 3, MaxDetailCalls: 10, DetailConcurrency: 2},
		factoryFor(map[string]*providers.MockProvider{"mock": providers.NewSampleProvider()}),
		persister, testCriteria(t), utils.NewNopLogger())

	progress := o.Run(context.Background())

	listings, err := store.Listings(context.Background())
	if err != nil {
		t.Fatalf("Listings: %v", err)
	}
	if len(listings) != 5 {
		t.Errorf("listings = %d; want 5", len(listings))
	}
	if progress.UpsertCount() != 5 {
		t.Errorf("UpsertCount = %d; want 5", progress.UpsertCount())
	}
	if o.Last() != progress {
		t.Error("Last does not return the finished run")
	}
}
