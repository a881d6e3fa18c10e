package services

import (
	"testing"
	"time"

	"homescout/models"
	"homescout/services/scoring"
)

func fp(v float64) *float64 { return &v }

func sampleListings() []*models.Listing {
	return []*models.Listing{
		{ID: 1, Source: "mock", Address: "1 Castro St", Price: fp(2_000_000), Neighborhood: "Dolores Heights", MatchScore: fp(85)},
		{ID: 2, Source: "mock", Address: "2 Carolina St", Price: fp(1_500_000), Neighborhood: "Potrero Hill", MatchScore: fp(72)},
		{ID: 3, Source: "gateway", Address: "3 Carl St", Price: fp(3_000_000), Neighborhood: "Cole Valley", MatchScore: fp(40)},
		{ID: 4, Source: "gateway", Address: "4 Fulton St", Price: fp(2_500_000), Neighborhood: "Dolores Heights"},
		{ID: 5, Source: "curated", Address: "5 Noprice St"},
	}
}

func TestInsightCounts(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(nil, sampleListings(), scoring.MatchReport{})
	if r.TotalListings != 5 {
		t.Errorf("TotalListings: got %d, want 5", r.TotalListings)
	}
	want := map[string]int{"mock": 2, "gateway": 2, "curated": 1}
	for src, n := range want {
		if r.ListingsBySource[src] != n {
			t.Errorf("ListingsBySource[%s]: got %d, want %d", src, r.ListingsBySource[src], n)
		}
	}
	if r.ListingsByNeighborhood["Dolores Heights"] != 2 {
		t.Errorf("Dolores Heights count: got %d, want 2", r.ListingsByNeighborhood["Dolores Heights"])
	}
	if r.RunID != "" {
		t.Errorf("RunID: got %q, want empty without a run", r.RunID)
	}
}

func TestInsightPrices(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(nil, sampleListings(), scoring.MatchReport{})
	if r.AveragePrice != 2_250_000 {
		t.Errorf("AveragePrice: got %.2f, want 2250000", r.AveragePrice)
	}
	if r.MedianPrice != 2_250_000 {
		t.Errorf("MedianPrice: got %.2f, want 2250000", r.MedianPrice)
	}
	if r.MinPrice != 1_500_000 || r.MaxPrice != 3_000_000 {
		t.Errorf("Min/Max: got %.0f/%.0f, want 1500000/3000000", r.MinPrice, r.MaxPrice)
	}
	if r.MostExpensive == nil || r.MostExpensive.Address != "3 Carl St" {
		t.Errorf("MostExpensive: got %+v, want 3 Carl St", r.MostExpensive)
	}
}

func TestInsightTierDistribution(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(nil, sampleListings(), scoring.MatchReport{})
	want := map[string]int{
		scoring.TierExceptional: 1,
		scoring.TierStrong:      1,
		scoring.TierPass:        1,
		TierUnscored:            2,
	}
	for tier, n := range want {
		if r.TierCounts[tier] != n {
			t.Errorf("TierCounts[%s]: got %d, want %d", tier, r.TierCounts[tier], n)
		}
	}
}

func TestInsightTopMatchesAndRun(t *testing.T) {
	listings := sampleListings()
	var matches scoring.MatchReport
	for i := 0; i < 7; i++ {
		matches.Matches = append(matches.Matches, scoring.Match{
			Listing: listings[i%len(listings)],
			Result:  models.ScoreResult{Percent: float64(90 - i), Tier: scoring.TierExceptional},
		})
	}
	matches.Summary = "Analyzed 7 listings. Showing 7 that matter."

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	run := &models.RunStats{
		ID:          "run-1",
		StartedAt:   start,
		EndedAt:     start.Add(90 * time.Second),
		DetailCalls: 4,
		Sources:     map[string]models.SourceStats{"mock": {Summaries: 5, Upserts: 5}},
	}

	svc := NewInsightService(newTestLogger())
	r := svc.Generate(run, listings, matches)
	if len(r.TopMatches) != 5 {
		t.Fatalf("TopMatches len: got %d, want 5", len(r.TopMatches))
	}
	if r.TopMatches[0].Percent != 90 || r.TopMatches[0].Address != "1 Castro St" {
		t.Errorf("TopMatches[0]: got %+v", r.TopMatches[0])
	}
	if r.Duration != 90*time.Second {
		t.Errorf("Duration: got %s, want 1m30s", r.Duration)
	}
	if r.Sources["mock"].Upserts != 5 || r.DetailCalls != 4 {
		t.Errorf("run stats not copied: %+v", r)
	}
	if r.MatchSummary != matches.Summary {
		t.Errorf("MatchSummary: got %q", r.MatchSummary)
	}
}

func TestInsightEmptyInput(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(nil, nil, scoring.MatchReport{})
	if r.TotalListings != 0 {
		t.Errorf("expected 0 total listings for empty input")
	}
	if r.AveragePrice != 0 || r.MostExpensive != nil {
		t.Errorf("expected no price stats, got %+v", r)
	}
	svc.Print(r)
}

func TestMedianOdd(t *testing.T) {
	if got := median([]float64{1, 2, 9}); got != 2 {
		t.Errorf("median: got %v, want 2", got)
	}
}
