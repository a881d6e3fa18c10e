package models

import "time"

// InsightMatch is one top match line of an InsightReport.
type InsightMatch struct {
	ListingID int64    `json:"listing_id"`
	Address   string   `json:"address"`
	Price     *float64 `json:"price,omitempty"`
	Percent   float64  `json:"score_percent"`
	Tier      string   `json:"tier"`
	Narrative string   `json:"narrative"`
}

// InsightReport summarises one ingestion run and the scored inventory.
type InsightReport struct {
	RunID       string                 `json:"run_id,omitempty"`
	Duration    time.Duration          `json:"duration"`
	Sources     map[string]SourceStats `json:"sources"`
	DetailCalls int64                  `json:"detail_calls"`
	LastError   string                 `json:"last_error,omitempty"`

	TotalListings          int            `json:"total_listings"`
	ListingsBySource       map[string]int `json:"listings_by_source"`
	ListingsByNeighborhood map[string]int `json:"listings_by_neighborhood"`

	AveragePrice  float64  `json:"average_price"`
	MedianPrice   float64  `json:"median_price"`
	MinPrice      float64  `json:"min_price"`
	MaxPrice      float64  `json:"max_price"`
	MostExpensive *Listing `json:"most_expensive,omitempty"`

	TierCounts   map[string]int `json:"tier_counts"`
	TopMatches   []InsightMatch `json:"top_matches"`
	MatchSummary string         `json:"match_summary"`
}
