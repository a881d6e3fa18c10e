package models

import "time"

// AlertKind selects the notification channel.
type AlertKind string

const (
	AlertImmediate AlertKind = "immediate"
	AlertDigest    AlertKind = "digest"
)

// Alert is one listing notification handed to the transport.
type Alert struct {
	ListingID    int64     `json:"listing_id"`
	EventID      int64     `json:"event_id,omitempty"`
	EventType    EventType `json:"event_type"`
	Address      string    `json:"address"`
	Price        *float64  `json:"price,omitempty"`
	URL          string    `json:"url"`
	ScorePercent string    `json:"score_percent"`
	ScorePoints  float64   `json:"score_points"`
	Tier         string    `json:"tier"`
	TopPositives []string  `json:"top_positives"`
	Tradeoff     string    `json:"tradeoff,omitempty"`
	WhyNow       string    `json:"why_now"`
	Reason       string    `json:"reason"`
}

// AlertBatch groups the alerts of one channel in one evaluator invocation.
type AlertBatch struct {
	ID        string    `json:"id"`
	Kind      AlertKind `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	Alerts    []Alert   `json:"alerts"`
}
