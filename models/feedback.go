package models

import "time"

// FeedbackType is a user's reaction to a listing.
type FeedbackType string

const (
	FeedbackLike    FeedbackType = "like"
	FeedbackDislike FeedbackType = "dislike"
	FeedbackNeutral FeedbackType = "neutral"
)

// Feedback is one user's reaction to one listing.
type Feedback struct {
	UserID    int64        `json:"user_id"`
	ListingID int64        `json:"listing_id"`
	Type      FeedbackType `json:"feedback_type"`
	CreatedAt time.Time    `json:"created_at"`
}

// FeedbackSignal joins a feedback row to the listing's last computed
// per-criterion breakdown.
type FeedbackSignal struct {
	ListingID     int64
	Type          FeedbackType
	FeatureScores map[string]CriterionScore
	CreatedAt     time.Time
}

// LearnedWeight is the per-user, per-criterion learned state.
type LearnedWeight struct {
	Multiplier  float64   `json:"multiplier"`
	SignalCount int       `json:"signal_count"`
	LastUpdated time.Time `json:"last_updated"`
}
