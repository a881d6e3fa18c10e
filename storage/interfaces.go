package storage

import (
	"context"
	"errors"
	"time"

	"homescout/models"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("storage: not found")

// Tx is the per-record transactional unit used by the Persister. Every call
// made inside one WithTx callback commits or rolls back together.
type Tx interface {
	// LockListingKey serialises writers of the same physical listing.
	LockListingKey(ctx context.Context, key string) error

	FindBySourceID(ctx context.Context, source, sourceListingID string) (*models.Listing, error)
	FindByListingID(ctx context.Context, listingID string) (*models.Listing, error)
	FindByURL(ctx context.Context, url string) (*models.Listing, error)
	InsertListing(ctx context.Context, l *models.Listing) (int64, error)
	UpdateListing(ctx context.Context, l *models.Listing) error

	LatestSnapshot(ctx context.Context, listingID int64) (*models.Snapshot, error)
	InsertSnapshot(ctx context.Context, s models.Snapshot) error
	InsertEvents(ctx context.Context, events []models.Event) error
}

// TxRunner runs fn in a transaction, committing when fn returns nil.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// ListingReader reads canonical listings.
type ListingReader interface {
	ListingByID(ctx context.Context, id int64) (*models.Listing, error)
	Listings(ctx context.Context) ([]*models.Listing, error)
	StaleListings(ctx context.Context, minDays int) ([]*models.Listing, error)
}

// ScoreWriter caches the last computed score on a listing.
type ScoreWriter interface {
	SaveScore(ctx context.Context, listingID int64, percent float64, breakdown map[string]models.CriterionScore) error
}

// EventStore reads events and records alert bookkeeping.
type EventStore interface {
	EventsSince(ctx context.Context, since time.Time) ([]models.Event, error)
	HasEvent(ctx context.Context, listingID int64, t models.EventType) (bool, error)
	InsertEvent(ctx context.Context, e models.Event) (models.Event, error)
	MarkAlerted(ctx context.Context, eventID int64, flags models.AlertFlags) error
}

// FeedbackStore records user reactions and enumerates users with feedback.
type FeedbackStore interface {
	RecordFeedback(ctx context.Context, fb models.Feedback) error
	UserIDs(ctx context.Context) ([]int64, error)
}

// Store is the full listing-side persistence surface.
type Store interface {
	TxRunner
	ListingReader
	ScoreWriter
	EventStore
	Close() error
}
