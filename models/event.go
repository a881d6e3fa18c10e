package models

import "time"

// EventType enumerates the kinds of listing change facts.
type EventType string

const (
	EventNewListing        EventType = "new_listing"
	EventPriceDrop         EventType = "price_drop"
	EventPriceIncrease     EventType = "price_increase"
	EventStatusChange      EventType = "status_change"
	EventBackOnMarket      EventType = "back_on_market"
	EventPhotoChange       EventType = "photo_change"
	EventDescriptionChange EventType = "description_change"
	EventDOMStale          EventType = "dom_stale"
)

// SnapshotData is the mutable subset of a listing captured for change
// detection.
type SnapshotData struct {
	Price           *float64 `json:"price"`
	Status          string   `json:"status"`
	DaysOnMarket    *int     `json:"days_on_market"`
	PhotosHash      string   `json:"photos_hash"`
	DescriptionHash string   `json:"description_hash"`
}

// Snapshot is an immutable, content-hashed capture of SnapshotData.
type Snapshot struct {
	ID        int64        `json:"id"`
	ListingID int64        `json:"listing_id"`
	Hash      string       `json:"snapshot_hash"`
	Data      SnapshotData `json:"snapshot_data"`
	CreatedAt time.Time    `json:"created_at"`
}

// EventDetails carries the typed payload of an event.
type EventDetails struct {
	Amount       *float64 `json:"amount,omitempty"`
	Percent      *float64 `json:"percent,omitempty"`
	DaysOnMarket *int     `json:"days_on_market,omitempty"`
}

// AlertFlags record which notification channels already covered an event.
type AlertFlags struct {
	AlertedImmediate bool `json:"alerted_immediate"`
	AlertedDigest    bool `json:"alerted_digest"`
}

// Union returns the flags set in either value.
func (f AlertFlags) Union(other AlertFlags) AlertFlags {
	return AlertFlags{
		AlertedImmediate: f.AlertedImmediate || other.AlertedImmediate,
		AlertedDigest:    f.AlertedDigest || other.AlertedDigest,
	}
}

// Event is a typed fact derived from diffing snapshots.
type Event struct {
	ID        int64        `json:"id"`
	ListingID int64        `json:"listing_id"`
	Type      EventType    `json:"event_type"`
	OldValue  string       `json:"old_value,omitempty"`
	NewValue  string       `json:"new_value,omitempty"`
	Details   EventDetails `json:"details"`
	Alerts    AlertFlags   `json:"alerts"`
	CreatedAt time.Time    `json:"created_at"`
}
