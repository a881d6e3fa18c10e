// Package changes implements snapshot-based change detection for listings.
// It performs no I/O; callers run Detect inside the same transaction as the
// listing upsert and persist the returned snapshot and events.
package changes

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"homescout/models"
)

// offMarket are the statuses from which a return to "active" is reported as
// back_on_market.
var offMarket = map[string]struct{}{
	"pending":    {},
	"contingent": {},
	"sold":       {},
}

// Result is the outcome of one detection step. Snapshot is nil when the
// state hash is unchanged.
type Result struct {
	Snapshot *models.Snapshot
	Events   []models.Event
}

// Changed reports whether a new snapshot must be stored.
func (r Result) Changed() bool { return r.Snapshot != nil }

// StateOf captures the mutable subset of l.
func StateOf(l *models.Listing) models.SnapshotData {
	var price *float64
	if l.Price != nil {
		p := math.Round(*l.Price*100) / 100
		price = &p
	}
	status := l.ListingStatus
	if status == "" {
		status = l.Status
	}
	return models.SnapshotData{
		Price:           price,
		Status:          strings.ToLower(strings.TrimSpace(status)),
		DaysOnMarket:    l.DaysOnMarket,
		PhotosHash:      PhotosHash(l.Photos),
		DescriptionHash: TextHash(l.Description),
	}
}

// PhotosHash hashes the photo set independently of order. An empty set
// hashes to "".
func PhotosHash(photos []string) string {
	if len(photos) == 0 {
		return ""
	}
	sorted := append([]string(nil), photos...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}

// TextHash hashes trimmed text. Blank text hashes to "".
func TextHash(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Hash is the content hash of a snapshot state.
func Hash(d models.SnapshotData) string {
	// Struct fields marshal in declaration order, so the encoding is stable.
	raw, _ := json.Marshal(d)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Detect compares data against the most recent snapshot prev. With no prior
// snapshot it yields exactly one new_listing event. With an unchanged hash it
// yields nothing. Otherwise it yields one event per differing dimension.
func Detect(listingID int64, prev *models.Snapshot, data models.SnapshotData, now time.Time) Result {
	hash := Hash(data)
	if prev != nil && prev.Hash == hash {
		return Result{}
	}

	snap := &models.Snapshot{
		ListingID: listingID,
		Hash:      hash,
		Data:      data,
		CreatedAt: now,
	}

	if prev == nil {
		return Result{
			Snapshot: snap,
			Events: []models.Event{{
				ListingID: listingID,
				Type:      models.EventNewListing,
				NewValue:  formatPrice(data.Price),
				CreatedAt: now,
			}},
		}
	}

	var events []models.Event
	add := func(t models.EventType, oldV, newV string, details models.EventDetails) {
		events = append(events, models.Event{
			ListingID: listingID,
			Type:      t,
			OldValue:  oldV,
			NewValue:  newV,
			Details:   details,
			CreatedAt: now,
		})
	}

	old := prev.Data
	if ev, ok := priceEvent(old.Price, data.Price); ok {
		add(ev.Type, formatPrice(old.Price), formatPrice(data.Price), ev.Details)
	}
	if old.Status != data.Status {
		add(StatusEvent(old.Status, data.Status), old.Status, data.Status, models.EventDetails{})
	}
	if old.PhotosHash != data.PhotosHash {
		add(models.EventPhotoChange, old.PhotosHash, data.PhotosHash, models.EventDetails{})
	}
	if old.DescriptionHash != data.DescriptionHash {
		add(models.EventDescriptionChange, old.DescriptionHash, data.DescriptionHash, models.EventDetails{})
	}

	return Result{Snapshot: snap, Events: events}
}

// StatusEvent classifies a status transition. Callers only invoke it for
// differing statuses.
func StatusEvent(oldStatus, newStatus string) models.EventType {
	if _, ok := offMarket[oldStatus]; ok && newStatus == "active" {
		return models.EventBackOnMarket
	}
	return models.EventStatusChange
}

func priceEvent(oldP, newP *float64) (models.Event, bool) {
	if oldP == nil || newP == nil || *oldP == *newP {
		return models.Event{}, false
	}
	amount := math.Abs(*newP - *oldP)
	details := models.EventDetails{Amount: &amount}
	if *oldP != 0 {
		// Stored unrounded; alert thresholds compare against it.
		pct := amount / *oldP * 100
		details.Percent = &pct
	}
	t := models.EventPriceIncrease
	if *newP < *oldP {
		t = models.EventPriceDrop
	}
	return models.Event{Type: t, Details: details}, true
}

func formatPrice(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}
