package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"homescout/models"
	"homescout/services/changes"
	"homescout/utils"
)

// UpsertStats summarises one Upsert call.
type UpsertStats struct {
	Inserted int
	Updated  int
	Skipped  int
	Failed   int
	Events   int
}

// Upserted is the number of records written.
func (s UpsertStats) Upserted() int { return s.Inserted + s.Updated }

// Persister resolves record identity, merges fields and runs change
// detection, one transaction per record.
type Persister struct {
	runner TxRunner
	logger *utils.Logger
	now    func() time.Time
}

func NewPersister(runner TxRunner, logger *utils.Logger) *Persister {
	return &Persister{runner: runner, logger: logger, now: time.Now}
}

// Upsert writes records independently: a failing record is logged and
// counted without affecting the rest of the batch. Records with no address
// are skipped.
func (p *Persister) Upsert(ctx context.Context, records []*models.RawListing) UpsertStats {
	var stats UpsertStats
	for _, r := range records {
		if r == nil || strings.TrimSpace(models.Str(r.Address)) == "" {
			stats.Skipped++
			continue
		}
		if ctx.Err() != nil {
			stats.Failed++
			continue
		}

		var inserted bool
		var events int
		err := p.runner.WithTx(ctx, func(ctx context.Context, tx Tx) error {
			var err error
			inserted, events, err = p.upsertOne(ctx, tx, r)
			return err
		})
		if err != nil {
			stats.Failed++
			p.logger.Warn("[storage] upsert %s failed: %v", describe(r), err)
			continue
		}
		if inserted {
			stats.Inserted++
		} else {
			stats.Updated++
		}
		stats.Events += events
	}
	p.logger.Info("[storage] upserted %d listings (%d new, %d updated, %d skipped, %d failed, %d events)",
		stats.Upserted(), stats.Inserted, stats.Updated, stats.Skipped, stats.Failed, stats.Events)
	return stats
}

func (p *Persister) upsertOne(ctx context.Context, tx Tx, r *models.RawListing) (bool, int, error) {
	source := strings.ToLower(strings.TrimSpace(models.Str(r.Source)))
	sourceID := strings.TrimSpace(models.Str(r.SourceListingID))
	listingID := strings.TrimSpace(models.Str(r.ListingID))
	url := strings.TrimSpace(models.Str(r.URL))
	if sourceID == "" && listingID == "" && url == "" {
		return false, 0, errors.New("record has no identifier")
	}

	if err := tx.LockListingKey(ctx, identityKey(source, sourceID, listingID, url)); err != nil {
		return false, 0, fmt.Errorf("lock: %w", err)
	}

	existing, err := resolve(ctx, tx, source, sourceID, listingID, url)
	if err != nil {
		return false, 0, err
	}

	now := p.now().UTC()
	if existing == nil {
		l := &models.Listing{Status: "active", CreatedAt: now}
		apply(l, r, source, now)
		id, err := tx.InsertListing(ctx, l)
		if err != nil {
			return false, 0, fmt.Errorf("insert listing: %w", err)
		}
		l.ID = id
		n, err := p.detect(ctx, tx, l, nil, now)
		return true, n, err
	}

	prev, err := tx.LatestSnapshot(ctx, existing.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, 0, fmt.Errorf("latest snapshot: %w", err)
	}
	apply(existing, r, source, now)
	n, err := p.detect(ctx, tx, existing, prev, now)
	if err != nil {
		return false, 0, err
	}
	if err := tx.UpdateListing(ctx, existing); err != nil {
		return false, 0, fmt.Errorf("update listing: %w", err)
	}
	return false, n, nil
}

// detect stores a snapshot and events when l's state changed, and reflects
// price and status events onto the listing flags.
func (p *Persister) detect(ctx context.Context, tx Tx, l *models.Listing, prev *models.Snapshot, now time.Time) (int, error) {
	data := changes.StateOf(l)
	l.PhotosHash = data.PhotosHash

	res := changes.Detect(l.ID, prev, data, now)
	if !res.Changed() {
		return 0, nil
	}
	for _, e := range res.Events {
		switch e.Type {
		case models.EventPriceDrop:
			l.Flags.PriceReduced = true
			l.PriceReductionAmount = e.Details.Amount
			l.PriceReductionDate = &now
		case models.EventBackOnMarket:
			l.Flags.BackOnMarket = true
		}
	}
	if err := tx.InsertSnapshot(ctx, *res.Snapshot); err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	if len(res.Events) > 0 {
		if err := tx.InsertEvents(ctx, res.Events); err != nil {
			return 0, fmt.Errorf("insert events: %w", err)
		}
	}
	if prev == nil {
		// New listings are updated after the first snapshot so the photo hash
		// and flags are persisted with them.
		if err := tx.UpdateListing(ctx, l); err != nil {
			return 0, fmt.Errorf("update listing: %w", err)
		}
	}
	return len(res.Events), nil
}

// resolve looks a record up by (source, source_listing_id), then legacy
// listing_id, then url.
func resolve(ctx context.Context, tx Tx, source, sourceID, listingID, url string) (*models.Listing, error) {
	type lookup struct {
		ok bool
		fn func() (*models.Listing, error)
	}
	lookups := []lookup{
		{source != "" && sourceID != "", func() (*models.Listing, error) { return tx.FindBySourceID(ctx, source, sourceID) }},
		{listingID != "", func() (*models.Listing, error) { return tx.FindByListingID(ctx, listingID) }},
		{url != "", func() (*models.Listing, error) { return tx.FindByURL(ctx, url) }},
	}
	for _, lk := range lookups {
		if !lk.ok {
			continue
		}
		l, err := lk.fn()
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("resolve listing: %w", err)
		}
	}
	return nil, nil
}

// apply merges r over l. Fields r does not report are left untouched and
// photos are never blanked.
func apply(l *models.Listing, r *models.RawListing, source string, now time.Time) {
	setString(&l.Address, r.Address)
	setString(&l.URL, r.URL)
	setString(&l.PropertyType, r.PropertyType)
	setString(&l.ListingStatus, r.ListingStatus)
	setString(&l.Description, r.Description)
	setString(&l.Neighborhood, r.Neighborhood)
	setString(&l.ListingID, r.ListingID)

	l.Price = pickFloat(r.Price, l.Price)
	l.Beds = pickFloat(r.Beds, l.Beds)
	l.Baths = pickFloat(r.Baths, l.Baths)
	l.Sqft = pickFloat(r.Sqft, l.Sqft)
	l.Lat = pickFloat(r.Lat, l.Lat)
	l.Lon = pickFloat(r.Lon, l.Lon)
	l.HOAFee = pickFloat(r.HOAFee, l.HOAFee)
	l.YearBuilt = pickInt(r.YearBuilt, l.YearBuilt)
	l.DaysOnMarket = pickInt(r.DaysOnMarket, l.DaysOnMarket)
	l.ParkingSpaces = pickInt(r.ParkingSpaces, l.ParkingSpaces)

	if len(r.Photos) > 0 {
		l.Photos = append([]string(nil), r.Photos...)
	}

	if source != "" {
		if l.Source == "" {
			l.Source = source
		}
		if sid := strings.TrimSpace(models.Str(r.SourceListingID)); sid != "" && l.Source == source {
			l.SourceListingID = sid
		}
		if !l.HasSource(source) {
			l.SourcesSeen = append(l.SourcesSeen, source)
		}
	}

	sticky := models.Flags{PriceReduced: l.Flags.PriceReduced, BackOnMarket: l.Flags.BackOnMarket}
	if r.Flags != nil && r.Description != nil {
		l.Flags = r.Flags.Or(r.ExplicitFlags).Or(sticky)
	} else {
		l.Flags = l.Flags.Or(r.ExplicitFlags)
	}

	if t := r.Tranquility; t != nil && t.Score != nil {
		score := *t.Score
		l.TranquilityScore = &score
		l.TranquilityFactors = t.Factors
	}
	if lp := r.LightPotential; lp != nil {
		score := lp.Score
		l.LightScore = &score
		l.LightSignals = append([]string(nil), lp.Signals...)
	}

	if l.Status == "" {
		l.Status = "active"
	}
	l.LastSeenAt = now
	l.LastUpdated = now
}

func setString(dst *string, v *string) {
	if v == nil {
		return
	}
	if s := strings.TrimSpace(*v); s != "" {
		*dst = s
	}
}

func pickFloat(newer, older *float64) *float64 {
	if newer != nil {
		return newer
	}
	return older
}

func pickInt(newer, older *int) *int {
	if newer != nil {
		return newer
	}
	return older
}

func describe(r *models.RawListing) string {
	if id := r.Identifier(); id != "" {
		return id
	}
	return models.Str(r.Address)
}
