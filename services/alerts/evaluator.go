// Package alerts turns recent listing events and match scores into
// deduplicated immediate and digest notifications.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"homescout/config"
	"homescout/models"
	"homescout/notify"
	"homescout/services/scoring"
	"homescout/storage"
	"homescout/utils"
)

// Reasons attached to alerts.
const (
	ReasonNewListing   = "New listing"
	ReasonBackOnMarket = "Back on market"
)

// defaultLookback applies when Evaluate is called with a zero watermark.
const defaultLookback = 24 * time.Hour

// Store is the persistence the evaluator reads events and listings from.
type Store interface {
	storage.ListingReader
	storage.EventStore
}

// MultiplierSource supplies learned per-criterion multipliers for a user.
type MultiplierSource interface {
	Multipliers(ctx context.Context, userID int64) (map[string]float64, error)
}

// Result counts what one evaluation sent.
type Result struct {
	Immediate   int
	Digest      int
	StaleEvents int
}

// Evaluator decides alert eligibility for events since a watermark.
type Evaluator struct {
	store     Store
	transport notify.Transport
	criteria  *config.CriteriaStore
	logger    *utils.Logger
	now       func() time.Time

	mode    string
	weights MultiplierSource
	userID  int64
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMode selects buy or rent gating.
func WithMode(mode string) Option {
	return func(e *Evaluator) { e.mode = mode }
}

// WithLearnedWeights scores with userID's learned multipliers.
func WithLearnedWeights(src MultiplierSource, userID int64) Option {
	return func(e *Evaluator) {
		e.weights = src
		e.userID = userID
	}
}

func NewEvaluator(store Store, transport notify.Transport, criteria *config.CriteriaStore, logger *utils.Logger, opts ...Option) *Evaluator {
	e := &Evaluator{
		store:     store,
		transport: transport,
		criteria:  criteria,
		logger:    logger,
		now:       time.Now,
		mode:      scoring.ModeBuy,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// pending is an alert waiting for a successful send before its event is
// flagged.
type pending struct {
	alert  models.Alert
	events []int64
	stale  *models.Listing
}

type batch struct {
	kind   models.AlertKind
	flag   models.AlertFlags
	items  []*pending
	byItem map[int64]*pending
}

func newBatch(kind models.AlertKind) *batch {
	b := &batch{kind: kind, byItem: make(map[int64]*pending)}
	if kind == models.AlertImmediate {
		b.flag.AlertedImmediate = true
	} else {
		b.flag.AlertedDigest = true
	}
	return b
}

// add queues an alert, folding repeat events for one listing into the first
// alert of the batch.
func (b *batch) add(a models.Alert, eventID int64) {
	if p, ok := b.byItem[a.ListingID]; ok {
		if eventID > 0 {
			p.events = append(p.events, eventID)
		}
		return
	}
	p := &pending{alert: a}
	if eventID > 0 {
		p.events = append(p.events, eventID)
	}
	b.byItem[a.ListingID] = p
	b.items = append(b.items, p)
}

func (b *batch) alerts() []models.Alert {
	out := make([]models.Alert, 0, len(b.items))
	for _, p := range b.items {
		out = append(out, p.alert)
	}
	return out
}

// Evaluate scores listings touched by events created at or after since and
// sends the eligible alerts. A zero since looks back 24 hours. Event flags
// are set only after their batch was delivered.
func (e *Evaluator) Evaluate(ctx context.Context, since time.Time) (Result, error) {
	now := e.now().UTC()
	if since.IsZero() {
		since = now.Add(-defaultLookback)
	}

	crit := e.criteria.Current()
	engine := e.engine(ctx, crit)
	thresholds := crit.Alerts

	events, err := e.store.EventsSince(ctx, since)
	if err != nil {
		return Result{}, fmt.Errorf("alerts: load events: %w", err)
	}

	immediate := newBatch(models.AlertImmediate)
	digest := newBatch(models.AlertDigest)
	listings := make(map[int64]*models.Listing)

	for _, ev := range events {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		switch ev.Type {
		case models.EventNewListing, models.EventPriceDrop, models.EventBackOnMarket:
		default:
			continue
		}

		l, err := e.listing(ctx, listings, ev.ListingID)
		if err != nil {
			e.logger.Warn("[alerts] Skipping event %d: %v", ev.ID, err)
			continue
		}

		switch ev.Type {
		case models.EventNewListing:
			if ev.Alerts.AlertedImmediate {
				continue
			}
			ok, res := engine.ScoreListing(l, thresholds.NewListing.ScoreThreshold)
			if !ok {
				continue
			}
			immediate.add(e.payload(l, res, ev, ReasonNewListing, thresholds.DOMStale.Days), ev.ID)

		case models.EventPriceDrop:
			if ev.Details.Percent == nil {
				continue
			}
			pct := *ev.Details.Percent
			ok, res := engine.ScoreListing(l, 0)
			if !ok {
				continue
			}
			reason := fmt.Sprintf("Price drop %.0f%%", pct)
			switch {
			case pct >= thresholds.PriceDrop.PercentThreshold:
				if !ev.Alerts.AlertedImmediate {
					immediate.add(e.payload(l, res, ev, reason, thresholds.DOMStale.Days), ev.ID)
				}
			case pct >= thresholds.PriceDrop.DigestThreshold:
				if !ev.Alerts.AlertedDigest {
					digest.add(e.payload(l, res, ev, reason, thresholds.DOMStale.Days), ev.ID)
				}
			}

		case models.EventBackOnMarket:
			if ev.Alerts.AlertedImmediate {
				continue
			}
			ok, res := engine.ScoreListing(l, 0)
			if !ok {
				continue
			}
			immediate.add(e.payload(l, res, ev, ReasonBackOnMarket, thresholds.DOMStale.Days), ev.ID)
		}
	}

	if days := thresholds.DOMStale.Days; days > 0 {
		if err := e.sweepStale(ctx, engine, days, digest); err != nil {
			return Result{}, err
		}
	}

	var result Result
	var errs []error
	if n, stale, err := e.send(ctx, immediate, now); err != nil {
		errs = append(errs, err)
	} else {
		result.Immediate = n
		result.StaleEvents += stale
	}
	if n, stale, err := e.send(ctx, digest, now); err != nil {
		errs = append(errs, err)
	} else {
		result.Digest = n
		result.StaleEvents += stale
	}

	e.logger.Info("[alerts] Evaluated %d events since %s: %d immediate, %d digest",
		len(events), since.Format(time.RFC3339), result.Immediate, result.Digest)
	return result, errors.Join(errs...)
}

// sweepStale queues a digest alert for each listing past the staleness
// threshold that never had a dom_stale event and still passes the gates.
func (e *Evaluator) sweepStale(ctx context.Context, engine *scoring.Engine, days int, digest *batch) error {
	stale, err := e.store.StaleListings(ctx, days)
	if err != nil {
		return fmt.Errorf("alerts: load stale listings: %w", err)
	}
	for _, l := range stale {
		seen, err := e.store.HasEvent(ctx, l.ID, models.EventDOMStale)
		if err != nil {
			e.logger.Warn("[alerts] dom_stale lookup for listing %d: %v", l.ID, err)
			continue
		}
		if seen {
			continue
		}
		ok, res := engine.ScoreListing(l, 0)
		if !ok {
			continue
		}
		dom := 0
		if l.DaysOnMarket != nil {
			dom = *l.DaysOnMarket
		}
		if _, queued := digest.byItem[l.ID]; queued {
			continue
		}
		digest.add(e.payload(l, res, models.Event{Type: models.EventDOMStale}, fmt.Sprintf("DOM %d", dom), days), 0)
		digest.byItem[l.ID].stale = l
	}
	return nil
}

// send delivers b and records its bookkeeping. It returns the number of
// alerts sent and dom_stale events written.
func (e *Evaluator) send(ctx context.Context, b *batch, now time.Time) (int, int, error) {
	if len(b.items) == 0 {
		return 0, 0, nil
	}
	out := models.AlertBatch{
		ID:        uuid.NewString(),
		Kind:      b.kind,
		CreatedAt: now,
		Alerts:    b.alerts(),
	}
	if err := e.transport.Send(ctx, out); err != nil {
		e.logger.Error("[alerts] Failed to send %s batch %s: %v", b.kind, out.ID, err)
		return 0, 0, fmt.Errorf("alerts: send %s batch: %w", b.kind, err)
	}

	stale := 0
	for _, p := range b.items {
		for _, id := range p.events {
			if err := e.store.MarkAlerted(ctx, id, b.flag); err != nil {
				e.logger.Error("[alerts] Failed to flag event %d: %v", id, err)
			}
		}
		if p.stale == nil {
			continue
		}
		ev := models.Event{
			ListingID: p.stale.ID,
			Type:      models.EventDOMStale,
			Details:   models.EventDetails{DaysOnMarket: p.stale.DaysOnMarket},
			Alerts:    b.flag,
			CreatedAt: now,
		}
		if _, err := e.store.InsertEvent(ctx, ev); err != nil {
			e.logger.Error("[alerts] Failed to record dom_stale for listing %d: %v", p.stale.ID, err)
			continue
		}
		stale++
	}
	e.logger.Info("[alerts] Sent %s batch %s with %d alerts", b.kind, out.ID, len(out.Alerts))
	return len(out.Alerts), stale, nil
}

func (e *Evaluator) engine(ctx context.Context, crit *config.Criteria) *scoring.Engine {
	opts := []scoring.Option{scoring.WithMode(e.mode)}
	if e.weights != nil && e.userID != 0 {
		m, err := e.weights.Multipliers(ctx, e.userID)
		if err != nil {
			e.logger.Warn("[alerts] Using base weights, learned weights for user %d unavailable: %v", e.userID, err)
		} else {
			opts = append(opts, scoring.WithMultipliers(m))
		}
	}
	return scoring.NewEngine(crit, opts...)
}

func (e *Evaluator) listing(ctx context.Context, cache map[int64]*models.Listing, id int64) (*models.Listing, error) {
	if l, ok := cache[id]; ok {
		return l, nil
	}
	l, err := e.store.ListingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cache[id] = l
	return l, nil
}

func (e *Evaluator) payload(l *models.Listing, res models.ScoreResult, ev models.Event, reason string, staleDays int) models.Alert {
	return models.Alert{
		ListingID:    l.ID,
		EventID:      ev.ID,
		EventType:    ev.Type,
		Address:      l.Address,
		Price:        l.Price,
		URL:          l.URL,
		ScorePercent: fmt.Sprintf("%.1f", res.Percent),
		ScorePoints:  res.Points,
		Tier:         res.Tier,
		TopPositives: res.TopPositives,
		Tradeoff:     res.Tradeoff,
		WhyNow:       WhyNow(l, staleDays),
		Reason:       reason,
	}
}

// WhyNow names the most urgent reason to look at a listing today.
func WhyNow(l *models.Listing, staleDays int) string {
	if l.PriceReductionAmount != nil && *l.PriceReductionAmount > 0 && l.Price != nil {
		before := *l.Price + *l.PriceReductionAmount
		if before > 0 {
			return fmt.Sprintf("Price drop %.0f%%", *l.PriceReductionAmount*100/before)
		}
	}
	if l.Flags.BackOnMarket {
		return ReasonBackOnMarket
	}
	if staleDays > 0 && l.DaysOnMarket != nil && *l.DaysOnMarket >= staleDays {
		return fmt.Sprintf("DOM %d", *l.DaysOnMarket)
	}
	return ReasonNewListing
}
