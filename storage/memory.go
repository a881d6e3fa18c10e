package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"homescout/models"
)

type memState struct {
	listings  map[int64]*models.Listing
	snapshots map[int64][]models.Snapshot
	events    []models.Event
	nextID    int64
	nextSnap  int64
	nextEvent int64
}

func (s memState) clone() memState {
	out := s
	out.listings = make(map[int64]*models.Listing, len(s.listings))
	for k, v := range s.listings {
		out.listings[k] = v
	}
	out.snapshots = make(map[int64][]models.Snapshot, len(s.snapshots))
	for k, v := range s.snapshots {
		out.snapshots[k] = v
	}
	out.events = s.events[:len(s.events):len(s.events)]
	return out
}

// MemoryStore keeps everything in process memory. A transaction holds the
// store mutex for its whole duration and restores the previous state on
// error. It also implements the learning and feedback stores.
type MemoryStore struct {
	mu    sync.Mutex
	state memState

	feedback map[int64]map[int64]models.Feedback
	weights  map[int64]map[string]models.LearnedWeight
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: memState{
			listings:  map[int64]*models.Listing{},
			snapshots: map[int64][]models.Snapshot{},
		},
		feedback: map[int64]map[int64]models.Feedback{},
		weights:  map[int64]map[string]models.LearnedWeight{},
	}
}

func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	backup := m.state.clone()
	if err := fn(ctx, &memTx{s: &m.state}); err != nil {
		m.state = backup
		return err
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

type memTx struct {
	s *memState
}

func (t *memTx) LockListingKey(ctx context.Context, key string) error { return nil }

func (t *memTx) find(match func(l *models.Listing) bool) (*models.Listing, error) {
	ids := make([]int64, 0, len(t.s.listings))
	for id := range t.s.listings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if l := t.s.listings[id]; match(l) {
			return cloneListing(l), nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) FindBySourceID(ctx context.Context, source, sourceListingID string) (*models.Listing, error) {
	return t.find(func(l *models.Listing) bool {
		return l.Source == source && l.SourceListingID == sourceListingID
	})
}

func (t *memTx) FindByListingID(ctx context.Context, listingID string) (*models.Listing, error) {
	return t.find(func(l *models.Listing) bool { return l.ListingID == listingID })
}

func (t *memTx) FindByURL(ctx context.Context, url string) (*models.Listing, error) {
	return t.find(func(l *models.Listing) bool { return l.URL == url })
}

func (t *memTx) InsertListing(ctx context.Context, l *models.Listing) (int64, error) {
	t.s.nextID++
	c := cloneListing(l)
	c.ID = t.s.nextID
	t.s.listings[c.ID] = c
	return c.ID, nil
}

func (t *memTx) UpdateListing(ctx context.Context, l *models.Listing) error {
	if _, ok := t.s.listings[l.ID]; !ok {
		return ErrNotFound
	}
	t.s.listings[l.ID] = cloneListing(l)
	return nil
}

func (t *memTx) LatestSnapshot(ctx context.Context, listingID int64) (*models.Snapshot, error) {
	snaps := t.s.snapshots[listingID]
	if len(snaps) == 0 {
		return nil, ErrNotFound
	}
	s := snaps[len(snaps)-1]
	return &s, nil
}

func (t *memTx) InsertSnapshot(ctx context.Context, s models.Snapshot) error {
	t.s.nextSnap++
	s.ID = t.s.nextSnap
	t.s.snapshots[s.ListingID] = append(t.s.snapshots[s.ListingID], s)
	return nil
}

func (t *memTx) InsertEvents(ctx context.Context, events []models.Event) error {
	for _, e := range events {
		t.s.nextEvent++
		e.ID = t.s.nextEvent
		t.s.events = append(t.s.events, e)
	}
	return nil
}

func (m *MemoryStore) ListingByID(ctx context.Context, id int64) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.state.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneListing(l), nil
}

func (m *MemoryStore) Listings(ctx context.Context) ([]*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Listing, 0, len(m.state.listings))
	for _, l := range m.state.listings {
		out = append(out, cloneListing(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) StaleListings(ctx context.Context, minDays int) ([]*models.Listing, error) {
	all, _ := m.Listings(ctx)
	var out []*models.Listing
	for _, l := range all {
		if l.DaysOnMarket != nil && *l.DaysOnMarket >= minDays {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *MemoryStore) SaveScore(ctx context.Context, listingID int64, percent float64, breakdown map[string]models.CriterionScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.state.listings[listingID]
	if !ok {
		return ErrNotFound
	}
	c := cloneListing(l)
	c.MatchScore = &percent
	c.FeatureScores = breakdown
	m.state.listings[listingID] = c
	return nil
}

// Snapshots returns a copy of a listing's snapshot history.
func (m *MemoryStore) Snapshots(listingID int64) []models.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Snapshot(nil), m.state.snapshots[listingID]...)
}

// Events returns a copy of every stored event.
func (m *MemoryStore) Events() []models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Event(nil), m.state.events...)
}

func (m *MemoryStore) EventsSince(ctx context.Context, since time.Time) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Event
	for _, e := range m.state.events {
		if !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) HasEvent(ctx context.Context, listingID int64, t models.EventType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.state.events {
		if e.ListingID == listingID && e.Type == t {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) InsertEvent(ctx context.Context, e models.Event) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.nextEvent++
	e.ID = m.state.nextEvent
	m.state.events = append(m.state.events, e)
	return e, nil
}

func (m *MemoryStore) MarkAlerted(ctx context.Context, eventID int64, flags models.AlertFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state.events {
		if m.state.events[i].ID == eventID {
			m.state.events[i].Alerts = m.state.events[i].Alerts.Union(flags)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) RecordFeedback(ctx context.Context, fb models.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.listings[fb.ListingID]; !ok {
		return ErrNotFound
	}
	if m.feedback[fb.UserID] == nil {
		m.feedback[fb.UserID] = map[int64]models.Feedback{}
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	m.feedback[fb.UserID][fb.ListingID] = fb
	return nil
}

func (m *MemoryStore) UserIDs(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.feedback))
	for id := range m.feedback {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemoryStore) FeedbackSignals(ctx context.Context, userID int64) ([]models.FeedbackSignal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.FeedbackSignal
	for listingID, fb := range m.feedback[userID] {
		l, ok := m.state.listings[listingID]
		if !ok {
			continue
		}
		out = append(out, models.FeedbackSignal{
			ListingID:     listingID,
			Type:          fb.Type,
			FeatureScores: l.FeatureScores,
			CreatedAt:     fb.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ListingID < out[j].ListingID })
	return out, nil
}

func (m *MemoryStore) LearnedWeights(ctx context.Context, userID int64) (map[string]models.LearnedWeight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.LearnedWeight, len(m.weights[userID]))
	for k, v := range m.weights[userID] {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) SaveLearnedWeights(ctx context.Context, userID int64, weights map[string]models.LearnedWeight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]models.LearnedWeight, len(weights))
	for k, v := range weights {
		cp[k] = v
	}
	m.weights[userID] = cp
	return nil
}

func (m *MemoryStore) ResetLearnedWeights(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.weights, userID)
	return nil
}

func cloneListing(l *models.Listing) *models.Listing {
	c := *l
	c.SourcesSeen = append([]string(nil), l.SourcesSeen...)
	c.Photos = append([]string(nil), l.Photos...)
	c.LightSignals = append([]string(nil), l.LightSignals...)
	return &c
}

// identityKey names the lock a writer takes for a record.
func identityKey(source, sourceListingID, listingID, url string) string {
	switch {
	case source != "" && sourceListingID != "":
		return "src:" + strings.ToLower(source) + ":" + sourceListingID
	case listingID != "":
		return "lid:" + listingID
	default:
		return "url:" + url
	}
}
