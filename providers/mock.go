package providers

import (
	"context"
	"sync/atomic"
	"time"

	"homescout/models"
)

// MockProvider serves fixed pages and details from memory. Error and delay
// knobs must be set before the provider is used.
type MockProvider struct {
	pages   [][]*models.RawListing
	details map[string]*models.RawListing

	SearchErr   map[int]error
	DetailErr   error
	DetailDelay time.Duration

	searchCalls atomic.Int64
	detailCalls atomic.Int64
	closed      atomic.Bool
}

func NewMockProvider(pages [][]*models.RawListing, details map[string]*models.RawListing) *MockProvider {
	if details == nil {
		details = map[string]*models.RawListing{}
	}
	return &MockProvider{pages: pages, details: details}
}

func (m *MockProvider) Search(ctx context.Context, page int) ([]*models.RawListing, bool, error) {
	m.searchCalls.Add(1)
	if err := m.SearchErr[page]; err != nil {
		return nil, false, err
	}
	if page < 1 || page > len(m.pages) {
		return nil, false, nil
	}
	out := make([]*models.RawListing, 0, len(m.pages[page-1]))
	for _, r := range m.pages[page-1] {
		out = append(out, r.Merge(nil))
	}
	return out, page < len(m.pages), nil
}

func (m *MockProvider) GetDetails(ctx context.Context, id string) (*models.RawListing, error) {
	m.detailCalls.Add(1)
	if m.DetailDelay > 0 {
		select {
		case <-time.After(m.DetailDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.DetailErr != nil {
		return nil, m.DetailErr
	}
	d, ok := m.details[id]
	if !ok {
		return nil, nil
	}
	return d.Merge(nil), nil
}

func (m *MockProvider) Close() error {
	m.closed.Store(true)
	return nil
}

func (m *MockProvider) SearchCalls() int64 { return m.searchCalls.Load() }
func (m *MockProvider) DetailCalls() int64 { return m.detailCalls.Load() }
func (m *MockProvider) Closed() bool       { return m.closed.Load() }

// NewSampleProvider returns a two-page mock of San Francisco listings.
func NewSampleProvider() *MockProvider {
	summary := func(id, addr string, price, beds, baths, sqft, lat, lon float64, hood string) *models.RawListing {
		return &models.RawListing{
			SourceListingID: models.Ptr(id),
			URL:             models.Ptr("https://mock.homescout.dev/listings/" + id),
			Address:         models.Ptr(addr),
			Price:           models.Ptr(price),
			Beds:            models.Ptr(beds),
			Baths:           models.Ptr(baths),
			Sqft:            models.Ptr(sqft),
			Lat:             models.Ptr(lat),
			Lon:             models.Ptr(lon),
			Neighborhood:    models.Ptr(hood),
			ListingStatus:   models.Ptr("active"),
		}
	}
	detail := func(desc string, dom int, photos ...string) *models.RawListing {
		return &models.RawListing{
			Description:  models.Ptr(desc),
			DaysOnMarket: models.Ptr(dom),
			Photos:       photos,
			Neighborhood: models.Ptr("san francisco"),
		}
	}

	pages := [][]*models.RawListing{
		{
			summary("mock-101", "3951 21st St, San Francisco, CA", 2_895_000, 3, 2.5, 2100, 37.7566, -122.4309, "Dolores Heights"),
			summary("mock-102", "740 Carolina St, San Francisco, CA", 2_150_000, 2, 2, 1550, 37.7596, -122.3998, "Potrero Hill"),
			summary("mock-103", "118 Carl St, San Francisco, CA", 1_795_000, 2, 1, 1200, 37.7658, -122.4497, "Cole Valley"),
		},
		{
			summary("mock-104", "1520 Fulton St, San Francisco, CA", 3_250_000, 4, 3, 2600, 37.7769, -122.4393, "NoPa"),
			summary("mock-105", "605 Ashbury St, San Francisco, CA", 1_450_000, 1, 1, 780, 37.7712, -122.4468, "Haight-Ashbury"),
		},
	}
	details := map[string]*models.RawListing{
		"mock-101": detail("Sun-drenched top floor view home with chef's kitchen, gas range, private deck and garden. "+
			"Home office, in-unit laundry, garage parking. Move-in ready with period details.", 9,
			"https://mock.homescout.dev/p/101-1.jpg", "https://mock.homescout.dev/p/101-2.jpg"),
		"mock-102": detail("Bright condo with open floor plan, skylights and city views. Roof deck, dishwasher and deeded parking.", 21,
			"https://mock.homescout.dev/p/102-1.jpg"),
		"mock-103": detail("Charming Edwardian flat with high ceilings, original moldings and a shared garden. Quiet street.", 48),
		"mock-104": detail("Grand Victorian with formal rooms, chef's kitchen, central heating and a large private backyard. "+
			"Two-car garage and a dedicated office.", 3,
			"https://mock.homescout.dev/p/104-1.jpg", "https://mock.homescout.dev/p/104-2.jpg", "https://mock.homescout.dev/p/104-3.jpg"),
		"mock-105": detail("Cozy garden level studio on a busy street. Dark interior, needs work. No pets.", 62),
	}
	return NewMockProvider(pages, details)
}
