package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"homescout/config"
	"homescout/models"
	"homescout/utils"
)

// GatewayProvider reads the JSON scraping gateway:
//
//	GET {base}/search?page=N[&price_max=P]  -> {"listings": [...], "has_more": bool}
//	GET {base}/listings/{id}                -> {...}
type GatewayProvider struct {
	baseURL  string
	priceMax float64
	fetch    *fetcher
	logger   *utils.Logger
}

type gatewayPage struct {
	Listings []gatewayListing `json:"listings"`
	HasMore  bool             `json:"has_more"`
}

type gatewayListing struct {
	ID            string   `json:"id"`
	URL           *string  `json:"url"`
	Address       *string  `json:"address"`
	Price         *float64 `json:"price"`
	Beds          *float64 `json:"beds"`
	Baths         *float64 `json:"baths"`
	Sqft          *float64 `json:"sqft"`
	Lat           *float64 `json:"lat"`
	Lon           *float64 `json:"lon"`
	Description   *string  `json:"description"`
	Photos        []string `json:"photos"`
	YearBuilt     *int     `json:"year_built"`
	Status        *string  `json:"listing_status"`
	Neighborhood  *string  `json:"neighborhood"`
	DaysOnMarket  *int     `json:"days_on_market"`
	PropertyType  *string  `json:"property_type"`
	HOAFee        *float64 `json:"hoa_fee"`
	ParkingSpaces *int     `json:"parking_spaces"`
	Amenities     []string `json:"amenities"`
}

func NewGatewayProvider(cfg *config.Config, logger *utils.Logger) (*GatewayProvider, error) {
	if cfg.GatewayURL == "" {
		return nil, errors.New("GATEWAY_URL is not set")
	}
	headers := map[string]string{"Accept": "application/json"}
	if cfg.GatewayAPIKey != "" {
		headers["X-API-Key"] = cfg.GatewayAPIKey
	}
	return &GatewayProvider{
		baseURL:  strings.TrimRight(cfg.GatewayURL, "/"),
		priceMax: cfg.SearchPriceMax,
		fetch:    newFetcher(cfg.MaxRetries, logger, headers),
		logger:   logger,
	}, nil
}

func (g *GatewayProvider) Search(ctx context.Context, page int) ([]*models.RawListing, bool, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	if g.priceMax > 0 {
		params.Set("price_max", strconv.FormatFloat(g.priceMax, 'f', 0, 64))
	}

	body, err := g.fetch.get(ctx, g.baseURL+"/search?"+params.Encode())
	if err != nil {
		return nil, false, err
	}
	var resp gatewayPage
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, false, fmt.Errorf("gateway: decode search page: %w", err)
	}

	out := make([]*models.RawListing, 0, len(resp.Listings))
	for _, l := range resp.Listings {
		out = append(out, l.raw())
	}
	return out, resp.HasMore, nil
}

func (g *GatewayProvider) GetDetails(ctx context.Context, id string) (*models.RawListing, error) {
	body, err := g.fetch.get(ctx, g.baseURL+"/listings/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	var l gatewayListing
	if err := json.Unmarshal(body, &l); err != nil {
		return nil, fmt.Errorf("gateway: decode listing %s: %w", id, err)
	}
	if l.ID == "" {
		l.ID = id
	}
	return l.raw(), nil
}

func (g *GatewayProvider) Close() error {
	g.fetch.client.CloseIdleConnections()
	return nil
}

// raw maps the wire record; amenity names that match a listing flag become
// explicit flags.
func (l gatewayListing) raw() *models.RawListing {
	out := &models.RawListing{
		URL:           l.URL,
		Address:       l.Address,
		Price:         l.Price,
		Beds:          l.Beds,
		Baths:         l.Baths,
		Sqft:          l.Sqft,
		Lat:           l.Lat,
		Lon:           l.Lon,
		Description:   l.Description,
		Photos:        l.Photos,
		YearBuilt:     l.YearBuilt,
		ListingStatus: l.Status,
		Neighborhood:  l.Neighborhood,
		DaysOnMarket:  l.DaysOnMarket,
		PropertyType:  l.PropertyType,
		HOAFee:        l.HOAFee,
		ParkingSpaces: l.ParkingSpaces,
	}
	if l.ID != "" {
		id := l.ID
		out.SourceListingID = &id
	}
	for _, a := range l.Amenities {
		out.ExplicitFlags.Set(strings.ToLower(strings.TrimSpace(a)), true)
	}
	if l.ParkingSpaces != nil && *l.ParkingSpaces > 0 {
		out.ExplicitFlags.Parking = true
	}
	return out
}
