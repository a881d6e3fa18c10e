package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jszwec/csvutil"

	"homescout/config"
	"homescout/models"
	"homescout/services"
	"homescout/utils"
)

const curatedSource = "curated"

// CuratedProvider serves a hand-maintained CSV of listings as a single page.
// Rows with an http url get a detail fetch of that page.
type CuratedProvider struct {
	path   string
	fetch  *fetcher
	logger *utils.Logger
}

// curatedRow mirrors one CSV row. Numbers stay strings so blank cells read
// as absent.
type curatedRow struct {
	SourceListingID string `csv:"source_listing_id"`
	URL             string `csv:"url"`
	Address         string `csv:"address"`
	Price           string `csv:"price"`
	Beds            string `csv:"beds"`
	Baths           string `csv:"baths"`
	Sqft            string `csv:"sqft"`
	Lat             string `csv:"lat"`
	Lon             string `csv:"lon"`
	Neighborhood    string `csv:"neighborhood"`
	Status          string `csv:"listing_status"`
	DaysOnMarket    string `csv:"days_on_market"`
	Description     string `csv:"description"`
	Photos          string `csv:"photos"`
}

func NewCuratedProvider(cfg *config.Config, logger *utils.Logger) *CuratedProvider {
	return &CuratedProvider{
		path:   cfg.CuratedCSVPath,
		fetch:  newFetcher(cfg.MaxRetries, logger, nil),
		logger: logger,
	}
}

func (c *CuratedProvider) Search(ctx context.Context, page int) ([]*models.RawListing, bool, error) {
	if page > 1 {
		return nil, false, nil
	}
	raw, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		c.logger.Info("[curated] Sources file not found: %s", c.path)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("curated: read %s: %w", c.path, err)
	}

	rows, err := parseCuratedCSV(raw)
	if err != nil {
		return nil, false, err
	}
	out := make([]*models.RawListing, 0, len(rows))
	for i, row := range rows {
		out = append(out, row.raw(i))
	}
	c.logger.Info("[curated] Loaded %d listings", len(out))
	return out, false, nil
}

func (c *CuratedProvider) GetDetails(ctx context.Context, id string) (*models.RawListing, error) {
	if !strings.HasPrefix(id, "http") {
		return nil, nil
	}
	body, err := c.fetch.get(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := ParseListingHTML(body)
	if err != nil {
		return nil, err
	}
	out.SourceListingID = &id
	if out.URL == nil {
		out.URL = &id
	}
	return out, nil
}

func (c *CuratedProvider) Close() error {
	c.fetch.client.CloseIdleConnections()
	return nil
}

func parseCuratedCSV(raw []byte) ([]curatedRow, error) {
	var rows []curatedRow
	if err := csvutil.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("curated: decode csv: %w", err)
	}
	return rows, nil
}

// raw maps a row; the identifier falls back from id to url to address.
func (r curatedRow) raw(index int) *models.RawListing {
	id := firstNonEmpty(r.SourceListingID, r.URL, r.Address)
	if id == "" {
		id = fmt.Sprintf("%s:%d", curatedSource, index)
	}
	source := curatedSource

	out := &models.RawListing{
		Source:          &source,
		SourceListingID: &id,
		URL:             optString(r.URL),
		Address:         optString(r.Address),
		Price:           services.ParsePrice(r.Price),
		Beds:            parseFloat(r.Beds),
		Baths:           parseFloat(r.Baths),
		Sqft:            parseFloat(r.Sqft),
		Lat:             parseFloat(r.Lat),
		Lon:             parseFloat(r.Lon),
		Neighborhood:    optString(r.Neighborhood),
		ListingStatus:   optString(r.Status),
		DaysOnMarket:    services.ParseInt(r.DaysOnMarket),
		Description:     optString(r.Description),
	}
	for _, p := range strings.Split(r.Photos, "|") {
		if p = strings.TrimSpace(p); p != "" {
			out.Photos = append(out.Photos, p)
		}
	}
	return out
}

func optString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
