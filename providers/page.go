package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"homescout/config"
	"homescout/models"
	"homescout/utils"
)

// PageProvider reads server-rendered search pages: the search page lists
// detail urls as a JSON-LD ItemList and each detail page carries a JSON-LD
// property object or og: meta tags.
type PageProvider struct {
	searchURL string
	fetch     *fetcher
	seen      *utils.KeySet
	logger    *utils.Logger
}

func NewPageProvider(cfg *config.Config, logger *utils.Logger) (*PageProvider, error) {
	if cfg.PageSearchURL == "" {
		return nil, errors.New("PAGE_SEARCH_URL is not set")
	}
	return &PageProvider{
		searchURL: cfg.PageSearchURL,
		fetch:     newFetcher(cfg.MaxRetries, logger, nil),
		seen:      utils.NewKeySet(),
		logger:    logger,
	}, nil
}

func (p *PageProvider) Search(ctx context.Context, page int) ([]*models.RawListing, bool, error) {
	pageURL, err := withPage(p.searchURL, page)
	if err != nil {
		return nil, false, err
	}
	body, err := p.fetch.get(ctx, pageURL)
	if err != nil {
		return nil, false, err
	}
	doc, err := parseDocument(body)
	if err != nil {
		return nil, false, err
	}

	// Featured cards repeat on every page; keep the first sighting.
	urls := itemListURLs(doc)
	out := make([]*models.RawListing, 0, len(urls))
	for _, u := range urls {
		if !p.seen.Add(u) {
			continue
		}
		u := u
		out = append(out, &models.RawListing{URL: &u, SourceListingID: &u})
	}
	p.logger.Debug("[page] Page %d: %d new listing urls (%d seen)", page, len(out), p.seen.Size())
	return out, len(urls) > 0 && hasNextPage(doc), nil
}

// GetDetails fetches the detail page at id. Non-url ids have no detail page.
func (p *PageProvider) GetDetails(ctx context.Context, id string) (*models.RawListing, error) {
	if !strings.HasPrefix(id, "http") {
		return nil, nil
	}
	body, err := p.fetch.get(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}
	out := listingFromDocument(doc)
	out.SourceListingID = &id
	if out.URL == nil {
		out.URL = &id
	}
	return out, nil
}

func (p *PageProvider) Close() error {
	p.fetch.client.CloseIdleConnections()
	return nil
}

// withPage sets the page query parameter on raw.
func withPage(raw string, page int) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse search url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
