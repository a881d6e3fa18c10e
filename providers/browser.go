package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"homescout/config"
	"homescout/models"
	"homescout/services"
	"homescout/utils"
)

const (
	browserPageTimeout   = 90 * time.Second
	browserDetailTimeout = 60 * time.Second
)

// BrowserProvider drives headless Chrome for sources that render their
// search results with JavaScript. The browser starts on first use.
type BrowserProvider struct {
	searchURL string
	chromeBin string
	logger    *utils.Logger
	retry     *utils.RetryConfig

	once          sync.Once
	startErr      error
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

type cardData struct {
	URL     string `json:"url"`
	Address string `json:"address"`
	Price   string `json:"price"`
	Beds    string `json:"beds"`
	Baths   string `json:"baths"`
	Sqft    string `json:"sqft"`
	Photo   string `json:"photo"`
}

func NewBrowserProvider(cfg *config.Config, logger *utils.Logger) (*BrowserProvider, error) {
	if cfg.BrowserURL == "" {
		return nil, errors.New("BROWSER_SEARCH_URL is not set")
	}
	return &BrowserProvider{
		searchURL: cfg.BrowserURL,
		chromeBin: cfg.ChromeBin,
		logger:    logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}, nil
}

func (b *BrowserProvider) start() error {
	b.once.Do(func() {
		chromeBin := b.chromeBin
		if chromeBin == "" {
			chromeBin = findChromeBinary()
		}
		b.logger.Info("[browser] Using browser binary: %s", chromeBin)

		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.UserAgent(userAgent),
		)
		if chromeBin != "" {
			opts = append(opts, chromedp.ExecPath(chromeBin))
		}

		allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
		// Suppress chromedp log noise
		browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
		if err := chromedp.Run(browserCtx); err != nil {
			cancelBrowser()
			cancelAlloc()
			b.startErr = fmt.Errorf("start browser: %w", err)
			return
		}
		b.browserCtx, b.cancelBrowser, b.cancelAlloc = browserCtx, cancelBrowser, cancelAlloc
	})
	return b.startErr
}

// tab opens a new tab bounded by both ctx and timeout.
func (b *BrowserProvider) tab(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	stop := context.AfterFunc(ctx, cancelTimeout)
	return tabCtx, func() {
		stop()
		cancelTimeout()
		cancelTab()
	}
}

func (b *BrowserProvider) Search(ctx context.Context, page int) ([]*models.RawListing, bool, error) {
	if err := b.start(); err != nil {
		return nil, false, err
	}
	pageURL, err := withPage(b.searchURL, page)
	if err != nil {
		return nil, false, err
	}

	var cards []cardData
	var hasNext bool
	err = b.retry.Do(ctx, fmt.Sprintf("browser-page-%d", page), func(ctx context.Context) error {
		tabCtx, cancel := b.tab(ctx, browserPageTimeout)
		defer cancel()

		return chromedp.Run(tabCtx,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(4*time.Second),

			// Scroll to load lazy cards
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
			chromedp.Sleep(time.Second),
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(time.Second),

			chromedp.Evaluate(cardScript, &cards),
			chromedp.Evaluate(nextPageScript, &hasNext),
		)
	})
	if err != nil {
		return nil, false, fmt.Errorf("chromedp page scrape: %w", err)
	}

	out := make([]*models.RawListing, 0, len(cards))
	for _, c := range cards {
		if c.URL == "" {
			continue
		}
		out = append(out, c.raw())
	}
	b.logger.Debug("[browser] Page %d: found %d cards", page, len(out))
	return out, hasNext && len(out) > 0, nil
}

// GetDetails renders the detail page and parses its final HTML.
func (b *BrowserProvider) GetDetails(ctx context.Context, id string) (*models.RawListing, error) {
	if err := b.start(); err != nil {
		return nil, err
	}

	var html string
	err := b.retry.Do(ctx, "browser-detail", func(ctx context.Context) error {
		tabCtx, cancel := b.tab(ctx, browserDetailTimeout)
		defer cancel()

		return chromedp.Run(tabCtx,
			chromedp.Navigate(id),
			chromedp.Sleep(3*time.Second),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("chromedp detail extract: %w", err)
	}

	out, err := ParseListingHTML([]byte(html))
	if err != nil {
		return nil, err
	}
	out.SourceListingID = &id
	if out.URL == nil {
		out.URL = &id
	}
	return out, nil
}

func (b *BrowserProvider) Close() error {
	if b.cancelBrowser != nil {
		b.cancelBrowser()
		b.cancelAlloc()
	}
	return nil
}

func (c cardData) raw() *models.RawListing {
	u := c.URL
	out := &models.RawListing{
		URL:             &u,
		SourceListingID: &u,
		Price:           services.ParsePrice(c.Price),
		Beds:            services.ParseNumber(c.Beds),
		Baths:           services.ParseNumber(c.Baths),
		Sqft:            services.ParseNumber(c.Sqft),
	}
	if c.Address != "" {
		addr := c.Address
		out.Address = &addr
	}
	if c.Photo != "" {
		out.Photos = []string{c.Photo}
	}
	return out
}

const cardScript = `
(function() {
	var results = [];
	var seen = {};
	var cards = document.querySelectorAll('[data-testid="property-card"], article, li[class*="card"]');
	for (var i = 0; i < cards.length; i++) {
		var card = cards[i];
		var link = card.querySelector('a[href]');
		if (!link || !link.href || seen[link.href]) continue;
		seen[link.href] = true;

		var text = card.innerText || '';
		var lines = text.split('\n').map(function(l){return l.trim();}).filter(Boolean);
		var find = function(re) { return lines.find(function(l){return re.test(l);}) || ''; };
		var addr = card.querySelector('address, [data-testid="property-address"]');
		var img = card.querySelector('img[src]');

		results.push({
			url:     link.href,
			address: addr ? addr.innerText.trim() : '',
			price:   find(/\$\s*[\d,.]+/),
			beds:    find(/\d+\s*(bd|bed|beds)\b/i),
			baths:   find(/\d+(\.\d+)?\s*(ba|bath|baths)\b/i),
			sqft:    find(/[\d,]+\s*(sq\s*ft|sqft)/i),
			photo:   img ? img.src : ''
		});
	}
	return results;
})()
`

const nextPageScript = `
(function() {
	var next = document.querySelector('a[rel="next"], a[aria-label="Next"], a[aria-label="next"], [data-testid="pagination-next-button"]');
	return !!(next && (next.href || !next.disabled));
})()
`

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
