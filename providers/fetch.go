package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"homescout/utils"
)

const (
	httpTimeout  = 30 * time.Second
	maxBodyBytes = 8 << 20
	userAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// fetcher does retried GETs that treat any non-2xx status as an error.
type fetcher struct {
	client  *http.Client
	retry   *utils.RetryConfig
	headers map[string]string
}

func newFetcher(maxRetries int, logger *utils.Logger, headers map[string]string) *fetcher {
	return &fetcher{
		client: &http.Client{Timeout: httpTimeout},
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   time.Second,
			Logger:      logger,
		},
		headers: headers,
	}
}

func (f *fetcher) get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := f.retry.Do(ctx, "GET "+url, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", userAgent)
		for k, v := range f.headers {
			req.Header.Set(k, v)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("http GET: %w", err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("GET %s returned %d", url, resp.StatusCode)
		}
		body = b
		return nil
	})
	return body, err
}
