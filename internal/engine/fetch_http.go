package engine

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// newFetchClient creates an HTTP client with proper settings for page scraping.
func newFetchClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: 15 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		},
	}
}

// fetchWithRetry performs an HTTP GET with retry logic using exponential backoff.
// Extra headers override the browser-like defaults.
func fetchWithRetry(ctx context.Context, fetchURL string, headers map[string]string) (*http.Response, error) {
	client := newFetchClient()

	operation := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		req.Header.Set("User-Agent", RandomUserAgent())
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Accept-Encoding", "gzip")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, WrapError(CodeNetworkError, "fetch "+fetchURL, err)
		}

		if IsRetryableStatus(resp.StatusCode) {
			resp.Body.Close()
			return nil, Rejected(fmt.Sprintf("fetch %s", fetchURL), resp.StatusCode)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, backoff.Permanent(Rejected(fmt.Sprintf("fetch %s", fetchURL), resp.StatusCode))
		}

		return resp, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 10 * time.Second

	return backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(3), backoff.WithMaxElapsedTime(30*time.Second))
}

// readResponseBody reads the response body, handling gzip decompression if needed.
func readResponseBody(resp *http.Response) ([]byte, error) {
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		return io.ReadAll(gz)
	}
	return io.ReadAll(resp.Body)
}

// FetchBody GETs fetchURL with retries and returns the decoded body.
func FetchBody(ctx context.Context, fetchURL string, headers map[string]string) ([]byte, error) {
	if cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.FetchTimeout)
		defer cancel()
	}

	resp, err := fetchWithRetry(ctx, fetchURL, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return readResponseBody(resp)
}
