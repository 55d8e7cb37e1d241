package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/anatolykoptev/go_nlm/internal/engine"
)

// PageFetcher loads one comment page for a continuation token.
type PageFetcher interface {
	FetchPage(ctx context.Context, token string) (map[string]any, error)
}

const innerTubeMaxBody = 8 * 1024 * 1024

// InnerTube posts continuation tokens to the web client's "next" endpoint
// using the API key and client context scraped from the watch page.
type InnerTube struct {
	baseURL string
	apiKey  string
	context map[string]any
	http    *http.Client
	retry   engine.RetryConfig
}

// InnerTubeOption customizes an InnerTube fetcher.
type InnerTubeOption func(*InnerTube)

// WithInnerTubeClient replaces the HTTP client.
func WithInnerTubeClient(c *http.Client) InnerTubeOption {
	return func(it *InnerTube) { it.http = c }
}

// WithInnerTubeRetry replaces the page retry policy.
func WithInnerTubeRetry(rc engine.RetryConfig) InnerTubeOption {
	return func(it *InnerTube) { it.retry = rc }
}

// NewInnerTube builds a fetcher from an extracted page config.
func NewInnerTube(baseURL string, pc PageConfig, opts ...InnerTubeOption) *InnerTube {
	it := &InnerTube{
		baseURL: baseURL,
		apiKey:  pc.APIKey,
		context: pc.Context,
		http:    engine.Cfg.HTTPClient,
		retry:   engine.PageRetryConfig,
	}
	for _, o := range opts {
		o(it)
	}
	return it
}

// FetchPage POSTs {context, continuation} and decodes the JSON reply.
// Three attempts are made for 429/500/503 and transport failures; every
// other failure is reported as NETWORK_ERROR.
func (it *InnerTube) FetchPage(ctx context.Context, token string) (map[string]any, error) {
	body, err := json.Marshal(map[string]any{"context": it.context, "continuation": token})
	if err != nil {
		return nil, err
	}
	endpoint := it.baseURL + "/youtubei/v1/next?key=" + url.QueryEscape(it.apiKey)

	data, err := engine.RetryDo(ctx, it.retry, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", engine.UserAgentChrome)
		req.Header.Set("X-Youtube-Client-Name", "1")
		req.Header.Set("Origin", it.baseURL)
		req.Header.Set("Referer", it.baseURL+"/")

		resp, err := it.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, engine.WrapError(engine.CodeNetworkError, "innertube transport", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, engine.Rejected("innertube next", resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, innerTubeMaxBody))
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if st := engine.StatusOf(err); st != 0 {
			return nil, &engine.Error{
				Code:   engine.CodeNetworkError,
				Status: st,
				Msg:    "InnerTube API error",
			}
		}
		if engine.CodeOf(err) == engine.CodeNetworkError {
			return nil, err
		}
		return nil, engine.WrapError(engine.CodeNetworkError, "innertube request", err)
	}

	var page map[string]any
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, engine.WrapError(engine.CodeNetworkError, "innertube decode", err)
	}
	return page, nil
}
