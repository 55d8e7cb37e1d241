// Package notebooklm speaks NotebookLM's internal batchexecute protocol.
package notebooklm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/anatolykoptev/go_nlm/internal/engine"
)

const (
	batchExecutePath = "/_/LabsTailwindUi/data/batchexecute"
	formContentType  = "application/x-www-form-urlencoded;charset=UTF-8"
	defaultTimeout   = 30 * time.Second
)

// Client is a NotebookLM batch-RPC client bound to one cookie jar.
// It is safe for concurrent use; only the selected account index is mutable.
type Client struct {
	baseURL     string
	accountsURL string
	cookies     string
	http        *http.Client
	tokens      *TokenStore
	timeout     time.Duration
	retry       engine.RetryConfig
	authUser    atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the default per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient sets the HTTP client used for all calls. The client's own
// Timeout is dropped; each call is bounded by its per-call timeout instead.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		cp := *hc
		cp.Timeout = 0
		c.http = &cp
	}
}

// WithRetryConfig overrides the backoff used for 429/500/503 responses.
func WithRetryConfig(rc engine.RetryConfig) Option {
	return func(c *Client) { c.retry = rc }
}

// WithAccountsURL overrides the Google accounts host used by ListAccounts.
func WithAccountsURL(u string) Option {
	return func(c *Client) { c.accountsURL = strings.TrimRight(u, "/") }
}

// WithAuthUser selects the initial account index.
func WithAuthUser(n int) Option {
	return func(c *Client) { c.authUser.Store(int64(n)) }
}

// New creates a client for baseURL authenticated by the raw cookie header.
func New(baseURL, cookies string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accountsURL: "https://accounts.google.com",
		cookies:     cookies,
		http:        http.DefaultClient,
		timeout:     defaultTimeout,
		retry:       engine.DefaultRetryConfig,
	}
	for _, o := range opts {
		o(c)
	}
	c.tokens = NewTokenStore(c.baseURL, c.cookies, c.http)
	c.tokens.timeout = c.timeout
	return c
}

// NewFromConfig builds a client from the engine configuration.
func NewFromConfig() *Client {
	cfg := engine.Cfg
	return New(cfg.NotebookLMURL, cfg.Cookies,
		WithHTTPClient(cfg.HTTPClient),
		WithTimeout(cfg.RPCTimeout),
		WithAccountsURL(cfg.AccountsURL),
		WithAuthUser(cfg.AuthUser),
	)
}

// SetAccount switches the account index used by subsequent calls.
func (c *Client) SetAccount(index int) {
	c.authUser.Store(int64(index))
}

// AuthUser returns the currently selected account index.
func (c *Client) AuthUser() int {
	return int(c.authUser.Load())
}

// NotebookURL returns the browser URL of a notebook for the current account.
func (c *Client) NotebookURL(notebookID string) string {
	return fmt.Sprintf("%s/notebook/%s?authuser=%d", c.baseURL, notebookID, c.AuthUser())
}

// CallOption tunes a single Invoke.
type CallOption func(*callOptions)

type callOptions struct {
	timeout time.Duration
}

// CallTimeout overrides the client timeout for one call.
func CallTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// Invoke sends one RPC and returns the raw response text.
// A rejected session is refreshed once before the call fails UNAUTHENTICATED.
func (c *Client) Invoke(ctx context.Context, rpcID string, args any, sourcePath string, opts ...CallOption) (string, error) {
	co := callOptions{timeout: c.timeout}
	for _, o := range opts {
		o(&co)
	}
	if sourcePath == "" {
		sourcePath = "/"
	}

	engine.IncrRPCCalls()
	slog.Debug("notebooklm: rpc", slog.String("rpc", rpcID), slog.String("source_path", sourcePath))

	text, err := c.invoke(ctx, rpcID, args, sourcePath, co.timeout, true)
	if err != nil {
		engine.IncrRPCErrors()
		return "", err
	}
	return text, nil
}

func (c *Client) invoke(ctx context.Context, rpcID string, args any, sourcePath string, timeout time.Duration, allowRefresh bool) (string, error) {
	account := c.AuthUser()
	sess, err := c.tokens.Get(ctx, account)
	if err != nil {
		return "", err
	}

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return "", engine.WrapError(engine.CodeInvalidRequest, "encode args", err)
	}
	freq, err := json.Marshal([]any{[]any{[]any{rpcID, string(argsJSON), nil, "generic"}}})
	if err != nil {
		return "", engine.WrapError(engine.CodeInvalidRequest, "encode f.req", err)
	}
	form := url.Values{}
	form.Set("f.req", string(freq))
	form.Set("at", sess.CSRFToken)
	body := form.Encode()

	q := url.Values{}
	q.Set("rpcids", rpcID)
	q.Set("source-path", sourcePath)
	q.Set("f.sid", sess.SessionID)
	q.Set("hl", "en")
	q.Set("authuser", strconv.Itoa(account))
	q.Set("_reqid", strconv.Itoa(rand.IntN(900000)+100000))
	endpoint := c.baseURL + batchExecutePath + "?" + q.Encode()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := engine.RetryHTTP(callCtx, c.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", formContentType)
		req.Header.Set("User-Agent", engine.UserAgentChrome)
		if c.cookies != "" {
			req.Header.Set("Cookie", c.cookies)
		}
		return c.http.Do(req)
	})
	if err != nil {
		return "", timeoutOr(ctx, callCtx, rpcID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.tokens.Invalidate(account)
		if !allowRefresh {
			return "", engine.NewError(engine.CodeUnauthenticated, "RPC %s: session rejected (HTTP %d)", rpcID, resp.StatusCode)
		}
		slog.Debug("notebooklm: session rejected, refreshing", slog.String("rpc", rpcID), slog.Int("status", resp.StatusCode))
		if _, err := c.tokens.Refresh(ctx, account); err != nil {
			return "", err
		}
		return c.invoke(ctx, rpcID, args, sourcePath, timeout, false)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", engine.Rejected("RPC "+rpcID+" failed", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", timeoutOr(ctx, callCtx, rpcID, engine.WrapError(engine.CodeNetworkError, "read response", err))
	}
	return string(data), nil
}

// timeoutOr maps an expired per-call deadline to TIMEOUT, leaving caller cancellation as-is.
func timeoutOr(parent, call context.Context, rpcID string, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(call.Err(), context.DeadlineExceeded) {
		return engine.WrapError(engine.CodeTimeout, "RPC "+rpcID+" timed out", call.Err())
	}
	return err
}
