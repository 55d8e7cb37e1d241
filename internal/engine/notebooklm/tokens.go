package notebooklm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/anatolykoptev/go_nlm/internal/engine"
)

var (
	sessionIDRe = regexp.MustCompile(`"cfb2h":"([^"]+)"`)
	csrfTokenRe = regexp.MustCompile(`"SNlM0e":"([^"]+)"`)
)

// Session holds the scraped credentials for one signed-in account.
type Session struct {
	AccountIndex int
	SessionID    string
	CSRFToken    string
}

// TokenStore caches one Session per account index.
// Refresh is not serialized: concurrent refreshes each scrape the same kind of
// token and the last write wins.
type TokenStore struct {
	baseURL string
	cookies string
	client  *http.Client
	timeout time.Duration

	mu       sync.RWMutex
	sessions map[int]Session
}

// NewTokenStore creates a store that scrapes tokens from baseURL using the given cookie header.
func NewTokenStore(baseURL, cookies string, client *http.Client) *TokenStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &TokenStore{baseURL: baseURL, cookies: cookies, client: client, timeout: defaultTimeout, sessions: make(map[int]Session)}
}

// Get returns the cached session for accountIndex, fetching it on first use.
func (s *TokenStore) Get(ctx context.Context, accountIndex int) (Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[accountIndex]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}
	return s.Refresh(ctx, accountIndex)
}

// Refresh scrapes a fresh session from the app's landing page.
// A page without the token markers means the cookies are not signed in.
func (s *TokenStore) Refresh(ctx context.Context, accountIndex int) (Session, error) {
	engine.IncrTokenRefreshes()

	u := fmt.Sprintf("%s/?authuser=%d", s.baseURL, accountIndex)
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, u, nil)
	if err != nil {
		return Session{}, err
	}
	req.Header.Set("User-Agent", engine.UserAgentChrome)
	if s.cookies != "" {
		req.Header.Set("Cookie", s.cookies)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Session{}, timeoutOr(ctx, callCtx, "token probe", engine.WrapError(engine.CodeNetworkError, "token probe", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Session{}, engine.NewError(engine.CodeUnauthenticated, "token probe rejected with HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Session{}, engine.Rejected("token probe", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Session{}, engine.WrapError(engine.CodeNetworkError, "read token page", err)
	}

	sid := sessionIDRe.FindSubmatch(body)
	at := csrfTokenRe.FindSubmatch(body)
	if sid == nil || at == nil {
		s.Invalidate(accountIndex)
		return Session{}, engine.NewError(engine.CodeUnauthenticated, "not signed in to NotebookLM (authuser=%d)", accountIndex)
	}

	sess := Session{AccountIndex: accountIndex, SessionID: string(sid[1]), CSRFToken: string(at[1])}
	s.mu.Lock()
	s.sessions[accountIndex] = sess
	s.mu.Unlock()

	slog.Debug("notebooklm: session refreshed", slog.Int("authuser", accountIndex))
	return sess, nil
}

// Invalidate drops the cached session for accountIndex.
func (s *TokenStore) Invalidate(accountIndex int) {
	s.mu.Lock()
	delete(s.sessions, accountIndex)
	s.mu.Unlock()
}
