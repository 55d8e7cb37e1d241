// Package app wires configuration and clients shared by the MCP server and the CLI.
package app

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/proxypool"

	"github.com/anatolykoptev/go_nlm/internal/engine"
	"github.com/anatolykoptev/go_nlm/internal/engine/crawl"
	"github.com/anatolykoptev/go_nlm/internal/engine/history"
	"github.com/anatolykoptev/go_nlm/internal/engine/notebooklm"
	"github.com/anatolykoptev/go_nlm/internal/engine/youtube"
	"github.com/anatolykoptev/go_nlm/internal/nlmserver"
)

// App holds the process-wide clients.
type App struct {
	NLM    *notebooklm.Client
	Videos *youtube.Service
	Crawls *crawl.Orchestrator
	Store  *history.Store // nil when the history database cannot be opened
}

// LoadConfig reads the environment into an engine.Config.
func LoadConfig() engine.Config {
	return engine.Config{
		NotebookLMURL:        env.Str("NLM_BASE_URL", "https://notebooklm.google.com"),
		AccountsURL:          env.Str("NLM_ACCOUNTS_URL", "https://accounts.google.com"),
		Cookies:              loadCookies(),
		AuthUser:             env.Int("NLM_AUTHUSER", 0),
		RPCTimeout:           env.Duration("NLM_RPC_TIMEOUT", 30*time.Second),
		YouTubeURL:           env.Str("YT_BASE_URL", "https://www.youtube.com"),
		CommentRequestDelay:  env.Duration("YT_REQUEST_DELAY", 100*time.Millisecond),
		MaxWordsPerPart:      env.Int("COMMENTS_MAX_WORDS", 400000),
		FetchTimeout:         env.Duration("FETCH_TIMEOUT", 15*time.Second),
		MaxContentChars:      env.Int("MAX_CONTENT_CHARS", 200000),
		HistoryPath:          env.Str("HISTORY_DB", ""),
		HistoryLimit:         env.Int("HISTORY_LIMIT", history.DefaultLimit),
		QueueAddDelay:        env.Duration("QUEUE_ADD_DELAY", 2*time.Second),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
}

// loadCookies prefers NLM_COOKIES, then the file named by NLM_COOKIES_FILE.
func loadCookies() string {
	if c := env.Str("NLM_COOKIES", ""); c != "" {
		return c
	}
	path := env.Str("NLM_COOKIES_FILE", "")
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("cookies file unreadable", slog.String("path", path), slog.Any("error", err))
		return ""
	}
	return strings.TrimSpace(string(data))
}

// InitEngine configures the engine from the environment: HTTP clients,
// the optional stealth browser client with proxy pool, and the metadata cache.
func InitEngine() {
	c := LoadConfig()
	if c.Cookies == "" {
		slog.Warn("NLM_COOKIES is empty, NotebookLM calls will fail with UNAUTHENTICATED")
	}

	opts := []stealth.ClientOption{stealth.WithTimeout(15)}
	if apiKey := env.Str("WEBSHARE_API_KEY", ""); apiKey != "" {
		pool, err := proxypool.NewWebshare(apiKey)
		if err != nil {
			slog.Warn("proxy pool init failed, running without proxy", slog.Any("error", err))
		} else {
			opts = append(opts, stealth.WithProxyPool(pool))
			slog.Info("proxy pool initialized", slog.Int("proxies", pool.Len()))
		}
	}
	bc, err := stealth.NewClient(opts...)
	if err != nil {
		slog.Warn("stealth client init failed, watch pages use plain HTTP", slog.Any("error", err))
	} else {
		c.BrowserClient = bc
	}

	engine.Init(c)

	cacheTTL := env.Duration("CACHE_TTL", 15*time.Minute)
	engine.InitCache(env.Str("REDIS_URL", ""), cacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)
}

// New builds the clients from engine.Cfg. Call InitEngine first.
func New() *App {
	a := &App{
		NLM:    notebooklm.NewFromConfig(),
		Videos: youtube.NewService(),
	}
	store, err := history.Default()
	if err != nil {
		slog.Warn("history store unavailable, queue and history disabled", slog.Any("error", err))
	} else {
		a.Store = store
	}

	opts := []crawl.Option{crawl.WithMaxWords(engine.Cfg.MaxWordsPerPart)}
	if a.Store != nil {
		opts = append(opts, crawl.WithRecorder(a.Store))
	}
	a.Crawls = crawl.New(a.Videos, a.NLM, opts...)
	return a
}

// Deps returns the tool collaborators.
func (a *App) Deps() nlmserver.Deps {
	return nlmserver.Deps{
		NLM:        a.NLM,
		Crawls:     a.Crawls,
		Videos:     a.Videos,
		Store:      a.Store,
		QueueDelay: engine.Cfg.QueueAddDelay,
	}
}

// Close releases the history database.
func (a *App) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
}
