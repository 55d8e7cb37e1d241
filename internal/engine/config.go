package engine

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	NotebookLMURL        string
	AccountsURL          string
	Cookies              string // raw Cookie header for the signed-in Google session
	AuthUser             int
	RPCTimeout           time.Duration
	YouTubeURL           string
	CommentRequestDelay  time.Duration
	MaxWordsPerPart      int
	FetchTimeout         time.Duration
	MaxContentChars      int
	HistoryPath          string
	HistoryLimit         int
	QueueAddDelay        time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration
	HTTPClient           *http.Client
	BrowserClient        *BrowserClient // nil = watch page fetched with HTTPClient
}

var cfg = Config{
	NotebookLMURL:        "https://notebooklm.google.com",
	AccountsURL:          "https://accounts.google.com",
	YouTubeURL:           "https://www.youtube.com",
	RPCTimeout:           30 * time.Second,
	CommentRequestDelay:  100 * time.Millisecond,
	MaxWordsPerPart:      400000,
	FetchTimeout:         15 * time.Second,
	MaxContentChars:      200000,
	HistoryLimit:         500,
	QueueAddDelay:        2 * time.Second,
	CacheMaxEntries:      1000,
	CacheCleanupInterval: 5 * time.Minute,
	HTTPClient:           http.DefaultClient,
}

// Cfg exposes the engine configuration for sub-packages (notebooklm, youtube, crawl).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	cfg = c
	Cfg = &cfg
}
