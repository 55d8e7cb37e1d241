package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	RPCCalls           atomic.Int64
	RPCErrors          atomic.Int64
	TokenRefreshes     atomic.Int64
	CommentPages       atomic.Int64
	CommentPageErrors  atomic.Int64
	CrawlRuns          atomic.Int64
	CrawlFailures      atomic.Int64
	CrawlCancellations atomic.Int64
	SourcesAdded       atomic.Int64
	SourcesDeleted     atomic.Int64
	Uploads            atomic.Int64
	FetchRequests      atomic.Int64
	FetchErrors        atomic.Int64
}

var metricKeys = []string{
	"rpc_calls", "rpc_errors", "token_refreshes",
	"comment_pages", "comment_page_errors",
	"crawl_runs", "crawl_failures", "crawl_cancellations",
	"sources_added", "sources_deleted", "uploads",
	"fetch_requests", "fetch_errors",
	"cache_hits", "cache_misses",
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"rpc_calls":           metrics.RPCCalls.Load(),
		"rpc_errors":          metrics.RPCErrors.Load(),
		"token_refreshes":     metrics.TokenRefreshes.Load(),
		"comment_pages":       metrics.CommentPages.Load(),
		"comment_page_errors": metrics.CommentPageErrors.Load(),
		"crawl_runs":          metrics.CrawlRuns.Load(),
		"crawl_failures":      metrics.CrawlFailures.Load(),
		"crawl_cancellations": metrics.CrawlCancellations.Load(),
		"sources_added":       metrics.SourcesAdded.Load(),
		"sources_deleted":     metrics.SourcesDeleted.Load(),
		"uploads":             metrics.Uploads.Load(),
		"fetch_requests":      metrics.FetchRequests.Load(),
		"fetch_errors":        metrics.FetchErrors.Load(),
		"cache_hits":          hits,
		"cache_misses":        misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for notebooklm/ sub-package.
func IncrRPCCalls()            { metrics.RPCCalls.Add(1) }
func IncrRPCErrors()           { metrics.RPCErrors.Add(1) }
func IncrTokenRefreshes()      { metrics.TokenRefreshes.Add(1) }
func IncrSourcesAdded(n int)   { metrics.SourcesAdded.Add(int64(n)) }
func IncrSourcesDeleted(n int) { metrics.SourcesDeleted.Add(int64(n)) }
func IncrUploads()             { metrics.Uploads.Add(1) }

// Incrementors for youtube/ and crawl/ sub-packages.
func IncrCommentPages()       { metrics.CommentPages.Add(1) }
func IncrCommentPageErrors()  { metrics.CommentPageErrors.Add(1) }
func IncrCrawlRuns()          { metrics.CrawlRuns.Add(1) }
func IncrCrawlFailures()      { metrics.CrawlFailures.Add(1) }
func IncrCrawlCancellations() { metrics.CrawlCancellations.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
