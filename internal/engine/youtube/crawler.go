package youtube

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/anatolykoptev/go_nlm/internal/engine"
)

// Mode selects the comment sort order.
type Mode string

const (
	ModeTop    Mode = "top"
	ModeNewest Mode = "newest"
)

// ParseMode maps user input to a Mode, defaulting to top.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeNewest)) {
		return ModeNewest
	}
	return ModeTop
}

// DefaultIncludeReplies is true for top mode and false for newest.
func (m Mode) DefaultIncludeReplies() bool { return m != ModeNewest }

// Reply is a second-level comment attached to a thread.
type Reply struct {
	ID          string `json:"id"`
	Author      string `json:"author"`
	Text        string `json:"text"`
	LikeCount   int    `json:"like_count"`
	PublishedAt string `json:"published_at"`
}

// Comment is a root comment with the replies collected for it.
type Comment struct {
	ID              string  `json:"id"`
	Author          string  `json:"author"`
	Text            string  `json:"text"`
	LikeCount       int     `json:"like_count"`
	PublishedAt     string  `json:"published_at"`
	TotalReplyCount int     `json:"total_reply_count"`
	Replies         []Reply `json:"replies"`
}

// CrawlOptions bounds a crawl. MaxRootComments <= 0 means unlimited.
type CrawlOptions struct {
	Mode            Mode
	MaxRootComments int
	IncludeReplies  bool
}

// Crawl phases reported through Progress.
const (
	PhaseFetchingComments = "fetching_comments"
	PhaseFetchingReplies  = "fetching_replies"
)

// Progress is emitted after every new root comment and once on entering
// the reply phase.
type Progress struct {
	Fetched int
	Phase   string
}

// Crawler walks root and reply continuations until both queues drain.
type Crawler struct {
	Fetcher PageFetcher
	Delay   time.Duration
}

// NewCrawler returns a crawler using the configured inter-request delay.
func NewCrawler(f PageFetcher) *Crawler {
	return &Crawler{Fetcher: f, Delay: engine.Cfg.CommentRequestDelay}
}

// Crawl fetches comments starting at initial. Root pages are always drained
// before reply pages. Cancelling ctx returns what was collected so far with
// a nil error; a page that still fails after retries aborts the crawl.
func (c *Crawler) Crawl(ctx context.Context, initial string, opts CrawlOptions, onProgress func(Progress)) ([]*Comment, error) {
	if onProgress == nil {
		onProgress = func(Progress) {}
	}
	roots := []Continuation{{Token: initial, Kind: KindRoot}}
	var replies []Continuation

	var out []*Comment
	byID := make(map[string]*Comment)
	seen := make(map[string]bool)
	seenTokens := map[string]bool{initial: true}

	limit := opts.MaxRootComments
	full := func() bool { return limit > 0 && len(out) >= limit }

	inReplies := false
	pages := 0

	for len(roots) > 0 || len(replies) > 0 {
		if ctx.Err() != nil {
			return out, nil
		}
		if full() && len(roots) > 0 {
			roots = nil
			if !opts.IncludeReplies || len(replies) == 0 {
				break
			}
		}

		var cur Continuation
		if len(roots) > 0 {
			cur, roots = roots[0], roots[1:]
		} else {
			cur, replies = replies[0], replies[1:]
			if !inReplies {
				inReplies = true
				onProgress(Progress{Fetched: len(out), Phase: PhaseFetchingReplies})
			}
		}

		resp, err := c.Fetcher.FetchPage(ctx, cur.Token)
		engine.IncrCommentPages()
		if err != nil {
			if ctx.Err() != nil {
				return out, nil
			}
			engine.IncrCommentPageErrors()
			return out, err
		}
		if ctx.Err() != nil {
			return out, nil
		}

		page := ParsePage(resp)
		pages++
		if pages <= 5 || pages%50 == 0 {
			slog.Debug("youtube: comment page",
				slog.Int("page", pages),
				slog.String("kind", cur.Kind.String()),
				slog.Int("records", len(page.Records)),
				slog.Int("continuations", len(page.Continuations)),
				slog.Int("roots", len(out)),
				slog.Int("root_queue", len(roots)),
				slog.Int("reply_queue", len(replies)))
		}

		for _, r := range page.Records {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true

			if r.IsReply {
				parentID, _, found := strings.Cut(r.ID, ".")
				if !found {
					parentID = cur.ParentID
				}
				if parent := byID[parentID]; parent != nil {
					parent.Replies = append(parent.Replies, Reply{
						ID:          r.ID,
						Author:      r.Author,
						Text:        r.Text,
						LikeCount:   r.LikeCount,
						PublishedAt: r.PublishedAt,
					})
				}
				continue
			}

			cm := &Comment{
				ID:              r.ID,
				Author:          r.Author,
				Text:            r.Text,
				LikeCount:       r.LikeCount,
				PublishedAt:     r.PublishedAt,
				TotalReplyCount: r.ReplyCount,
			}
			out = append(out, cm)
			byID[cm.ID] = cm
			onProgress(Progress{Fetched: len(out), Phase: PhaseFetchingComments})

			if full() {
				roots = nil
				if !opts.IncludeReplies {
					replies = nil
				}
				break
			}
		}

		for _, ct := range page.Continuations {
			if seenTokens[ct.Token] {
				continue
			}
			switch ct.Kind {
			case KindRoot:
				if full() {
					continue
				}
				roots = append(roots, ct)
			case KindReply:
				if !opts.IncludeReplies {
					continue
				}
				if ct.ParentID != "" && byID[ct.ParentID] == nil {
					continue
				}
				replies = append(replies, ct)
			}
			seenTokens[ct.Token] = true
		}

		if c.Delay > 0 {
			select {
			case <-time.After(c.Delay):
			case <-ctx.Done():
			}
		}
	}
	return out, nil
}
