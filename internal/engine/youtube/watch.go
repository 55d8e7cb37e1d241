package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/anatolykoptev/go_nlm/internal/engine"
)

const (
	ytcfgMarker          = "ytcfg.set("
	initialDataMarker    = "ytInitialData = "
	playerResponseMarker = "ytInitialPlayerResponse = "
	watchPageMaxBody     = 6 * 1024 * 1024
	defaultVideoTitle    = "YouTube Video"
)

var videoIDRE = regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=|youtube\.com/embed/|youtube\.com/v/|youtu\.be/|youtube\.com/shorts/)([a-zA-Z0-9_-]{11})`)

var bareVideoIDRE = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// ExtractVideoID pulls the 11-char video ID from a watch, embed, /v/, shorts
// or youtu.be URL, or accepts a bare ID. Returns "" when none is found.
func ExtractVideoID(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := videoIDRE.FindStringSubmatch(raw); len(m) >= 2 {
		return m[1]
	}
	if bareVideoIDRE.MatchString(raw) {
		return raw
	}
	return ""
}

// VideoMetadata describes a video for the document header.
type VideoMetadata struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	ChannelTitle string `json:"channel_title"`
	PublishedAt  string `json:"published_at"`
	ViewCount    int    `json:"view_count"`
	LikeCount    int    `json:"like_count"`
	CommentCount int    `json:"comment_count"`
}

// WatchData is everything scraped from one watch page load.
type WatchData struct {
	Metadata VideoMetadata
	Config   PageConfig
}

// ConfigSource loads page context for a video.
type ConfigSource interface {
	Load(ctx context.Context, videoID string) (*WatchData, error)
}

// WatchPage scrapes {base}/watch?v=ID. A non-nil Browser is tried first
// for its Chrome TLS fingerprint; the plain HTTP client is the fallback.
type WatchPage struct {
	BaseURL string
	Browser *engine.BrowserClient
	HTTP    *http.Client
	Retry   engine.RetryConfig
}

// NewWatchPage builds a scraper from the engine configuration.
func NewWatchPage() *WatchPage {
	return &WatchPage{
		BaseURL: engine.Cfg.YouTubeURL,
		Browser: engine.Cfg.BrowserClient,
		HTTP:    engine.Cfg.HTTPClient,
		Retry:   engine.DefaultRetryConfig,
	}
}

// Load fetches and parses the watch page.
func (w *WatchPage) Load(ctx context.Context, videoID string) (*WatchData, error) {
	watchURL := w.BaseURL + "/watch?v=" + url.QueryEscape(videoID) + "&hl=en"
	body, err := w.fetch(ctx, watchURL)
	if err != nil {
		return nil, err
	}
	return ParseWatchPage(body, videoID)
}

func (w *WatchPage) fetch(ctx context.Context, watchURL string) ([]byte, error) {
	headers := engine.ChromeHeaders()
	headers["accept-language"] = "en-US,en;q=0.9"
	headers["cookie"] = "CONSENT=YES+1"

	if w.Browser != nil {
		data, err := engine.RetryDo(ctx, w.Retry, func() ([]byte, error) {
			data, _, status, err := w.Browser.Do(http.MethodGet, watchURL, headers, nil)
			if err != nil {
				return nil, engine.WrapError(engine.CodeNetworkError, "watch page transport", err)
			}
			if status != http.StatusOK {
				return nil, engine.Rejected("watch page", status)
			}
			return data, nil
		})
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	// net/http only decompresses transparently when it sets Accept-Encoding itself.
	delete(headers, "accept-encoding")
	resp, err := engine.RetryHTTP(ctx, w.Retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		req.Header.Set("User-Agent", engine.RandomUserAgent())
		return w.HTTP.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, engine.NewError(engine.CodeVideoNotFound, "video page not found")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, engine.Rejected("watch page", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, watchPageMaxBody))
}

// ParseWatchPage extracts page config and metadata from watch page HTML.
func ParseWatchPage(body []byte, videoID string) (*WatchData, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, engine.WrapError(engine.CodeMalformedResponse, "parse watch page", err)
	}

	ytcfg := make(map[string]any)
	var initialData, player map[string]any
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		for rest := text; ; {
			i := strings.Index(rest, ytcfgMarker)
			if i < 0 {
				break
			}
			rest = rest[i+len(ytcfgMarker):]
			var m map[string]any
			if raw := extractJSON(rest); raw != "" && json.Unmarshal([]byte(raw), &m) == nil {
				for k, v := range m {
					ytcfg[k] = v
				}
			}
		}
		if initialData == nil {
			initialData = objectAfter(text, initialDataMarker)
		}
		if player == nil {
			player = objectAfter(text, playerResponseMarker)
		}
	})

	wd := &WatchData{
		Config:   ExtractPageConfig(ytcfg, dig(initialData, "contents", "twoColumnWatchNextResults", "results"), initialData["engagementPanels"]),
		Metadata: extractMetadata(player, initialData, videoID),
	}
	if wd.Metadata.Title == defaultVideoTitle {
		if t := strings.TrimSuffix(engine.PageTitle(doc), " - YouTube"); t != "" {
			wd.Metadata.Title = t
		}
	}
	return wd, nil
}

func objectAfter(text, marker string) map[string]any {
	i := strings.Index(text, marker)
	if i < 0 {
		return nil
	}
	raw := extractJSON(text[i+len(marker):])
	if raw == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

// extractJSON returns the balanced {...} object at the start of s (after
// leading whitespace), honoring string literals and escapes.
func extractJSON(s string) string {
	s = strings.TrimLeft(s, " \t\r\n")
	if s == "" || s[0] != '{' {
		return ""
	}
	depth := 0
	inStr, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

func extractMetadata(player, initialData map[string]any, videoID string) VideoMetadata {
	details := dig(player, "videoDetails")
	md := VideoMetadata{
		VideoID:      str(dig(details, "videoId")),
		Title:        str(dig(details, "title")),
		ChannelTitle: str(dig(details, "author")),
	}
	if md.VideoID == "" {
		md.VideoID = videoID
	}
	if md.Title == "" {
		md.Title = defaultVideoTitle
	}
	md.ViewCount, _ = strconv.Atoi(str(dig(details, "viewCount")))

	micro := dig(player, "microformat", "playerMicroformatRenderer")
	md.PublishedAt = str(dig(micro, "publishDate"))
	if md.PublishedAt == "" {
		md.PublishedAt = str(dig(micro, "uploadDate"))
	}

	if initialData != nil {
		md.LikeCount = searchCount(initialData, likeCountAt)
		md.CommentCount = searchCount(initialData, commentCountAt)
	}
	return md
}

// searchCount returns the first count that pick finds in a breadth-first walk.
func searchCount(root any, pick func(map[string]any) string) int {
	type node struct {
		v     any
		depth int
	}
	queue := []node{{root, 0}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.depth > maxSearchDepth {
			continue
		}
		switch v := n.v.(type) {
		case []any:
			for _, c := range v {
				queue = append(queue, node{c, n.depth + 1})
			}
		case map[string]any:
			if s := pick(v); s != "" {
				if c := ParseCount(s); c > 0 {
					return c
				}
			}
			for _, c := range sortedValues(v) {
				queue = append(queue, node{c, n.depth + 1})
			}
		}
	}
	return 0
}

func likeCountAt(m map[string]any) string {
	if seg := dig(m, "segmentedLikeDislikeButtonViewModel", "likeButtonViewModel"); seg != nil {
		if inner := dig(seg, "likeButtonViewModel"); inner != nil {
			seg = inner
		}
		if t := str(dig(seg, "toggleButtonViewModel", "toggleButtonViewModel", "defaultButtonViewModel", "buttonViewModel", "title")); t != "" {
			return t
		}
	}
	if btn := dig(m, "segmentedLikeDislikeButtonRenderer", "likeButton", "toggleButtonRenderer"); btn != nil {
		if t := textOf(dig(btn, "defaultText")); t != "" {
			return t
		}
	}
	return ""
}

func commentCountAt(m map[string]any) string {
	if h := dig(m, "commentsEntryPointHeaderRenderer"); h != nil {
		if t := textOf(dig(h, "commentCount")); t != "" {
			return t
		}
	}
	if h := dig(m, "commentsHeaderRenderer"); h != nil {
		if t := textOf(dig(h, "countText")); t != "" {
			return t
		}
	}
	return textOf(dig(m, "commentsCount"))
}
