package youtube

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/anatolykoptev/go_nlm/internal/engine"
)

// Service loads video metadata and crawls comments for one video at a time.
type Service struct {
	Source     ConfigSource
	NewFetcher func(PageConfig) PageFetcher
	Delay      time.Duration

	mu      sync.Mutex
	pending map[string]*WatchData
}

// NewService wires the watch-page scraper and InnerTube fetcher from engine config.
func NewService() *Service {
	base := engine.Cfg.YouTubeURL
	return &Service{
		Source: NewWatchPage(),
		NewFetcher: func(pc PageConfig) PageFetcher {
			return NewInnerTube(base, pc)
		},
		Delay: engine.Cfg.CommentRequestDelay,
	}
}

// Metadata returns video metadata, served from the engine cache when present.
// The page config from a fresh load is kept for the next Comments call.
func (s *Service) Metadata(ctx context.Context, videoID string) (VideoMetadata, error) {
	key := engine.CacheKey("yt_meta", videoID)
	if md, ok := engine.CacheLoadJSON[VideoMetadata](ctx, key); ok {
		return md, nil
	}
	wd, err := s.Source.Load(ctx, videoID)
	if err != nil {
		return VideoMetadata{}, err
	}
	s.stash(videoID, wd)
	engine.CacheStoreJSON(ctx, key, wd.Metadata)
	return wd.Metadata, nil
}

// Comments crawls comments with opts. Tokens are never cached: a stashed
// config from Metadata is used once, otherwise the page is reloaded.
func (s *Service) Comments(ctx context.Context, videoID string, opts CrawlOptions, onProgress func(Progress)) ([]*Comment, error) {
	wd := s.take(videoID)
	if wd == nil {
		var err error
		if wd, err = s.Source.Load(ctx, videoID); err != nil {
			return nil, err
		}
	}
	pc := wd.Config
	if pc.APIKey == "" || pc.Context == nil {
		return nil, engine.NewError(engine.CodeCommentsUnavailable, "could not extract YouTube page config")
	}

	fetcher := s.NewFetcher(pc)
	if opts.Mode == ModeNewest && len(pc.SortMenu) < sortMenuMinimumEntries {
		pc = s.resolveSortMenu(ctx, fetcher, pc)
	}
	token, err := InitialContinuation(pc, opts.Mode)
	if err != nil {
		return nil, err
	}

	c := &Crawler{Fetcher: fetcher, Delay: s.Delay}
	return c.Crawl(ctx, token, opts, onProgress)
}

// resolveSortMenu loads the first comment page to discover the sort menu,
// which the watch page itself usually omits. Failures leave pc unchanged.
func (s *Service) resolveSortMenu(ctx context.Context, f PageFetcher, pc PageConfig) PageConfig {
	token, err := InitialContinuation(pc, ModeTop)
	if err != nil {
		return pc
	}
	resp, err := f.FetchPage(ctx, token)
	if err != nil {
		slog.Debug("youtube: sort menu probe failed", slog.Any("error", err))
		return pc
	}
	if menu, _ := findContinuations(resp); len(menu) >= sortMenuMinimumEntries {
		pc.SortMenu = menu
	}
	return pc
}

func (s *Service) stash(videoID string, wd *WatchData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = map[string]*WatchData{videoID: wd}
}

func (s *Service) take(videoID string) *WatchData {
	s.mu.Lock()
	defer s.mu.Unlock()
	wd := s.pending[videoID]
	delete(s.pending, videoID)
	return wd
}
