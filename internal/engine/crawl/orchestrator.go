// Package crawl runs one comment crawl at a time: metadata, comment fetch,
// formatting and publishing to a notebook, with pollable state.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anatolykoptev/go_nlm/internal/engine"
	"github.com/anatolykoptev/go_nlm/internal/engine/history"
	"github.com/anatolykoptev/go_nlm/internal/engine/youtube"
)

// Phase is the crawl state machine position.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseFetchingMetadata Phase = "fetching_metadata"
	PhaseFetchingComments Phase = youtube.PhaseFetchingComments
	PhaseFetchingReplies  Phase = youtube.PhaseFetchingReplies
	PhaseFormatting       Phase = "formatting"
	PhaseSending          Phase = "sending"
	PhaseDone             Phase = "done"
	PhaseError            Phase = "error"
	PhaseCancelled        Phase = "cancelled"
)

// Terminal reports whether p ends a run.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseError || p == PhaseCancelled
}

// Request starts a crawl. Video may be an ID or any YouTube URL.
// Limit 0 means unlimited and a negative limit is rejected; nil
// IncludeReplies uses the mode default.
type Request struct {
	Video          string
	NotebookID     string
	Mode           youtube.Mode
	Limit          int
	IncludeReplies *bool
}

// Progress is the live counter shown while a crawl runs.
type Progress struct {
	Fetched int   `json:"fetched"`
	Total   int   `json:"total"`
	Phase   Phase `json:"phase"`
}

// StateError is the failure recorded on a run.
type StateError struct {
	Code    engine.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

// Result summarizes a finished run.
type Result struct {
	CommentCount  int    `json:"comment_count"`
	TotalComments int    `json:"total_comments"`
	PartCount     int    `json:"part_count"`
	VideoTitle    string `json:"video_title"`
}

// State is a snapshot of the current or most recent run.
type State struct {
	RunID           string      `json:"run_id,omitempty"`
	VideoID         string      `json:"video_id,omitempty"`
	NotebookID      string      `json:"notebook_id,omitempty"`
	Active          bool        `json:"active"`
	CancelRequested bool        `json:"cancel_requested"`
	Progress        Progress    `json:"progress"`
	Error           *StateError `json:"error,omitempty"`
	Result          *Result     `json:"result,omitempty"`
	StartedAt       time.Time   `json:"started_at,omitzero"`
	FinishedAt      time.Time   `json:"finished_at,omitzero"`
}

// VideoSource supplies metadata and comments for a video.
type VideoSource interface {
	Metadata(ctx context.Context, videoID string) (youtube.VideoMetadata, error)
	Comments(ctx context.Context, videoID string, opts youtube.CrawlOptions, onProgress func(youtube.Progress)) ([]*youtube.Comment, error)
}

// Publisher stores one text document in a notebook.
type Publisher interface {
	AddTextSource(ctx context.Context, notebookID, text, title string) error
}

// Recorder receives a history entry when a run ends.
type Recorder interface {
	AddHistory(ctx context.Context, e history.Entry) error
}

// Orchestrator owns the single crawl slot.
type Orchestrator struct {
	videos   VideoSource
	pub      Publisher
	rec      Recorder
	maxWords int
	now      func() time.Time

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder writes a history entry per finished run.
func WithRecorder(r Recorder) Option { return func(o *Orchestrator) { o.rec = r } }

// WithMaxWords sets the per-document word budget.
func WithMaxWords(n int) Option { return func(o *Orchestrator) { o.maxWords = n } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// New creates an idle orchestrator.
func New(videos VideoSource, pub Publisher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		videos:   videos,
		pub:      pub,
		maxWords: engine.Cfg.MaxWordsPerPart,
		now:      time.Now,
		state:    State{Progress: Progress{Phase: PhaseIdle}},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start launches a run in the background and returns its initial state.
// A second Start while a run is active fails with ALREADY_IN_PROGRESS.
// The run is detached from ctx cancellation; use Cancel to stop it.
func (o *Orchestrator) Start(ctx context.Context, req Request) (State, error) {
	videoID := youtube.ExtractVideoID(req.Video)
	if videoID == "" {
		return State{}, engine.NewError(engine.CodeInvalidRequest, "not a YouTube video: %q", req.Video)
	}
	if strings.TrimSpace(req.NotebookID) == "" {
		return State{}, engine.NewError(engine.CodeInvalidRequest, "notebook id is required")
	}
	if req.Limit < 0 {
		return State{}, engine.NewError(engine.CodeInvalidRequest, "limit must be >= 0, got %d", req.Limit)
	}
	if req.Mode == "" {
		req.Mode = youtube.ModeTop
	}
	opts := youtube.CrawlOptions{
		Mode:            req.Mode,
		MaxRootComments: req.Limit,
		IncludeReplies:  req.Mode.DefaultIncludeReplies(),
	}
	if req.IncludeReplies != nil {
		opts.IncludeReplies = *req.IncludeReplies
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Active {
		return o.state, engine.NewError(engine.CodeAlreadyInProgress, "a comment crawl is already running for %s", o.state.VideoID)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancel = cancel
	o.done = make(chan struct{})
	o.state = State{
		RunID:      uuid.NewString(),
		VideoID:    videoID,
		NotebookID: req.NotebookID,
		Active:     true,
		Progress:   Progress{Phase: PhaseFetchingMetadata},
		StartedAt:  o.now(),
	}
	snapshot := o.state

	go o.run(runCtx, cancel, snapshot, opts, o.done)
	return snapshot, nil
}

// Status returns a copy of the current state.
func (o *Orchestrator) Status() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.state
	if s.Error != nil {
		e := *s.Error
		s.Error = &e
	}
	if s.Result != nil {
		r := *s.Result
		s.Result = &r
	}
	return s
}

// Cancel requests the active run to stop. It reports whether a run was active.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.state.Active {
		return false
	}
	o.state.CancelRequested = true
	o.cancel()
	return true
}

// Wait blocks until the current run ends or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) (State, error) {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done == nil {
		return o.Status(), nil
	}
	select {
	case <-done:
		return o.Status(), nil
	case <-ctx.Done():
		return o.Status(), ctx.Err()
	}
}

func (o *Orchestrator) update(fn func(*State)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.state)
}

func (o *Orchestrator) setPhase(p Phase) {
	o.update(func(s *State) { s.Progress.Phase = p })
}

func (o *Orchestrator) run(ctx context.Context, cancel context.CancelFunc, st State, opts youtube.CrawlOptions, done chan struct{}) {
	defer close(done)
	defer cancel()
	engine.IncrCrawlRuns()
	log := slog.With(slog.String("run", st.RunID), slog.String("video", st.VideoID))
	log.Info("crawl: started", slog.String("mode", string(opts.Mode)),
		slog.Int("limit", opts.MaxRootComments), slog.Bool("replies", opts.IncludeReplies))

	res, err := o.execute(ctx, st, opts)

	entry := history.Entry{Action: history.ActionCrawlComments, URL: "https://www.youtube.com/watch?v=" + st.VideoID, NotebookID: st.NotebookID}
	o.update(func(s *State) {
		s.Active = false
		s.FinishedAt = o.now()
		switch {
		case err == nil:
			s.Progress.Phase = PhaseDone
			s.Result = res
			entry.Title = res.VideoTitle
			entry.Detail = fmt.Sprintf("%d comments in %d part(s)", res.CommentCount, res.PartCount)
		case errors.Is(err, context.Canceled):
			s.Progress.Phase = PhaseCancelled
			entry.Detail = "cancelled"
		default:
			s.Progress.Phase = PhaseError
			s.Error = &StateError{Code: engine.CodeOf(err), Message: err.Error()}
			entry.Action, entry.Detail = history.ActionError, err.Error()
		}
	})

	switch {
	case err == nil:
		log.Info("crawl: done", slog.Int("comments", res.CommentCount), slog.Int("parts", res.PartCount))
	case errors.Is(err, context.Canceled):
		engine.IncrCrawlCancellations()
		log.Info("crawl: cancelled")
	default:
		engine.IncrCrawlFailures()
		log.Warn("crawl: failed", slog.Any("error", err))
	}

	if o.rec != nil {
		if herr := o.rec.AddHistory(context.WithoutCancel(ctx), entry); herr != nil {
			log.Warn("crawl: history write failed", slog.Any("error", herr))
		}
	}
}

// execute walks the phases. A cancelled run returns context.Canceled and
// publishes nothing further.
func (o *Orchestrator) execute(ctx context.Context, st State, opts youtube.CrawlOptions) (*Result, error) {
	meta, err := o.videos.Metadata(ctx, st.VideoID)
	if err != nil {
		return nil, err
	}
	o.update(func(s *State) {
		s.Progress.Total = meta.CommentCount
		s.Progress.Phase = PhaseFetchingComments
	})
	if ctx.Err() != nil {
		return nil, context.Canceled
	}

	comments, err := o.videos.Comments(ctx, st.VideoID, opts, func(p youtube.Progress) {
		o.update(func(s *State) {
			s.Progress.Fetched = p.Fetched
			if p.Phase != "" {
				s.Progress.Phase = Phase(p.Phase)
			}
		})
	})
	if ctx.Err() != nil {
		return nil, context.Canceled
	}
	if err != nil {
		return nil, err
	}

	o.setPhase(PhaseFormatting)
	docs := youtube.FormatDocuments(meta, comments, o.now(), o.maxWords)
	if ctx.Err() != nil {
		return nil, context.Canceled
	}

	o.setPhase(PhaseSending)
	for i, d := range docs {
		if ctx.Err() != nil {
			return nil, context.Canceled
		}
		if err := o.pub.AddTextSource(ctx, st.NotebookID, d.Text, d.Title); err != nil {
			if ctx.Err() != nil {
				return nil, context.Canceled
			}
			return nil, fmt.Errorf("send part %d/%d: %w", i+1, len(docs), err)
		}
	}

	return &Result{
		CommentCount:  len(comments),
		TotalComments: meta.CommentCount,
		PartCount:     len(docs),
		VideoTitle:    meta.Title,
	}, nil
}
