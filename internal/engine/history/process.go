package history

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// SourceAdder adds one URL to a notebook.
type SourceAdder interface {
	AddSource(ctx context.Context, notebookID, sourceURL string) error
}

// ProcessResult summarizes a queue run.
type ProcessResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

// ProcessQueue adds every pending URL to notebookID, at most one per delay,
// writing a history entry per item. Each item leaves the queue once tried,
// so a cancelled run keeps only the untried items.
func (s *Store) ProcessQueue(ctx context.Context, notebookID string, adder SourceAdder, delay time.Duration) (ProcessResult, error) {
	var res ProcessResult
	items, err := s.Queue(ctx)
	if err != nil {
		return res, err
	}

	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	lim := rate.NewLimiter(limit, 1)

	for _, it := range items {
		if err := lim.Wait(ctx); err != nil {
			return res, err
		}
		entry := Entry{Action: ActionAddSource, URL: it.URL, Title: it.Title, NotebookID: notebookID}
		if err := adder.AddSource(ctx, notebookID, it.URL); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Errors++
			entry.Action, entry.Detail = ActionError, err.Error()
			slog.Warn("queue: add source failed", slog.String("url", it.URL), slog.Any("error", err))
		} else {
			res.Processed++
		}
		// The item was tried; record it even if ctx was cancelled meanwhile.
		bg := context.WithoutCancel(ctx)
		if err := s.AddHistory(bg, entry); err != nil {
			slog.Warn("queue: history write failed", slog.Any("error", err))
		}
		if err := s.RemoveQueueItem(bg, it.ID); err != nil {
			return res, err
		}
	}
	return res, nil
}
