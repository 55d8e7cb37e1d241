package nlmserver

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_nlm/internal/engine"
	"github.com/anatolykoptev/go_nlm/internal/engine/crawl"
	"github.com/anatolykoptev/go_nlm/internal/engine/youtube"
)

// CrawlStatus is crawl.State with timestamps rendered as RFC 3339 strings.
type CrawlStatus struct {
	RunID           string            `json:"run_id,omitempty"`
	VideoID         string            `json:"video_id,omitempty"`
	NotebookID      string            `json:"notebook_id,omitempty"`
	NotebookURL     string            `json:"notebook_url,omitempty"`
	Active          bool              `json:"active"`
	CancelRequested bool              `json:"cancel_requested"`
	Progress        crawl.Progress    `json:"progress"`
	Error           *crawl.StateError `json:"error,omitempty"`
	Result          *crawl.Result     `json:"result,omitempty"`
	StartedAt       string            `json:"started_at,omitempty"`
	FinishedAt      string            `json:"finished_at,omitempty"`
}

type CancelResult struct {
	Cancelled bool        `json:"cancelled"`
	Status    CrawlStatus `json:"status"`
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (d Deps) crawlStatus(s crawl.State) *CrawlStatus {
	out := &CrawlStatus{
		RunID:           s.RunID,
		VideoID:         s.VideoID,
		NotebookID:      s.NotebookID,
		Active:          s.Active,
		CancelRequested: s.CancelRequested,
		Progress:        s.Progress,
		Error:           s.Error,
		Result:          s.Result,
		StartedAt:       stamp(s.StartedAt),
		FinishedAt:      stamp(s.FinishedAt),
	}
	if d.NLM != nil && s.NotebookID != "" {
		out.NotebookURL = d.NLM.NotebookURL(s.NotebookID)
	}
	return out
}

func registerVideoInfo(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "yt_video_info",
		Description: "Get YouTube video metadata: title, channel, publish date, view, like and comment counts.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.VideoInput) (*mcp.CallToolResult, *youtube.VideoMetadata, error) {
		id := youtube.ExtractVideoID(input.Video)
		if id == "" {
			return nil, nil, engine.NewError(engine.CodeInvalidRequest, "not a YouTube video: %q", input.Video)
		}
		meta, err := d.Videos.Metadata(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		return nil, &meta, nil
	})
}

func registerCommentsStart(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "yt_comments_start",
		Description: "Start crawling the comments of a YouTube video into a notebook. Comments are formatted as markdown, " +
			"split into documents that fit the notebook source size limit and added as text sources. " +
			"Runs in the background; poll yt_comments_status. Only one crawl runs at a time.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.CommentsStartInput) (*mcp.CallToolResult, *CrawlStatus, error) {
		st, err := d.Crawls.Start(ctx, crawl.Request{
			Video:          input.Video,
			NotebookID:     input.NotebookID,
			Mode:           youtube.ParseMode(input.Mode),
			Limit:          input.Limit,
			IncludeReplies: input.IncludeReplies,
		})
		if err != nil {
			return nil, nil, err
		}
		return nil, d.crawlStatus(st), nil
	})
}

func registerCommentsStatus(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "yt_comments_status",
		Description: "Get the state of the current or last comment crawl: phase, fetched/total counters, result or error.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ engine.EmptyInput) (*mcp.CallToolResult, *CrawlStatus, error) {
		return nil, d.crawlStatus(d.Crawls.Status()), nil
	})
}

func registerCommentsCancel(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "yt_comments_cancel",
		Description: "Cancel the running comment crawl. Documents already added to the notebook are kept; nothing further is sent.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ engine.EmptyInput) (*mcp.CallToolResult, *CancelResult, error) {
		ok := d.Crawls.Cancel()
		return nil, &CancelResult{Cancelled: ok, Status: *d.crawlStatus(d.Crawls.Status())}, nil
	})
}
