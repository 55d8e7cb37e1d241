package nlmserver

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_nlm/internal/engine"
	"github.com/anatolykoptev/go_nlm/internal/engine/history"
)

type QueueResult struct {
	Count int                 `json:"count"`
	Items []history.QueueItem `json:"items,omitempty"`
}

type HistoryResult struct {
	Entries []history.Entry `json:"entries"`
}

type ClearResult struct {
	Cleared bool `json:"cleared"`
}

func registerQueueAdd(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "queue_add",
		Description: "Queue URLs to be added to a notebook later with queue_process. The queue survives restarts.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.QueueAddInput) (*mcp.CallToolResult, *QueueResult, error) {
		if len(cleanURLs(input.URLs)) == 0 {
			return nil, nil, errors.New("urls are required")
		}
		items := make([]history.QueueItem, 0, len(input.URLs))
		for i, u := range input.URLs {
			it := history.QueueItem{URL: u}
			if i < len(input.Titles) {
				it.Title = input.Titles[i]
			}
			items = append(items, it)
		}
		n, err := d.Store.Enqueue(ctx, items...)
		if err != nil {
			return nil, nil, err
		}
		return nil, &QueueResult{Count: n}, nil
	})
}

func registerQueueList(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "queue_list",
		Description: "List queued URLs in insertion order.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ engine.EmptyInput) (*mcp.CallToolResult, *QueueResult, error) {
		items, err := d.Store.Queue(ctx)
		if err != nil {
			return nil, nil, err
		}
		return nil, &QueueResult{Count: len(items), Items: items}, nil
	})
}

func registerQueueProcess(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "queue_process",
		Description: "Add every queued URL to a notebook, one at a time with a pause between them. " +
			"Each tried URL leaves the queue and is written to history; failures are counted, not retried.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.QueueProcessInput) (*mcp.CallToolResult, *history.ProcessResult, error) {
		if input.NotebookID == "" {
			return nil, nil, errors.New("notebook_id is required")
		}
		delay := d.QueueDelay
		if input.DelayMS > 0 {
			delay = time.Duration(input.DelayMS) * time.Millisecond
		}
		res, err := d.Store.ProcessQueue(ctx, input.NotebookID, d.NLM, delay)
		if err != nil {
			return nil, nil, err
		}
		return nil, &res, nil
	})
}

func registerQueueClear(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "queue_clear",
		Description: "Remove every queued URL.",
		Annotations: &mcp.ToolAnnotations{DestructiveHint: ptr(true)},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ engine.EmptyInput) (*mcp.CallToolResult, *ClearResult, error) {
		if err := d.Store.ClearQueue(ctx); err != nil {
			return nil, nil, err
		}
		return nil, &ClearResult{Cleared: true}, nil
	})
}

func registerHistoryList(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "history_list",
		Description: "List recent actions (sources added, deletions, drive syncs, comment crawls, errors), newest first.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.HistoryListInput) (*mcp.CallToolResult, *HistoryResult, error) {
		entries, err := d.Store.ListHistory(ctx, input.Limit)
		if err != nil {
			return nil, nil, err
		}
		return nil, &HistoryResult{Entries: entries}, nil
	})
}

func registerHistoryClear(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "history_clear",
		Description: "Delete the whole action history.",
		Annotations: &mcp.ToolAnnotations{DestructiveHint: ptr(true)},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ engine.EmptyInput) (*mcp.CallToolResult, *ClearResult, error) {
		if err := d.Store.ClearHistory(ctx); err != nil {
			return nil, nil, err
		}
		return nil, &ClearResult{Cleared: true}, nil
	})
}
