// Package nlmserver exposes notebook ingestion, comment crawls, the URL queue
// and the action history as MCP tools.
package nlmserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_nlm/internal/engine/crawl"
	"github.com/anatolykoptev/go_nlm/internal/engine/history"
	"github.com/anatolykoptev/go_nlm/internal/engine/notebooklm"
	"github.com/anatolykoptev/go_nlm/internal/engine/youtube"
)

// Notebooks is the NotebookLM surface used by the tools.
type Notebooks interface {
	ListAccounts(ctx context.Context) ([]notebooklm.Account, error)
	SetAccount(index int)
	AuthUser() int
	NotebookURL(notebookID string) string
	ListNotebooks(ctx context.Context) ([]notebooklm.Notebook, error)
	CreateNotebook(ctx context.Context, title, emoji string) (notebooklm.Notebook, error)
	GetNotebook(ctx context.Context, notebookID string) (notebooklm.NotebookDetail, error)
	AddSource(ctx context.Context, notebookID, sourceURL string) error
	AddSources(ctx context.Context, notebookID string, urls []string) (notebooklm.AddResult, error)
	AddTextSource(ctx context.Context, notebookID, text, title string) error
	AddPageAsText(ctx context.Context, notebookID, pageURL string) (string, error)
	AddPDFSource(ctx context.Context, notebookID, filename string, data []byte) (notebooklm.UploadResult, error)
	DeleteSources(ctx context.Context, notebookID string, sourceIDs []string) (int, error)
	SyncDriveSources(ctx context.Context, notebookID string) (notebooklm.SyncReport, error)
}

// Videos resolves video metadata.
type Videos interface {
	Metadata(ctx context.Context, videoID string) (youtube.VideoMetadata, error)
}

// Deps are the collaborators behind the tools. Store may be nil, which
// disables the queue and history tools.
type Deps struct {
	NLM        Notebooks
	Crawls     *crawl.Orchestrator
	Videos     Videos
	Store      *history.Store
	QueueDelay time.Duration
}

// RegisterTools registers every tool on server and returns how many were added.
func RegisterTools(server *mcp.Server, d Deps) int {
	n := 0
	if d.NLM != nil {
		registerListAccounts(server, d)
		registerSetAccount(server, d)
		registerListNotebooks(server, d)
		registerCreateNotebook(server, d)
		registerGetNotebook(server, d)
		registerAddSources(server, d)
		registerAddText(server, d)
		registerAddPageText(server, d)
		registerAddPDF(server, d)
		registerDeleteSources(server, d)
		registerSyncDrive(server, d)
		n += 11
	}
	if d.Videos != nil {
		registerVideoInfo(server, d)
		n++
	}
	if d.Crawls != nil {
		registerCommentsStart(server, d)
		registerCommentsStatus(server, d)
		registerCommentsCancel(server, d)
		n += 3
	}
	if d.Store != nil {
		registerHistoryList(server, d)
		registerHistoryClear(server, d)
		n += 2
		if d.NLM != nil {
			registerQueueAdd(server, d)
			registerQueueList(server, d)
			registerQueueProcess(server, d)
			registerQueueClear(server, d)
			n += 4
		}
	}
	return n
}

// record writes a history entry when a store is configured. Failures are logged only.
func (d Deps) record(ctx context.Context, e history.Entry) {
	if d.Store == nil {
		return
	}
	if err := d.Store.AddHistory(context.WithoutCancel(ctx), e); err != nil {
		slog.Warn("history: write failed", slog.String("action", e.Action), slog.Any("error", err))
	}
}

// recordResult writes ok on success or an error entry carrying err.
// A detail already set on ok is kept in front of the error text.
func (d Deps) recordResult(ctx context.Context, ok history.Entry, err error) {
	if err != nil {
		detail := err.Error()
		if ok.Detail != "" {
			detail = ok.Detail + ": " + detail
		}
		ok.Action, ok.Detail = history.ActionError, detail
	}
	d.record(ctx, ok)
}
