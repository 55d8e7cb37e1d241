package nlmserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_nlm/internal/engine"
	"github.com/anatolykoptev/go_nlm/internal/engine/history"
	"github.com/anatolykoptev/go_nlm/internal/engine/notebooklm"
)

const maxPDFBytes = 200 << 20

type AddSourcesResult struct {
	Added   int      `json:"added"`
	Regular int      `json:"regular,omitempty"`
	Video   int      `json:"video,omitempty"`
	Failed  []string `json:"failed,omitempty"`
}

type AddTextResult struct {
	Title string `json:"title"`
	Words int    `json:"words"`
}

type AddPDFResult struct {
	SourceID string `json:"source_id"`
	Filename string `json:"filename"`
	Bytes    int    `json:"bytes"`
}

type DeleteResult struct {
	Deleted   int `json:"deleted"`
	Requested int `json:"requested"`
}

func cleanURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func registerAddSources(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "nlm_add_sources",
		Description: "Add web pages and YouTube videos to a notebook as URL sources. With as_text, each page is fetched, converted to markdown and added as text instead.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.AddSourcesInput) (*mcp.CallToolResult, *AddSourcesResult, error) {
		urls := cleanURLs(input.URLs)
		if input.NotebookID == "" || len(urls) == 0 {
			return nil, nil, errors.New("notebook_id and urls are required")
		}

		if input.AsText {
			res := &AddSourcesResult{}
			for _, u := range urls {
				title, err := d.NLM.AddPageAsText(ctx, input.NotebookID, u)
				d.recordResult(ctx, history.Entry{Action: history.ActionAddText, URL: u, Title: title, NotebookID: input.NotebookID}, err)
				if err != nil {
					if ctx.Err() != nil {
						return nil, nil, ctx.Err()
					}
					slog.Warn("nlm_add_sources: page as text failed", slog.String("url", u), slog.Any("error", err))
					res.Failed = append(res.Failed, u)
					continue
				}
				res.Added++
			}
			return nil, res, nil
		}

		added, err := d.NLM.AddSources(ctx, input.NotebookID, urls)
		for _, u := range urls {
			d.recordResult(ctx, history.Entry{Action: history.ActionAddSource, URL: u, NotebookID: input.NotebookID}, err)
		}
		if err != nil {
			return nil, nil, err
		}
		return nil, &AddSourcesResult{Added: added.Regular + added.Video, Regular: added.Regular, Video: added.Video}, nil
	})
}

func registerAddText(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "nlm_add_text_source",
		Description: "Add pasted text to a notebook as a source.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.AddTextInput) (*mcp.CallToolResult, *AddTextResult, error) {
		if input.NotebookID == "" || strings.TrimSpace(input.Text) == "" {
			return nil, nil, errors.New("notebook_id and text are required")
		}
		err := d.NLM.AddTextSource(ctx, input.NotebookID, input.Text, input.Title)
		d.recordResult(ctx, history.Entry{Action: history.ActionAddText, Title: input.Title, NotebookID: input.NotebookID}, err)
		if err != nil {
			return nil, nil, err
		}
		return nil, &AddTextResult{Title: input.Title, Words: len(strings.Fields(input.Text))}, nil
	})
}

func registerAddPageText(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "nlm_add_page_text",
		Description: "Fetch a web page, extract its main content as markdown and add it to a notebook as a text source. Useful for pages NotebookLM cannot crawl itself.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.AddPageTextInput) (*mcp.CallToolResult, *AddTextResult, error) {
		if input.NotebookID == "" || input.URL == "" {
			return nil, nil, errors.New("notebook_id and url are required")
		}
		var title string
		err := engine.TrackOperation(ctx, "nlm_add_page_text", func(ctx context.Context) error {
			var err error
			title, err = d.NLM.AddPageAsText(ctx, input.NotebookID, input.URL)
			return err
		})
		d.recordResult(ctx, history.Entry{Action: history.ActionAddText, URL: input.URL, Title: title, NotebookID: input.NotebookID}, err)
		if err != nil {
			return nil, nil, err
		}
		return nil, &AddTextResult{Title: title}, nil
	})
}

func readPDF(input engine.AddPDFInput) (string, []byte, error) {
	name := input.Filename
	var data []byte
	switch {
	case input.Path != "":
		st, err := os.Stat(input.Path)
		if err != nil {
			return "", nil, err
		}
		if st.Size() > maxPDFBytes {
			return "", nil, fmt.Errorf("%s is larger than %d bytes", input.Path, maxPDFBytes)
		}
		if data, err = os.ReadFile(input.Path); err != nil {
			return "", nil, err
		}
		if name == "" {
			name = filepath.Base(input.Path)
		}
	case input.Base64 != "":
		var err error
		if data, err = base64.StdEncoding.DecodeString(input.Base64); err != nil {
			return "", nil, fmt.Errorf("decode base64: %w", err)
		}
	default:
		return "", nil, errors.New("path or base64 is required")
	}
	if len(data) == 0 {
		return "", nil, errors.New("pdf is empty")
	}
	if name == "" {
		name = "document"
	}
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return engine.SafeFilename(name), data, nil
}

func registerAddPDF(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "nlm_add_pdf",
		Description: "Upload a PDF to a notebook as a document source, from a local path or base64 bytes.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.AddPDFInput) (*mcp.CallToolResult, *AddPDFResult, error) {
		if input.NotebookID == "" {
			return nil, nil, errors.New("notebook_id is required")
		}
		name, data, err := readPDF(input)
		if err != nil {
			return nil, nil, err
		}
		up, err := d.NLM.AddPDFSource(ctx, input.NotebookID, name, data)
		d.recordResult(ctx, history.Entry{Action: history.ActionAddPDF, Title: name, NotebookID: input.NotebookID}, err)
		if err != nil {
			return nil, nil, err
		}
		return nil, &AddPDFResult{SourceID: up.SourceID, Filename: up.Filename, Bytes: len(data)}, nil
	})
}

func registerDeleteSources(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "nlm_delete_sources",
		Description: "Delete sources from a notebook by ID. Deletion runs in batches; batches already sent are not rolled back on failure.",
		Annotations: &mcp.ToolAnnotations{DestructiveHint: ptr(true)},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.DeleteSourcesInput) (*mcp.CallToolResult, *DeleteResult, error) {
		ids := cleanURLs(input.SourceIDs)
		if input.NotebookID == "" || len(ids) == 0 {
			return nil, nil, errors.New("notebook_id and source_ids are required")
		}
		n, err := d.NLM.DeleteSources(ctx, input.NotebookID, ids)
		detail := fmt.Sprintf("deleted %d of %d sources", n, len(ids))
		d.recordResult(ctx, history.Entry{
			Action:     history.ActionDeleteSources,
			NotebookID: input.NotebookID,
			Detail:     detail,
		}, err)
		out := &DeleteResult{Deleted: n, Requested: len(ids)}
		if err != nil {
			// Batches already sent stay deleted; report the count with the failure.
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: detail + ": " + err.Error()}},
			}, out, nil
		}
		return nil, out, nil
	})
}

func registerSyncDrive(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "nlm_sync_drive_sources",
		Description: "Check every Google Drive source of a notebook for freshness and re-import the stale ones. Sources with unknown freshness are skipped.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.NotebookInput) (*mcp.CallToolResult, *notebooklm.SyncReport, error) {
		if input.NotebookID == "" {
			return nil, nil, errors.New("notebook_id is required")
		}
		var rep notebooklm.SyncReport
		err := engine.TrackOperation(ctx, "nlm_sync_drive_sources", func(ctx context.Context) error {
			var err error
			rep, err = d.NLM.SyncDriveSources(ctx, input.NotebookID)
			return err
		})
		d.recordResult(ctx, history.Entry{
			Action:     history.ActionSyncDrive,
			NotebookID: input.NotebookID,
			Detail:     fmt.Sprintf("synced %d of %d", rep.Synced, rep.Total),
		}, err)
		if err != nil {
			return nil, nil, err
		}
		return nil, &rep, nil
	})
}

func ptr[T any](v T) *T { return &v }
