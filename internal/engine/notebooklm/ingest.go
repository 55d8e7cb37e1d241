package notebooklm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/anatolykoptev/go_nlm/internal/engine"
)

// RPC identifiers of the batchexecute endpoint.
const (
	rpcListNotebooks  = "wXbhsf"
	rpcCreateNotebook = "CCqFvf"
	rpcGetNotebook    = "rLM1Ne"
	rpcAddSources     = "izAoDd"
	rpcDeleteSources  = "tGMBJ"
	rpcCheckFreshness = "yR9Yof"
	rpcSyncDrive      = "FLmJqe"
	rpcRegisterUpload = "o4cbdc"
)

// DeleteBatchSize is the most source ids the delete RPC accepts at once.
const DeleteBatchSize = 20

// DefaultTextTitle names pasted-text sources added without a title.
const DefaultTextTitle = "Imported content"

var videoURLRe = regexp.MustCompile(`youtube\.com/watch|youtu\.be/`)

// IsVideoURL reports whether u must be sent in the video source shape.
func IsVideoURL(u string) bool {
	return videoURLRe.MatchString(u)
}

// videoCapabilities is the trailing options record sent with video and upload sources.
func videoCapabilities() []any {
	return []any{1, nil, nil, nil, nil, nil, nil, nil, nil, nil, []any{1}}
}

func notebookPath(notebookID string) string {
	return "/notebook/" + notebookID
}

func (c *Client) call(ctx context.Context, rpcID string, args any, sourcePath string) (any, error) {
	raw, err := c.Invoke(ctx, rpcID, args, sourcePath)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

// ListNotebooks returns the notebooks of the current account.
func (c *Client) ListNotebooks(ctx context.Context) ([]Notebook, error) {
	payload, err := c.call(ctx, rpcListNotebooks, []any{nil, 1, nil, []any{2}}, "/")
	if err != nil {
		return nil, fmt.Errorf("list notebooks: %w", err)
	}
	return ParseNotebookList(payload), nil
}

// CreateNotebook creates an empty notebook. The emoji is echoed back, not sent.
func (c *Client) CreateNotebook(ctx context.Context, title, emoji string) (Notebook, error) {
	raw, err := c.Invoke(ctx, rpcCreateNotebook, []any{title}, "/")
	if err != nil {
		return Notebook{}, fmt.Errorf("create notebook: %w", err)
	}
	id := ParseCreatedNotebookID(raw)
	if id == "" {
		return Notebook{}, engine.NewError(engine.CodeMalformedResponse, "create notebook: no id in response")
	}
	slog.Info("notebooklm: notebook created", slog.String("id", id), slog.String("title", title))
	return Notebook{ID: id, Title: title, Emoji: emoji}, nil
}

// GetNotebook returns a notebook with its sources.
func (c *Client) GetNotebook(ctx context.Context, notebookID string) (NotebookDetail, error) {
	payload, err := c.call(ctx, rpcGetNotebook, []any{notebookID, nil, []any{2}, nil, 0}, notebookPath(notebookID))
	if err != nil {
		return NotebookDetail{}, fmt.Errorf("get notebook %s: %w", notebookID, err)
	}
	d := ParseNotebookDetail(payload)
	if d.ID == "" {
		d.ID = notebookID
	}
	return d, nil
}

// AddSource adds one URL source.
func (c *Client) AddSource(ctx context.Context, notebookID, sourceURL string) error {
	_, err := c.AddSources(ctx, notebookID, []string{sourceURL})
	return err
}

// AddResult counts URLs sent per source shape.
type AddResult struct {
	Regular int `json:"regular"`
	Video   int `json:"video"`
}

// AddSources adds URL sources with one RPC for regular pages and one for video URLs.
func (c *Client) AddSources(ctx context.Context, notebookID string, urls []string) (AddResult, error) {
	var regular, video []any
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if IsVideoURL(u) {
			video = append(video, []any{nil, nil, nil, nil, nil, nil, nil, []any{u}, nil, nil, 1})
		} else {
			regular = append(regular, []any{nil, nil, []any{u}, nil, nil, nil, nil, nil})
		}
	}

	var res AddResult
	path := notebookPath(notebookID)
	if len(regular) > 0 {
		if _, err := c.Invoke(ctx, rpcAddSources, []any{regular, notebookID, []any{2}, nil, nil}, path); err != nil {
			return res, fmt.Errorf("add %d url sources: %w", len(regular), err)
		}
		res.Regular = len(regular)
		engine.IncrSourcesAdded(len(regular))
	}
	if len(video) > 0 {
		if _, err := c.Invoke(ctx, rpcAddSources, []any{video, notebookID, []any{2}, videoCapabilities()}, path); err != nil {
			return res, fmt.Errorf("add %d video sources: %w", len(video), err)
		}
		res.Video = len(video)
		engine.IncrSourcesAdded(len(video))
	}
	slog.Debug("notebooklm: sources added", slog.String("notebook", notebookID),
		slog.Int("regular", res.Regular), slog.Int("video", res.Video))
	return res, nil
}

// AddTextSource adds pasted text as a source.
func (c *Client) AddTextSource(ctx context.Context, notebookID, text, title string) error {
	if title == "" {
		title = DefaultTextTitle
	}
	source := []any{[]any{[]any{nil, title, text}}}
	if _, err := c.Invoke(ctx, rpcAddSources, []any{source, notebookID, []any{2}, nil, nil}, notebookPath(notebookID)); err != nil {
		return fmt.Errorf("add text source %q: %w", title, err)
	}
	engine.IncrSourcesAdded(1)
	return nil
}

// AddPageAsText fetches a page, converts it to markdown and adds it as a text source.
func (c *Client) AddPageAsText(ctx context.Context, notebookID, pageURL string) (string, error) {
	title, content, err := engine.FetchPage(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	if title == "" {
		title = pageURL
	}
	text := fmt.Sprintf("# %s\n\nSource: %s\n\n%s", title, pageURL, content)
	if err := c.AddTextSource(ctx, notebookID, text, engine.TruncateRunes(title, 200, "")); err != nil {
		return "", err
	}
	return title, nil
}

// DeleteSource removes one source.
func (c *Client) DeleteSource(ctx context.Context, notebookID, sourceID string) error {
	_, err := c.DeleteSources(ctx, notebookID, []string{sourceID})
	return err
}

// DeleteSources removes sources in batches of DeleteBatchSize.
// Batches already sent are not rolled back: on error the count of deleted ids is still returned.
func (c *Client) DeleteSources(ctx context.Context, notebookID string, sourceIDs []string) (int, error) {
	deleted := 0
	for start := 0; start < len(sourceIDs); start += DeleteBatchSize {
		end := min(start+DeleteBatchSize, len(sourceIDs))
		batch := make([]any, 0, end-start)
		for _, id := range sourceIDs[start:end] {
			batch = append(batch, []any{id})
		}
		if _, err := c.Invoke(ctx, rpcDeleteSources, []any{batch}, notebookPath(notebookID)); err != nil {
			engine.IncrSourcesDeleted(deleted)
			return deleted, fmt.Errorf("delete sources %d-%d of %d: %w", start+1, end, len(sourceIDs), err)
		}
		deleted += len(batch)
	}
	engine.IncrSourcesDeleted(deleted)
	return deleted, nil
}

// CheckFreshness asks whether a drive-backed source is up to date.
// Any failure maps to nil (unknown), which callers must treat as "skip".
func (c *Client) CheckFreshness(ctx context.Context, notebookID, sourceID string) *bool {
	payload, err := c.call(ctx, rpcCheckFreshness, []any{nil, []any{sourceID}, []any{2}}, notebookPath(notebookID))
	if err != nil {
		slog.Debug("notebooklm: freshness unknown", slog.String("source", sourceID), slog.Any("error", err))
		return nil
	}
	return ParseFreshness(payload)
}

// SyncDriveSource re-imports a drive-backed source.
func (c *Client) SyncDriveSource(ctx context.Context, notebookID, sourceID string) error {
	if _, err := c.Invoke(ctx, rpcSyncDrive, []any{nil, []any{sourceID}, []any{2}}, notebookPath(notebookID)); err != nil {
		return fmt.Errorf("sync source %s: %w", sourceID, err)
	}
	return nil
}

// SyncReport summarizes SyncDriveSources.
type SyncReport struct {
	Total   int `json:"total"`
	Fresh   int `json:"fresh"`
	Synced  int `json:"synced"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// SyncDriveSources checks every syncable source and re-imports the stale ones.
// Sources with unknown freshness are skipped.
func (c *Client) SyncDriveSources(ctx context.Context, notebookID string) (SyncReport, error) {
	nb, err := c.GetNotebook(ctx, notebookID)
	if err != nil {
		return SyncReport{}, err
	}
	var rep SyncReport
	for _, s := range nb.Sources {
		if !s.CanSync {
			continue
		}
		rep.Total++
		fresh := c.CheckFreshness(ctx, notebookID, s.ID)
		switch {
		case fresh == nil:
			rep.Skipped++
		case *fresh:
			rep.Fresh++
		default:
			if err := c.SyncDriveSource(ctx, notebookID, s.ID); err != nil {
				slog.Warn("notebooklm: drive sync failed", slog.String("source", s.ID), slog.Any("error", err))
				rep.Errors++
				continue
			}
			rep.Synced++
		}
	}
	slog.Info("notebooklm: drive sync", slog.String("notebook", notebookID),
		slog.Int("total", rep.Total), slog.Int("synced", rep.Synced), slog.Int("skipped", rep.Skipped))
	return rep, nil
}

var postMessageRe = regexp.MustCompile(`postMessage\('([^']*)'\s*,\s*'https:`)

// ListAccounts returns the Google accounts signed in with the client's cookies.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	u := c.accountsURL + "/ListAccounts?json=standard&source=ogb&md=1&cc=1&mn=1&mo=1&gpsia=1&listPages=1"
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", engine.UserAgentChrome)
	if c.cookies != "" {
		req.Header.Set("Cookie", c.cookies)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, timeoutOr(ctx, callCtx, "list accounts", engine.WrapError(engine.CodeNetworkError, "list accounts", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, engine.Rejected("list accounts", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, engine.WrapError(engine.CodeNetworkError, "read accounts", err)
	}
	return parseAccountsResponse(string(body))
}

// parseAccountsResponse handles the postMessage('...') wrapper with \xNN escapes.
func parseAccountsResponse(text string) ([]Account, error) {
	m := postMessageRe.FindStringSubmatch(text)
	if m == nil {
		return nil, engine.NewError(engine.CodeMalformedResponse, "accounts response has no postMessage payload")
	}
	decoded := strings.NewReplacer(`\x5b`, "[", `\x5d`, "]", `\x22`, `"`).Replace(m[1])
	data, err := decodeJSON(decoded)
	if err != nil {
		return nil, engine.WrapError(engine.CodeMalformedResponse, "decode accounts", err)
	}
	return ParseAccounts(data), nil
}
