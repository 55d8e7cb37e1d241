package nlmserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_nlm/internal/engine/crawl"
	"github.com/anatolykoptev/go_nlm/internal/engine/history"
	"github.com/anatolykoptev/go_nlm/internal/engine/notebooklm"
	"github.com/anatolykoptev/go_nlm/internal/engine/youtube"
)

type fakeNotebooks struct {
	mu       sync.Mutex
	authUser int
	added    []string
	texts    []string
	pdfs     []string
	failText bool

	// deleteErr, when set, fails DeleteSources after deleteN sources.
	deleteN   int
	deleteErr error
}

func (f *fakeNotebooks) ListAccounts(context.Context) ([]notebooklm.Account, error) {
	return []notebooklm.Account{{Email: "a@example.com", AuthUser: 0}, {Email: "b@example.com", AuthUser: 1}}, nil
}
func (f *fakeNotebooks) SetAccount(i int) { f.mu.Lock(); f.authUser = i; f.mu.Unlock() }
func (f *fakeNotebooks) AuthUser() int    { f.mu.Lock(); defer f.mu.Unlock(); return f.authUser }
func (f *fakeNotebooks) NotebookURL(id string) string {
	return "https://notebooklm.example/notebook/" + id
}
func (f *fakeNotebooks) ListNotebooks(context.Context) ([]notebooklm.Notebook, error) {
	return []notebooklm.Notebook{{ID: "nb1", Title: "One", SourceCount: 2}}, nil
}
func (f *fakeNotebooks) CreateNotebook(_ context.Context, title, emoji string) (notebooklm.Notebook, error) {
	return notebooklm.Notebook{ID: "new", Title: title, Emoji: emoji}, nil
}
func (f *fakeNotebooks) GetNotebook(_ context.Context, id string) (notebooklm.NotebookDetail, error) {
	return notebooklm.NotebookDetail{ID: id, Title: "One", Sources: []notebooklm.Source{{ID: "s1", Type: notebooklm.SourceTypeOf(5)}}}, nil
}
func (f *fakeNotebooks) AddSource(_ context.Context, _, u string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, u)
	return nil
}
func (f *fakeNotebooks) AddSources(_ context.Context, _ string, urls []string) (notebooklm.AddResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res notebooklm.AddResult
	for _, u := range urls {
		f.added = append(f.added, u)
		if notebooklm.IsVideoURL(u) {
			res.Video++
		} else {
			res.Regular++
		}
	}
	return res, nil
}
func (f *fakeNotebooks) AddTextSource(_ context.Context, _, text, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failText {
		return errors.New("quota exceeded")
	}
	f.texts = append(f.texts, text)
	return nil
}
func (f *fakeNotebooks) AddPageAsText(_ context.Context, _, u string) (string, error) {
	return "Page " + u, nil
}
func (f *fakeNotebooks) AddPDFSource(_ context.Context, _, name string, _ []byte) (notebooklm.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pdfs = append(f.pdfs, name)
	return notebooklm.UploadResult{SourceID: "pdf1", Filename: name}, nil
}
func (f *fakeNotebooks) DeleteSources(_ context.Context, _ string, ids []string) (int, error) {
	if f.deleteErr != nil {
		return f.deleteN, f.deleteErr
	}
	return len(ids), nil
}
func (f *fakeNotebooks) SyncDriveSources(context.Context, string) (notebooklm.SyncReport, error) {
	return notebooklm.SyncReport{Total: 2, Fresh: 1, Synced: 1}, nil
}

type fakeVideos struct{}

func (fakeVideos) Metadata(_ context.Context, id string) (youtube.VideoMetadata, error) {
	return youtube.VideoMetadata{VideoID: id, Title: "Demo", CommentCount: 2}, nil
}

func (fakeVideos) Comments(_ context.Context, _ string, _ youtube.CrawlOptions, onProgress func(youtube.Progress)) ([]*youtube.Comment, error) {
	onProgress(youtube.Progress{Fetched: 2, Phase: youtube.PhaseFetchingComments})
	return []*youtube.Comment{{ID: "c1", Text: "first"}, {ID: "c2", Text: "second"}}, nil
}

type harness struct {
	nlm    *fakeNotebooks
	store  *history.Store
	crawls *crawl.Orchestrator
	count  int
	cs     *mcp.ClientSession
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	store, err := history.Open(filepath.Join(t.TempDir(), "h.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := &harness{nlm: &fakeNotebooks{}, store: store}
	h.crawls = crawl.New(fakeVideos{}, h.nlm, crawl.WithRecorder(store))

	server := mcp.NewServer(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
	h.count = RegisterTools(server, Deps{NLM: h.nlm, Crawls: h.crawls, Videos: fakeVideos{}, Store: store, QueueDelay: time.Millisecond})

	st, ct := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0"}, nil)
	h.cs, err = client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { h.cs.Close() })
	return h
}

// call invokes a tool and decodes its structured output into out.
func (h *harness) call(t *testing.T, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	res, err := h.cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	if out != nil && !res.IsError {
		raw, err := json.Marshal(res.StructuredContent)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out))
	}
	return res
}

func TestRegisterToolsListsEveryTool(t *testing.T) {
	h := newHarness(t)
	res, err := h.cs.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)
	assert.Len(t, res.Tools, h.count)
	assert.Equal(t, 21, h.count)
}

func TestRegisterToolsWithoutStore(t *testing.T) {
	server := mcp.NewServer(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
	assert.Equal(t, 11, RegisterTools(server, Deps{NLM: &fakeNotebooks{}}))
}

func TestAccountTools(t *testing.T) {
	h := newHarness(t)
	var acc AccountsResult
	h.call(t, "nlm_set_account", map[string]any{"authuser": 1}, &acc)
	assert.Equal(t, 1, acc.Current)

	h.call(t, "nlm_list_accounts", nil, &acc)
	assert.Equal(t, 1, acc.Current)
	require.Len(t, acc.Accounts, 2)
	assert.Equal(t, "b@example.com", acc.Accounts[1].Email)
}

func TestNotebookTools(t *testing.T) {
	h := newHarness(t)
	var nb NotebookResult
	h.call(t, "nlm_create_notebook", map[string]any{"title": "Research"}, &nb)
	assert.Equal(t, "new", nb.ID)
	assert.Equal(t, "https://notebooklm.example/notebook/new", nb.URL)

	h.call(t, "nlm_get_notebook", map[string]any{"notebook_id": "nb1"}, &nb)
	require.Len(t, nb.Sources, 1)
	assert.Equal(t, notebooklm.SourceTypeOf(5), nb.Sources[0].Type)

	res := h.call(t, "nlm_create_notebook", map[string]any{"title": " "}, nil)
	assert.True(t, res.IsError)
}

func TestAddSourcesRecordsHistory(t *testing.T) {
	h := newHarness(t)
	var out AddSourcesResult
	h.call(t, "nlm_add_sources", map[string]any{
		"notebook_id": "nb1",
		"urls":        []string{"https://example.com/a", " ", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
	}, &out)
	assert.Equal(t, AddSourcesResult{Added: 2, Regular: 1, Video: 1}, out)

	entries, err := h.store.ListHistory(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, history.ActionAddSource, entries[0].Action)
}

func TestAddTextFailureIsToolError(t *testing.T) {
	h := newHarness(t)
	h.nlm.failText = true
	res := h.call(t, "nlm_add_text_source", map[string]any{"notebook_id": "nb1", "text": "hello"}, nil)
	assert.True(t, res.IsError)

	entries, err := h.store.ListHistory(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.ActionError, entries[0].Action)
	assert.Contains(t, entries[0].Detail, "quota exceeded")
}

func TestAddPDFFromBase64(t *testing.T) {
	h := newHarness(t)
	var out AddPDFResult
	h.call(t, "nlm_add_pdf", map[string]any{
		"notebook_id": "nb1",
		"filename":    "Report: Q1.pdf",
		"base64":      base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
	}, &out)
	assert.Equal(t, "pdf1", out.SourceID)
	assert.Equal(t, 8, out.Bytes)
	assert.Equal(t, []string{"Report Q1.pdf"}, h.nlm.pdfs)

	res := h.call(t, "nlm_add_pdf", map[string]any{"notebook_id": "nb1"}, nil)
	assert.True(t, res.IsError)
}

func sourceIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("s%d", i)
	}
	return ids
}

func TestDeleteSources(t *testing.T) {
	h := newHarness(t)
	var out DeleteResult
	h.call(t, "nlm_delete_sources", map[string]any{"notebook_id": "nb1", "source_ids": sourceIDs(3)}, &out)
	assert.Equal(t, DeleteResult{Deleted: 3, Requested: 3}, out)

	res := h.call(t, "nlm_delete_sources", map[string]any{"notebook_id": "nb1", "source_ids": []string{" "}}, nil)
	assert.True(t, res.IsError)
}

func TestDeleteSourcesPartialFailureKeepsCount(t *testing.T) {
	h := newHarness(t)
	h.nlm.deleteN = 20
	h.nlm.deleteErr = errors.New("delete sources 21-40 of 45: HTTP 500")

	res := h.call(t, "nlm_delete_sources", map[string]any{"notebook_id": "nb1", "source_ids": sourceIDs(45)}, nil)
	require.True(t, res.IsError)

	var out DeleteResult
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, DeleteResult{Deleted: 20, Requested: 45}, out)

	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "deleted 20 of 45 sources")
	assert.Contains(t, text.Text, "HTTP 500")

	entries, err := h.store.ListHistory(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.ActionError, entries[0].Action)
	assert.Equal(t, "deleted 20 of 45 sources: delete sources 21-40 of 45: HTTP 500", entries[0].Detail)
}

func TestQueueTools(t *testing.T) {
	h := newHarness(t)
	var q QueueResult
	h.call(t, "queue_add", map[string]any{"urls": []string{"https://a", "https://b"}, "titles": []string{"A"}}, &q)
	assert.Equal(t, 2, q.Count)

	h.call(t, "queue_list", nil, &q)
	require.Len(t, q.Items, 2)
	assert.Equal(t, "A", q.Items[0].Title)

	var pr history.ProcessResult
	h.call(t, "queue_process", map[string]any{"notebook_id": "nb1"}, &pr)
	assert.Equal(t, history.ProcessResult{Processed: 2}, pr)
	assert.Equal(t, []string{"https://a", "https://b"}, h.nlm.added)

	h.call(t, "queue_list", nil, &q)
	assert.Zero(t, q.Count)

	var hist HistoryResult
	h.call(t, "history_list", map[string]any{"limit": 1}, &hist)
	require.Len(t, hist.Entries, 1)
	assert.Equal(t, "https://b", hist.Entries[0].URL)

	var cleared ClearResult
	h.call(t, "history_clear", nil, &cleared)
	assert.True(t, cleared.Cleared)
	h.call(t, "history_list", nil, &hist)
	assert.Empty(t, hist.Entries)
}

func TestCommentsTools(t *testing.T) {
	h := newHarness(t)

	res := h.call(t, "yt_comments_start", map[string]any{"video": "nope", "notebook_id": "nb1"}, nil)
	assert.True(t, res.IsError)
	res = h.call(t, "yt_comments_start", map[string]any{"video": "dQw4w9WgXcQ", "notebook_id": "nb1", "limit": -1}, nil)
	assert.True(t, res.IsError)

	var st CrawlStatus
	h.call(t, "yt_comments_start", map[string]any{"video": "https://youtu.be/dQw4w9WgXcQ", "notebook_id": "nb1"}, &st)
	assert.Equal(t, "dQw4w9WgXcQ", st.VideoID)
	assert.NotEmpty(t, st.StartedAt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := h.crawls.Wait(ctx)
	require.NoError(t, err)

	h.call(t, "yt_comments_status", nil, &st)
	assert.False(t, st.Active)
	assert.Equal(t, crawl.PhaseDone, st.Progress.Phase)
	require.NotNil(t, st.Result)
	assert.Equal(t, 2, st.Result.CommentCount)
	assert.Equal(t, "https://notebooklm.example/notebook/nb1", st.NotebookURL)
	assert.Len(t, h.nlm.texts, 1)

	var c CancelResult
	h.call(t, "yt_comments_cancel", nil, &c)
	assert.False(t, c.Cancelled)
}

func TestVideoInfo(t *testing.T) {
	h := newHarness(t)
	var meta youtube.VideoMetadata
	h.call(t, "yt_video_info", map[string]any{"video": "dQw4w9WgXcQ"}, &meta)
	assert.Equal(t, "Demo", meta.Title)
}
