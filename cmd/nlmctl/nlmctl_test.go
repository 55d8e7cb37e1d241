package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_nlm/internal/app"
	"github.com/anatolykoptev/go_nlm/internal/engine/crawl"
	"github.com/anatolykoptev/go_nlm/internal/engine/history"
	"github.com/anatolykoptev/go_nlm/internal/engine/youtube"
)

func TestReadURLs(t *testing.T) {
	in := strings.NewReader("https://a\n\n# comment\n  https://b  \n")
	got, err := readURLs([]string{"https://x"}, "-", in)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x", "https://a", "https://b"}, got)

	got, err = readURLs([]string{"https://x"}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x"}, got)

	_, err = readURLs(nil, "/does/not/exist", nil)
	assert.Error(t, err)
}

func TestCommentsRequest(t *testing.T) {
	f := commentsFlags{notebook: "nb", mode: "newest", limit: 10, replies: true}

	req := f.request("dQw4w9WgXcQ", false)
	assert.Equal(t, youtube.ModeNewest, req.Mode)
	assert.Equal(t, 10, req.Limit)
	assert.Nil(t, req.IncludeReplies, "mode default applies when the flag is not set")

	req = f.request("dQw4w9WgXcQ", true)
	require.NotNil(t, req.IncludeReplies)
	assert.True(t, *req.IncludeReplies)
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"notebooks", "sources", "add", "text", "pdf", "delete", "sync", "comments", "queue", "history"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
	comments, _, err := root.Find([]string{"comments"})
	require.NoError(t, err)
	assert.NotNil(t, comments.Flags().Lookup("notebook"))
}

type slowVideos struct{ release chan struct{} }

func (s slowVideos) Metadata(context.Context, string) (youtube.VideoMetadata, error) {
	return youtube.VideoMetadata{Title: "Demo", CommentCount: 1}, nil
}

func (s slowVideos) Comments(ctx context.Context, _ string, _ youtube.CrawlOptions, onProgress func(youtube.Progress)) ([]*youtube.Comment, error) {
	onProgress(youtube.Progress{Fetched: 1, Phase: youtube.PhaseFetchingComments})
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return []*youtube.Comment{{ID: "c1", Text: "hi"}}, nil
}

type nopPublisher struct{}

func (nopPublisher) AddTextSource(context.Context, string, string, string) error { return nil }

func TestFollowUntilDone(t *testing.T) {
	v := slowVideos{release: make(chan struct{})}
	o := crawl.New(v, nopPublisher{})
	_, err := o.Start(context.Background(), crawl.Request{Video: "dQw4w9WgXcQ", NotebookID: "nb"})
	require.NoError(t, err)

	time.AfterFunc(20*time.Millisecond, func() { close(v.release) })
	var log bytes.Buffer
	st := follow(context.Background(), o, 5*time.Millisecond, &log)
	assert.Equal(t, crawl.PhaseDone, st.Progress.Phase)
	assert.Contains(t, log.String(), "done")

	var out bytes.Buffer
	printOutcome(&out, st)
	assert.Equal(t, "Demo: 1 of 1 comments in 1 part(s)\n", out.String())
}

func TestFollowCancelsOnInterrupt(t *testing.T) {
	v := slowVideos{release: make(chan struct{})}
	o := crawl.New(v, nopPublisher{})
	_, err := o.Start(context.Background(), crawl.Request{Video: "dQw4w9WgXcQ", NotebookID: "nb"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	var log bytes.Buffer
	st := follow(ctx, o, 5*time.Millisecond, &log)
	assert.Equal(t, crawl.PhaseCancelled, st.Progress.Phase)
	assert.Contains(t, log.String(), "cancelling")
}

func TestRecordKeepsDetailWithError(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "h.db"), 0)
	require.NoError(t, err)
	c := &cli{app: &app.App{Store: store}}
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	c.record(cmd, history.Entry{Action: history.ActionDeleteSources, NotebookID: "nb", Detail: "deleted 20 of 45 sources"},
		errors.New("batch 2 rejected"))

	entries, err := store.ListHistory(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.ActionError, entries[0].Action)
	assert.Equal(t, "deleted 20 of 45 sources: batch 2 rejected", entries[0].Detail)

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	require.NoError(t, store.Close())
	c.record(cmd, history.Entry{Action: history.ActionAddText, NotebookID: "nb"}, nil)
	assert.Contains(t, logs.String(), "history: write failed")
}
