package youtube

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_nlm/internal/engine"
)

// threePages serves roots r1..r6 over three root pages; every root has a
// reply page with two replies.
func threePages() *fakeFetcher {
	f := newFakeFetcher()
	f.pages["p1"] = rootPage(thread("r1", "rep-r1"), thread("r2", "rep-r2"), contItem("p2"))
	f.pages["p2"] = rootPage(thread("r3", "rep-r3"), thread("r4", "rep-r4"), contItem("p3"))
	f.pages["p3"] = rootPage(thread("r5", "rep-r5"), thread("r6", "rep-r6"))
	for _, id := range []string{"r1", "r2", "r3", "r4", "r5", "r6"} {
		f.pages["rep-"+id] = replyPage(id, replyItem(id+".a"), replyItem(id+".b"))
	}
	return f
}

func ids(cs []*Comment) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestCrawlAllRootsThenReplies(t *testing.T) {
	f := threePages()
	var phases []string
	c := &Crawler{Fetcher: f}

	got, err := c.Crawl(context.Background(), "p1", CrawlOptions{Mode: ModeTop, IncludeReplies: true}, func(p Progress) {
		if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
			phases = append(phases, p.Phase)
		}
	})
	require.NoError(t, err)
	require.Equal(t, []string{"r1", "r2", "r3", "r4", "r5", "r6"}, ids(got))
	for _, cm := range got {
		require.Len(t, cm.Replies, 2, cm.ID)
		assert.Equal(t, cm.ID+".a", cm.Replies[0].ID)
		assert.Equal(t, cm.ID+".b", cm.Replies[1].ID)
		assert.Equal(t, 2, cm.TotalReplyCount)
		assert.Equal(t, 1200, cm.LikeCount)
	}
	assert.Equal(t, []string{"p1", "p2", "p3", "rep-r1", "rep-r2", "rep-r3", "rep-r4", "rep-r5", "rep-r6"}, f.fetched())
	assert.Equal(t, []string{PhaseFetchingComments, PhaseFetchingReplies}, phases)
}

var rangeRE = regexp.MustCompile(`(?m)^comments: (\d+)–(\d+)$`)

func TestCrawlThenChunkProducesRangedParts(t *testing.T) {
	c := &Crawler{Fetcher: threePages()}
	comments, err := c.Crawl(context.Background(), "p1", CrawlOptions{IncludeReplies: true}, nil)
	require.NoError(t, err)

	meta := VideoMetadata{VideoID: "abcdefghijk", Title: "Demo", ChannelTitle: "Chan", ViewCount: 1234567}
	docs := FormatDocuments(meta, comments, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), 60)
	require.GreaterOrEqual(t, len(docs), 2)

	assert.Contains(t, docs[0].Text, "**Views:** 1,234,567")
	assert.Contains(t, docs[0].Text, "**Parsed comments:** 6 comments, 12 replies")
	assert.Contains(t, docs[0].Text, "**Parsed at:** 04.03.2026")
	assert.Equal(t, "Comments: Demo (Part 1)", docs[0].Title)

	next := 0
	for i, d := range docs[1:] {
		assert.Contains(t, d.Text, "Part "+strconv.Itoa(i+2)+" of "+strconv.Itoa(len(docs)))
		m := rangeRE.FindStringSubmatch(d.Text)
		require.NotNil(t, m, d.Text)
		first, _ := strconv.Atoi(m[1])
		last, _ := strconv.Atoi(m[2])
		if next != 0 {
			assert.Equal(t, next, first)
		}
		assert.GreaterOrEqual(t, last, first)
		next = last + 1
	}
	assert.Equal(t, 7, next)

	for _, cm := range comments {
		block := formatThread(cm)
		holders := 0
		for _, d := range docs {
			if strings.Contains(d.Text, block) {
				holders++
			}
		}
		assert.Equal(t, 1, holders, "thread %s must sit in exactly one part", cm.ID)
	}
}

func TestCrawlLimitWithoutReplies(t *testing.T) {
	f := threePages()
	c := &Crawler{Fetcher: f}

	got, err := c.Crawl(context.Background(), "p1", CrawlOptions{MaxRootComments: 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "r3"}, ids(got))
	assert.Equal(t, []string{"p1", "p2"}, f.fetched())
	for _, cm := range got {
		assert.Empty(t, cm.Replies)
	}
}

func TestCrawlLimitStillFetchesRepliesForKeptRoots(t *testing.T) {
	f := threePages()
	c := &Crawler{Fetcher: f}

	got, err := c.Crawl(context.Background(), "p1", CrawlOptions{MaxRootComments: 3, IncludeReplies: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "r3"}, ids(got))
	for _, cm := range got {
		assert.Len(t, cm.Replies, 2)
	}
	assert.Equal(t, []string{"p1", "p2", "rep-r1", "rep-r2", "rep-r3"}, f.fetched())
}

func TestCrawlDeduplicatesOverlappingPages(t *testing.T) {
	f := newFakeFetcher()
	f.pages["p1"] = rootPage(thread("r1", ""), thread("r2", ""), contItem("p2"))
	f.pages["p2"] = rootPage(thread("r2", ""), thread("r3", ""), buttonContItem("p1"))
	c := &Crawler{Fetcher: f}

	got, err := c.Crawl(context.Background(), "p1", CrawlOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "r3"}, ids(got))
	assert.Equal(t, []string{"p1", "p2"}, f.fetched(), "a token already used is never fetched again")
}

func TestCrawlDropsOrphanReplies(t *testing.T) {
	f := newFakeFetcher()
	f.pages["p1"] = rootPage(thread("r1", "rep-r1"))
	f.pages["rep-r1"] = replyPage("r1", replyItem("r1.a"), replyItem("zz.b"))
	c := &Crawler{Fetcher: f}

	got, err := c.Crawl(context.Background(), "p1", CrawlOptions{IncludeReplies: true}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Replies, 1)
	assert.Equal(t, "r1.a", got[0].Replies[0].ID)
}

func TestCrawlCancelReturnsPartialResult(t *testing.T) {
	f := threePages()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.onFetch = func(token string) {
		if token == "p2" {
			cancel()
		}
	}
	c := &Crawler{Fetcher: f}

	got, err := c.Crawl(ctx, "p1", CrawlOptions{IncludeReplies: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, ids(got))
	assert.Equal(t, []string{"p1", "p2"}, f.fetched())
}

func TestCrawlPageFailureAborts(t *testing.T) {
	f := threePages()
	f.errs["p2"] = engine.NewError(engine.CodeNetworkError, "InnerTube API error: HTTP 502")
	c := &Crawler{Fetcher: f}

	got, err := c.Crawl(context.Background(), "p1", CrawlOptions{IncludeReplies: true}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrNetwork))
	assert.Equal(t, []string{"r1", "r2"}, ids(got))
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeNewest, ParseMode(" Newest "))
	assert.Equal(t, ModeTop, ParseMode(""))
	assert.True(t, ModeTop.DefaultIncludeReplies())
	assert.False(t, ModeNewest.DefaultIncludeReplies())
}
