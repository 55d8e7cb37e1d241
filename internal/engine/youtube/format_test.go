package youtube

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDocumentsSinglePart(t *testing.T) {
	meta := VideoMetadata{VideoID: "abcdefghijk", Title: "Demo", ChannelTitle: "Chan", PublishedAt: "2024-01-15", ViewCount: 1000, LikeCount: 42, CommentCount: 7}
	comments := []*Comment{{
		ID: "c1", Author: "Tom &amp; Jerry", Text: "line1\r\nline2", LikeCount: 3, PublishedAt: "2024-02-03T10:00:00Z",
		Replies: []Reply{{ID: "c1.a", Author: "Ann", Text: "yes", LikeCount: 0, PublishedAt: "1 day ago"}},
	}}

	docs := FormatDocuments(meta, comments, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), 0)
	require.Len(t, docs, 1)
	assert.Equal(t, "Comments: Demo", docs[0].Title)

	want := strings.Join([]string{
		"# YouTube Comments",
		"",
		"**Video:** Demo",
		"**Channel:** Chan",
		"**Published:** 2024-01-15",
		"**Views:** 1,000 | **Likes:** 42",
		"**Total comments:** 7",
		"**Parsed comments:** 1 comments, 1 replies",
		"**Parsed at:** 02.01.2026",
		"",
		"===",
		"**Tom & Jerry** | 👍3 | 03.02.2024",
		"line1",
		"line2",
		"  ↳ **Ann** | 👍0 | 1 day ago",
		"  yes",
		"",
	}, "\n")
	assert.Equal(t, want, docs[0].Text)
}

func TestFormatDocumentsTitleFallsBackToVideoID(t *testing.T) {
	docs := FormatDocuments(VideoMetadata{VideoID: "abcdefghijk"}, nil, time.Now(), 0)
	require.Len(t, docs, 1)
	assert.Equal(t, "Comments: abcdefghijk", docs[0].Title)
}

func TestCompactDate(t *testing.T) {
	assert.Equal(t, "", compactDate(""))
	assert.Equal(t, "3 weeks ago", compactDate("3 weeks ago"))
	assert.Equal(t, "31.12.2023", compactDate("2023-12-31T23:59:59+03:00"))
	assert.Equal(t, "not a Time", compactDate("not a Time"))
}
