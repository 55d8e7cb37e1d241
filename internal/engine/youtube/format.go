package youtube

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/anatolykoptev/go_nlm/internal/engine"
	"github.com/anatolykoptev/go_nlm/internal/engine/chunker"
)

// Document is one text source ready to publish.
type Document struct {
	Title string
	Text  string
}

const dateLayout = "02.01.2006"

// FormatDocuments renders comments as markdown, one indivisible block per
// root comment, split into parts of at most maxWords words (soft limit).
func FormatDocuments(meta VideoMetadata, comments []*Comment, now time.Time, maxWords int) []Document {
	replies := 0
	for _, c := range comments {
		replies += len(c.Replies)
	}

	var h strings.Builder
	h.WriteString("# YouTube Comments\n\n")
	fmt.Fprintf(&h, "**Video:** %s\n", meta.Title)
	fmt.Fprintf(&h, "**Channel:** %s\n", meta.ChannelTitle)
	fmt.Fprintf(&h, "**Published:** %s\n", compactDate(meta.PublishedAt))
	fmt.Fprintf(&h, "**Views:** %s | **Likes:** %s\n", humanize.Comma(int64(meta.ViewCount)), humanize.Comma(int64(meta.LikeCount)))
	fmt.Fprintf(&h, "**Total comments:** %s\n", humanize.Comma(int64(meta.CommentCount)))
	fmt.Fprintf(&h, "**Parsed comments:** %d comments, %d replies\n", len(comments), replies)
	fmt.Fprintf(&h, "**Parsed at:** %s\n\n===\n", now.Format(dateLayout))

	blocks := make([]string, len(comments))
	for i, c := range comments {
		blocks[i] = formatThread(c)
	}

	parts := chunker.Split(h.String(), blocks, chunker.Options{
		MaxWords:  maxWords,
		Title:     "YouTube Comments",
		UnitLabel: "comments",
	})

	title := meta.Title
	if title == "" {
		title = meta.VideoID
	}
	docs := make([]Document, len(parts))
	for i, p := range parts {
		docs[i] = Document{Title: "Comments: " + title, Text: p.Text}
		if len(parts) > 1 {
			docs[i].Title = fmt.Sprintf("Comments: %s (Part %d)", title, p.Index)
		}
	}
	return docs
}

func formatThread(c *Comment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** | 👍%d | %s\n", engine.SanitizeText(c.Author), c.LikeCount, compactDate(c.PublishedAt))
	b.WriteString(engine.SanitizeText(c.Text))
	b.WriteByte('\n')
	for _, r := range c.Replies {
		fmt.Fprintf(&b, "  ↳ **%s** | 👍%d | %s\n", engine.SanitizeText(r.Author), r.LikeCount, compactDate(r.PublishedAt))
		fmt.Fprintf(&b, "  %s\n", engine.SanitizeText(r.Text))
	}
	return b.String()
}

// compactDate renders ISO timestamps as DD.MM.YYYY and passes relative
// strings ("2 years ago") and bare dates through unchanged.
func compactDate(s string) string {
	if s == "" || !strings.Contains(s, "T") {
		return s
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateLayout)
		}
	}
	return s
}
