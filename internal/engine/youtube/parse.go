package youtube

import (
	"strings"
)

// TokenKind tells the crawler which queue a continuation belongs to.
type TokenKind int

const (
	KindRoot TokenKind = iota
	KindReply
)

func (k TokenKind) String() string {
	if k == KindReply {
		return "reply"
	}
	return "root"
}

// Continuation is an opaque cursor for the next comment page.
// ParentID is set for reply continuations when the owning thread is known.
type Continuation struct {
	Token    string
	Kind     TokenKind
	ParentID string
}

// Record is one comment as it appears on a single page.
type Record struct {
	ID          string
	Author      string
	Text        string
	LikeCount   int
	PublishedAt string
	ReplyCount  int
	IsReply     bool
}

// Page is the parsed content of one InnerTube "next" response.
type Page struct {
	Records       []Record
	Continuations []Continuation
}

const replyRegionPrefix = "comment-replies-item"

// ParsePage extracts comment records and continuation tokens from a response.
// Entity mutations are read first so that thread renderers later on the same
// page can attach reply counts to them.
func ParsePage(resp map[string]any) Page {
	var p Page
	index := make(map[string]int)
	tokens := make(map[string]bool)

	addRecord := func(r Record) {
		if r.ID == "" {
			return
		}
		if _, dup := index[r.ID]; dup {
			return
		}
		index[r.ID] = len(p.Records)
		p.Records = append(p.Records, r)
	}
	addToken := func(tok string, kind TokenKind, parent string) {
		if tok == "" || tokens[tok] {
			return
		}
		tokens[tok] = true
		p.Continuations = append(p.Continuations, Continuation{Token: tok, Kind: kind, ParentID: parent})
	}

	for _, m := range list(dig(resp, "frameworkUpdates", "entityBatchUpdate", "mutations")) {
		payload := dig(m, "payload", "commentEntityPayload")
		if payload == nil {
			continue
		}
		id := str(dig(payload, "properties", "commentId"))
		likes := str(dig(payload, "toolbar", "likeCountNotliked"))
		if likes == "" {
			likes = str(dig(payload, "toolbar", "likeCountLiked"))
		}
		addRecord(Record{
			ID:          id,
			Author:      str(dig(payload, "author", "displayName")),
			Text:        str(dig(payload, "properties", "content", "content")),
			LikeCount:   ParseCount(likes),
			PublishedAt: str(dig(payload, "properties", "publishedTime")),
			IsReply:     strings.Contains(id, "."),
		})
	}

	for _, ep := range list(resp["onResponseReceivedEndpoints"]) {
		action := dig(ep, "reloadContinuationItemsCommand")
		if action == nil {
			action = dig(ep, "appendContinuationItemsAction")
		}
		if action == nil {
			continue
		}
		target := str(dig(action, "targetId"))
		replyRegion := strings.HasPrefix(target, replyRegionPrefix)
		regionParent := ""
		if replyRegion {
			regionParent = strings.TrimPrefix(strings.TrimPrefix(target, replyRegionPrefix), "-")
		}

		for _, item := range list(dig(action, "continuationItems")) {
			if thread := dig(item, "commentThreadRenderer"); thread != nil {
				threadID := ""
				if r, ok := parseCommentRenderer(dig(thread, "comment", "commentRenderer")); ok {
					addRecord(r)
					threadID = r.ID
				}
				if threadID == "" {
					threadID = str(dig(thread, "commentViewModel", "commentViewModel", "commentId"))
				}
				replies := dig(thread, "replies", "commentRepliesRenderer")
				if n := digitsOnly(textOf(dig(replies, "viewReplies", "buttonRenderer", "text"))); n > 0 {
					if i, ok := index[threadID]; ok {
						p.Records[i].ReplyCount = n
					}
				}
				entries := list(dig(replies, "contents"))
				if entries == nil {
					entries = list(dig(replies, "subThreads"))
				}
				for _, e := range entries {
					for _, tok := range itemTokens(dig(e, "continuationItemRenderer")) {
						addToken(tok, KindReply, threadID)
					}
				}
			}

			if r, ok := parseCommentRenderer(dig(item, "commentRenderer")); ok {
				r.IsReply = replyRegion || strings.Contains(r.ID, ".")
				addRecord(r)
			}

			if cir := dig(item, "continuationItemRenderer"); cir != nil {
				kind, parent := KindRoot, ""
				if replyRegion {
					kind, parent = KindReply, regionParent
				}
				for _, tok := range itemTokens(cir) {
					addToken(tok, kind, parent)
				}
			}
		}
	}
	return p
}

// parseCommentRenderer reads the legacy commentRenderer shape.
func parseCommentRenderer(v any) (Record, bool) {
	id := str(dig(v, "commentId"))
	if id == "" {
		return Record{}, false
	}
	published := ""
	if runs := list(dig(v, "publishedTimeText", "runs")); len(runs) > 0 {
		published = str(dig(runs[0], "text"))
	}
	return Record{
		ID:          id,
		Author:      str(dig(v, "authorText", "simpleText")),
		Text:        textOf(dig(v, "contentText")),
		LikeCount:   ParseCount(str(dig(v, "voteCount", "simpleText"))),
		PublishedAt: published,
		ReplyCount:  int(num(dig(v, "replyCount"))),
		IsReply:     strings.Contains(id, "."),
	}, true
}

// itemTokens returns the endpoint token and the button token of a
// continuationItemRenderer, either of which may be absent.
func itemTokens(cir any) []string {
	if cir == nil {
		return nil
	}
	var out []string
	if tok := str(dig(cir, "continuationEndpoint", "continuationCommand", "token")); tok != "" {
		out = append(out, tok)
	}
	if tok := str(dig(cir, "button", "buttonRenderer", "command", "continuationCommand", "token")); tok != "" {
		out = append(out, tok)
	}
	return out
}

// --- generic accessors over decoded JSON ---

func dig(v any, keys ...string) any {
	for _, k := range keys {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[k]
	}
	return v
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func list(v any) []any {
	l, _ := v.([]any)
	return l
}

func num(v any) float64 {
	f, _ := v.(float64)
	return f
}

// textOf flattens {simpleText}, {runs:[{text}]} and {content} text shapes.
func textOf(v any) string {
	if s := str(dig(v, "simpleText")); s != "" {
		return s
	}
	if s := str(dig(v, "content")); s != "" {
		return s
	}
	var b strings.Builder
	for _, r := range list(dig(v, "runs")) {
		b.WriteString(str(dig(r, "text")))
	}
	return b.String()
}

func digitsOnly(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n = n*10 + int(r-'0')
		}
	}
	return n
}
