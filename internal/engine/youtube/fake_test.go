package youtube

import (
	"context"
	"fmt"
	"sync"
)

// fakeFetcher serves canned pages by token.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]map[string]any
	errs    map[string]error
	calls   []string
	onFetch func(token string)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]map[string]any{}, errs: map[string]error{}}
}

func (f *fakeFetcher) FetchPage(_ context.Context, token string) (map[string]any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, token)
	hook := f.onFetch
	page, ok := f.pages[token]
	err := f.errs[token]
	f.mu.Unlock()

	if hook != nil {
		hook(token)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("unexpected token %q", token)
	}
	return page, nil
}

func (f *fakeFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// --- InnerTube response builders (shapes as decoded by encoding/json) ---

func obj(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return m
}

func arr(items ...any) []any { return items }

func runs(text string) map[string]any {
	return obj("runs", arr(obj("text", text)))
}

func commentRenderer(id string) map[string]any {
	return obj(
		"commentId", id,
		"authorText", obj("simpleText", "author "+id),
		"contentText", runs("text of "+id),
		"voteCount", obj("simpleText", "1.2K"),
		"publishedTimeText", runs("2 days ago"),
	)
}

func contItem(token string) map[string]any {
	return obj("continuationItemRenderer",
		obj("continuationEndpoint", obj("continuationCommand", obj("token", token))))
}

func buttonContItem(token string) map[string]any {
	return obj("continuationItemRenderer",
		obj("button", obj("buttonRenderer", obj("command", obj("continuationCommand", obj("token", token))))))
}

// thread builds a legacy commentThreadRenderer; replyToken "" means no replies.
func thread(id, replyToken string) map[string]any {
	t := obj("comment", obj("commentRenderer", commentRenderer(id)))
	if replyToken != "" {
		t["replies"] = obj("commentRepliesRenderer", obj(
			"viewReplies", obj("buttonRenderer", obj("text", runs("2 replies"))),
			"contents", arr(contItem(replyToken)),
		))
	}
	return obj("commentThreadRenderer", t)
}

func replyItem(id string) map[string]any {
	return obj("commentRenderer", commentRenderer(id))
}

func page(target string, items ...map[string]any) map[string]any {
	list := make([]any, len(items))
	for i, it := range items {
		list[i] = it
	}
	return obj("onResponseReceivedEndpoints", arr(
		obj("appendContinuationItemsAction", obj("targetId", target, "continuationItems", list)),
	))
}

func rootPage(items ...map[string]any) map[string]any {
	return page("comments-section", items...)
}

func replyPage(parent string, items ...map[string]any) map[string]any {
	return page("comment-replies-item-"+parent, items...)
}
