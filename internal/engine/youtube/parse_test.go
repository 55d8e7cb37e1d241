package youtube

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entity(id, author, text, likes string) map[string]any {
	return obj("payload", obj("commentEntityPayload", obj(
		"properties", obj("commentId", id, "content", obj("content", text), "publishedTime", "1 year ago"),
		"author", obj("displayName", author),
		"toolbar", obj("likeCountNotliked", likes),
	)))
}

func TestParsePageEntityMutations(t *testing.T) {
	resp := obj(
		"frameworkUpdates", obj("entityBatchUpdate", obj("mutations", arr(
			entity("Ugx1", "@alice", "first!", "15 тыс."),
			entity("Ugx1.r9", "@bob", "reply", ""),
			obj("payload", obj("engagementToolbarStateEntityPayload", obj())),
		))),
		"onResponseReceivedEndpoints", arr(obj("reloadContinuationItemsCommand", obj(
			"targetId", "engagement-panel-comments-section",
			"continuationItems", arr(
				obj("commentThreadRenderer", obj(
					"commentViewModel", obj("commentViewModel", obj("commentId", "Ugx1")),
					"replies", obj("commentRepliesRenderer", obj(
						"viewReplies", obj("buttonRenderer", obj("text", obj("content", "1,024 replies"))),
						"subThreads", arr(contItem("reply-tok")),
					)),
				)),
				contItem("next-tok"),
			),
		))),
	)

	p := ParsePage(resp)
	require.Len(t, p.Records, 2)
	assert.Equal(t, Record{ID: "Ugx1", Author: "@alice", Text: "first!", LikeCount: 15000, PublishedAt: "1 year ago", ReplyCount: 1024}, p.Records[0])
	assert.True(t, p.Records[1].IsReply)

	assert.Equal(t, []Continuation{
		{Token: "reply-tok", Kind: KindReply, ParentID: "Ugx1"},
		{Token: "next-tok", Kind: KindRoot},
	}, p.Continuations)
}

func TestParsePageReplyRegion(t *testing.T) {
	p := ParsePage(replyPage("Ugx1",
		replyItem("Ugx1.a"),
		obj("commentRenderer", obj("commentId", "plainid", "contentText", obj("simpleText", "hi"))),
		buttonContItem("more-replies"),
		buttonContItem("more-replies"),
	))

	require.Len(t, p.Records, 2)
	assert.True(t, p.Records[0].IsReply)
	assert.True(t, p.Records[1].IsReply, "region marks replies even without a separator")
	assert.Equal(t, "hi", p.Records[1].Text)
	assert.Equal(t, []Continuation{{Token: "more-replies", Kind: KindReply, ParentID: "Ugx1"}}, p.Continuations)
}

func TestParsePageToleratesGarbage(t *testing.T) {
	assert.Empty(t, ParsePage(nil).Records)
	p := ParsePage(obj(
		"onResponseReceivedEndpoints", "not a list",
		"frameworkUpdates", obj("entityBatchUpdate", obj("mutations", arr(42, "x", nil))),
	))
	assert.Empty(t, p.Records)
	assert.Empty(t, p.Continuations)
}
