package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deltaTexts(deltas []Delta, kind DeltaKind) string {
	var out string
	for _, d := range deltas {
		if d.Kind == kind {
			out += d.Text
		}
	}
	return out
}

func TestAggregator_PlainTextNoThinking(t *testing.T) {
	agg := NewAggregator()
	deltas := agg.Feed("hello world")
	require.Len(t, deltas, 1)
	assert.Equal(t, DeltaText, deltas[0].Kind)
	assert.Equal(t, "hello world", deltas[0].Text)
	assert.Equal(t, "hello world", agg.Text())
	assert.False(t, agg.Interrupted())

	final := agg.Close()
	assert.Equal(t, DeltaDone, final.Kind)
	assert.Equal(t, "hello world", final.Text)
}

func TestAggregator_SingleChunkWithThinkTags(t *testing.T) {
	agg := NewAggregator()
	deltas := agg.Feed("before<think>reasoning here</think>after")

	require.Len(t, deltas, 3)
	assert.Equal(t, DeltaText, deltas[0].Kind)
	assert.Equal(t, "before", deltas[0].Text)
	assert.Equal(t, DeltaThinking, deltas[1].Kind)
	assert.Equal(t, "reasoning here", deltas[1].Text)
	assert.Equal(t, DeltaText, deltas[2].Kind)
	assert.Equal(t, "after", deltas[2].Text)

	assert.Equal(t, "beforeafter", agg.Text())
	assert.Equal(t, "reasoning here", agg.ThinkingText())
	assert.False(t, agg.Interrupted())
	assert.NotEmpty(t, agg.ThinkingID())

	final := agg.Close()
	assert.Equal(t, DeltaDone, final.Kind)
}

func TestAggregator_ThinkingContentSplitAcrossFeedCalls(t *testing.T) {
	// The open and close tags each arrive whole in a single Feed call, but
	// the reasoning content between them is chunked across several calls -
	// the streaming case Aggregator is built for.
	agg := NewAggregator()
	var all []Delta
	all = append(all, agg.Feed("before<think>")...)
	all = append(all, agg.Feed("some rea")...)
	all = append(all, agg.Feed("soning")...)
	all = append(all, agg.Feed("</think> end")...)

	assert.Equal(t, "before end", agg.Text())
	assert.Equal(t, "some reasoning", agg.ThinkingText())
	assert.Equal(t, "some reasoning", deltaTexts(all, DeltaThinking))
	assert.False(t, agg.Interrupted())

	final := agg.Close()
	assert.Equal(t, DeltaDone, final.Kind)
}

func TestAggregator_InterruptedWithoutClosingTag(t *testing.T) {
	agg := NewAggregator()
	agg.Feed("before<think>unterminated reasoning")

	assert.True(t, agg.Interrupted())
	assert.Equal(t, "unterminated reasoning", agg.ThinkingText())

	final := agg.Close()
	assert.Equal(t, DeltaThinkingInterrupt, final.Kind)
	assert.Equal(t, "unterminated reasoning", final.Text)
}

func TestAggregator_MultipleThinkingBlocksShareOneID(t *testing.T) {
	agg := NewAggregator()
	agg.Feed("<think>first</think>mid<think>second</think>")

	assert.Equal(t, "firstsecond", agg.ThinkingText())
	assert.NotEmpty(t, agg.ThinkingID())
	assert.False(t, agg.Interrupted())
}

func TestAggregator_FeedThinkingDeltaNativeField(t *testing.T) {
	agg := NewAggregator()
	deltas := agg.FeedThinkingDelta("native reasoning chunk")
	require.Len(t, deltas, 1)
	assert.Equal(t, DeltaThinking, deltas[0].Kind)
	assert.Equal(t, "native reasoning chunk", agg.ThinkingText())
	assert.NotEmpty(t, agg.ThinkingID())

	assert.Nil(t, agg.FeedThinkingDelta(""))
}

func TestAggregator_EmptyThinkingBlockProducesNoThinkingDelta(t *testing.T) {
	agg := NewAggregator()
	deltas := agg.Feed("a<think></think>b")
	assert.Equal(t, "ab", agg.Text())
	for _, d := range deltas {
		assert.NotEqual(t, DeltaThinking, d.Kind)
	}
	assert.False(t, agg.Interrupted())
}
