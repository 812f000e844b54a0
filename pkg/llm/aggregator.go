package llm

import (
	"strings"

	"github.com/google/uuid"
)

// Aggregator accumulates a sequence of raw provider deltas into the
// separated text/thinking delta stream the Client interface promises,
// handling providers that inline `<think>...</think>` tags in plain text
// rather than exposing a distinct reasoning field. One Aggregator is used
// per streaming call; it is not safe for concurrent use.
type Aggregator struct {
	inThinking bool
	sawOpen    bool
	sawClose   bool
	text       strings.Builder
	thinking   strings.Builder
	thinkingID string
}

// NewAggregator creates an Aggregator for one streaming call.
func NewAggregator() *Aggregator { return &Aggregator{} }

const (
	thinkOpenTag  = "<think>"
	thinkCloseTag = "</think>"
)

// Feed consumes one raw chunk of provider output (which may contain
// open/close think tags anywhere within it; a thinking block may span
// several calls) and returns the Deltas it produces in order. Each tag is
// recognized only when it arrives whole within one chunk; a tag split
// across two calls is treated as ordinary content.
func (a *Aggregator) Feed(raw string) []Delta {
	var out []Delta
	remaining := raw
	for len(remaining) > 0 {
		if !a.inThinking {
			idx := strings.Index(remaining, thinkOpenTag)
			if idx < 0 {
				if remaining != "" {
					a.text.WriteString(remaining)
					out = append(out, Delta{Kind: DeltaText, Text: remaining})
				}
				remaining = ""
				continue
			}
			if idx > 0 {
				chunk := remaining[:idx]
				a.text.WriteString(chunk)
				out = append(out, Delta{Kind: DeltaText, Text: chunk})
			}
			a.inThinking = true
			a.sawOpen = true
			if a.thinkingID == "" {
				a.thinkingID = "thinking_" + uuid.NewString()[:8]
			}
			remaining = remaining[idx+len(thinkOpenTag):]
			continue
		}

		idx := strings.Index(remaining, thinkCloseTag)
		if idx < 0 {
			a.thinking.WriteString(remaining)
			if remaining != "" {
				out = append(out, Delta{Kind: DeltaThinking, Text: remaining})
			}
			remaining = ""
			continue
		}
		chunk := remaining[:idx]
		a.thinking.WriteString(chunk)
		if chunk != "" {
			out = append(out, Delta{Kind: DeltaThinking, Text: chunk})
		}
		a.sawClose = true
		a.inThinking = false
		remaining = remaining[idx+len(thinkCloseTag):]
	}
	return out
}

// FeedThinkingDelta processes a delta arriving through a provider-native
// reasoning field (not inline-tagged text).
func (a *Aggregator) FeedThinkingDelta(thinking string) []Delta {
	if thinking == "" {
		return nil
	}
	if a.thinkingID == "" {
		a.thinkingID = "thinking_" + uuid.NewString()[:8]
	}
	a.sawOpen = true
	a.thinking.WriteString(thinking)
	return []Delta{{Kind: DeltaThinking, Text: thinking}}
}

// Interrupted reports whether a thinking block was opened but never closed,
// per the spec's "closing delimiter may be absent on interrupt" edge case.
func (a *Aggregator) Interrupted() bool {
	return a.sawOpen && !a.sawClose
}

// ThinkingID returns the stable ID assigned to this call's thinking block,
// or "" if no thinking content was ever seen.
func (a *Aggregator) ThinkingID() string { return a.thinkingID }

// Text returns the accumulated normal-output text.
func (a *Aggregator) Text() string { return a.text.String() }

// ThinkingText returns the accumulated reasoning text.
func (a *Aggregator) ThinkingText() string { return a.thinking.String() }

// Close finalizes the aggregation, returning a terminal Delta reflecting
// whether the thinking block completed or was interrupted. It must be
// called exactly once, after the underlying stream ends.
func (a *Aggregator) Close() Delta {
	if a.Interrupted() {
		return Delta{Kind: DeltaThinkingInterrupt, Text: a.thinking.String()}
	}
	return Delta{Kind: DeltaDone, Text: a.text.String()}
}
