// Package llm implements the Streaming LLM Adapter: uniform access to a
// single locally-hosted LLM backend across generate/stream/chat/structured
// modes, with reasoning-delta parsing and a schema-validated-or-manual
// fallback contract for structured output.
package llm

import "context"

// Role is a chat message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a chat-mode request.
type Message struct {
	Role    Role
	Content string
}

// Options controls a single generation call. Zero values fall back to the
// Client's configured defaults.
type Options struct {
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// DeltaKind distinguishes normal output tokens from reasoning tokens and
// stream lifecycle markers.
type DeltaKind string

const (
	DeltaText              DeltaKind = "text"
	DeltaThinking          DeltaKind = "thinking"
	DeltaThinkingInterrupt DeltaKind = "thinking_interrupted"
	DeltaDone              DeltaKind = "done"
)

// Delta is one chunk of a streamed generation.
type Delta struct {
	Kind DeltaKind
	Text string
}

// JSONSchema is a minimal JSON Schema description used to constrain
// generate_structured calls and to validate their output.
type JSONSchema struct {
	Type                 string                 `json:"type"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Items                *JSONSchema            `json:"items,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
	Description          string                 `json:"description,omitempty"`
	AdditionalProperties *bool                  `json:"additionalProperties,omitempty"`
}

// StructuredOutputError indicates schema-validated generation failed after
// retries were exhausted. Declared here (distinct from stage.StructuredOutputError)
// so pkg/llm has no dependency on pkg/stage; callers wrap it as needed.
type StructuredOutputError struct {
	Attempts int
	Cause    error
}

func (e *StructuredOutputError) Error() string {
	return "structured output failed after " + itoa(e.Attempts) + " attempts: " + e.Cause.Error()
}
func (e *StructuredOutputError) Unwrap() error { return e.Cause }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

// ManualParser is the fallback parser used by GenerateWithFallback when
// schema-constrained generation is disabled or fails. It must produce the
// same output type the caller expects from the schema path.
type ManualParser func(text string) (any, error)

// Client is the uniform interface the Stage Agents use to talk to the LLM
// backend. A single physical connection pool backs every Client method;
// implementations must serialize outstanding calls through a concurrency
// semaphore (see NewOllamaClient).
type Client interface {
	// Generate issues a single-shot completion.
	Generate(ctx context.Context, prompt string, opts Options) (string, error)

	// GenerateStream issues a completion and streams deltas, separating
	// normal text from <think>...</think>-delimited reasoning content. The
	// returned channel is closed when the stream ends (normally, on error,
	// or on ctx cancellation); the final error, if any, is sent as the last
	// value before close via the returned error channel semantics: callers
	// should drain until the Delta channel closes and then check ctx.Err()
	// or the accompanying error return.
	GenerateStream(ctx context.Context, prompt string, opts Options) (<-chan Delta, <-chan error)

	// Chat issues a multi-turn completion. Implementations must not embed
	// custom role delimiters into the prompt text; the backend's native
	// chat framing is used instead.
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)

	// GenerateStructured requests JSON-mode generation constrained by
	// schema, validates the result, and retries up to the client's
	// configured MaxRetries (default 2) on validation failure.
	GenerateStructured(ctx context.Context, prompt string, schema *JSONSchema, opts Options) (map[string]any, error)
}

// GenerateWithFallback returns a schema-validated object when structured
// output succeeds, or the manual parser's result otherwise. Both paths
// return the same caller-defined type via the ManualParser's return value
// and the map[string]any decoded from schema output — callers are
// responsible for decoding the map into their typed result the same way
// regardless of which path produced it.
func GenerateWithFallback(ctx context.Context, c Client, prompt string, schema *JSONSchema, opts Options, fallback ManualParser) (any, bool, error) {
	var structuredErr error
	if schema != nil {
		obj, err := c.GenerateStructured(ctx, prompt, schema, opts)
		if err == nil {
			return obj, true, nil
		}
		structuredErr = err
	}
	if fallback == nil {
		if structuredErr != nil {
			return nil, false, structuredErr
		}
		return nil, false, &StructuredOutputError{Attempts: 0, Cause: errNoSchemaNoFallback}
	}
	text, err := c.Generate(ctx, prompt, opts)
	if err != nil {
		return nil, false, err
	}
	result, err := fallback(text)
	if err != nil {
		return nil, false, err
	}
	return result, false, nil
}

var errNoSchemaNoFallback = &noPathError{}

type noPathError struct{}

func (*noPathError) Error() string {
	return "generate_with_fallback: neither a schema nor a manual parser was supplied"
}
