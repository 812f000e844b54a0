package stageagents

import (
	"context"

	"github.com/kforge/codeforge/pkg/llm"
)

// fakeClient is a scripted llm.Client for stage agent tests: Generate and
// Chat return genText/genErr in sequence (repeating the last entry once
// exhausted); GenerateStructured returns structObj/structErr directly.
type fakeClient struct {
	genTexts  []string
	genErr    error
	genCalls  int
	structObj map[string]any
	structErr error
}

func (f *fakeClient) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	if f.genErr != nil {
		return "", f.genErr
	}
	if len(f.genTexts) == 0 {
		return "", nil
	}
	idx := f.genCalls
	if idx >= len(f.genTexts) {
		idx = len(f.genTexts) - 1
	}
	f.genCalls++
	return f.genTexts[idx], nil
}

func (f *fakeClient) GenerateStream(ctx context.Context, prompt string, opts llm.Options) (<-chan llm.Delta, <-chan error) {
	deltas := make(chan llm.Delta)
	errs := make(chan error, 1)
	close(deltas)
	close(errs)
	return deltas, errs
}

func (f *fakeClient) Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	return f.Generate(ctx, "", opts)
}

func (f *fakeClient) GenerateStructured(ctx context.Context, prompt string, schema *llm.JSONSchema, opts llm.Options) (map[string]any, error) {
	if f.structErr != nil {
		return nil, f.structErr
	}
	return f.structObj, nil
}
