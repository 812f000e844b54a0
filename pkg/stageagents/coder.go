// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stageagents

import (
	"context"
	"fmt"
	"strings"

	"github.com/kforge/codeforge/pkg/event"
	"github.com/kforge/codeforge/pkg/llm"
	"github.com/kforge/codeforge/pkg/retrieval"
	"github.com/kforge/codeforge/pkg/stage"
	"github.com/kforge/codeforge/pkg/validate"
)

// maxVerbatimOverlap is the token-hash overlap ratio above which a
// generation is considered a near-verbatim copy of a few-shot example.
const maxVerbatimOverlap = 0.5

// CoderAgent generates code from the plan, tests, research context, and
// few-shot examples drawn from the Retrieval Index. A generation that
// passes the Quick Validator is recorded back into the index under source
// history.
type CoderAgent struct {
	client llm.Client
	index  *retrieval.Index
}

// NewCoderAgent creates a CoderAgent. index may be nil to disable
// few-shot retrieval and history recording.
func NewCoderAgent(client llm.Client, index *retrieval.Index) *CoderAgent {
	return &CoderAgent{client: client, index: index}
}

func (a *CoderAgent) Name() string { return "coding" }

func (a *CoderAgent) Execute(ctx context.Context, st *stage.State, pub event.Publisher) error {
	pub.StageStart(a.Name(), "generating code")

	plan, _ := st.Plan()
	tests, _ := st.Tests()
	researched, _ := st.Context()

	var examples []retrieval.CodeExample
	if a.index != nil {
		examples, _ = a.index.FindSimilar(ctx, st.Task(), 3, []retrieval.Source{retrieval.SourceLocal, retrieval.SourceHistory}, "go")
	}

	code, err := a.generate(ctx, plan, tests, researched, examples)
	if err != nil {
		pub.StageError(a.Name(), err)
		return &stage.StageError{Stage: a.Name(), Cause: err}
	}

	st.SetCode(code)

	result := validate.Validate(ctx, code, tests, validate.DefaultTimeout)
	if result.Passed && a.index != nil {
		_ = a.index.AddFromHistory(ctx, st.Task(), code)
	}

	pub.StageEnd(a.Name(), code)
	return nil
}

func (a *CoderAgent) generate(ctx context.Context, plan stage.Plan, tests, researched string, examples []retrieval.CodeExample) (string, error) {
	prompt := buildCoderPrompt(plan, tests, researched, examples, "")
	text, err := a.client.Generate(ctx, prompt, llm.Options{})
	if err != nil {
		return "", err
	}
	code := extractGoSource(text)

	if overlapsVerbatim(code, examples) {
		retryPrompt := buildCoderPrompt(plan, tests, researched, examples,
			"Your previous answer copied a few-shot example almost verbatim. Write an original implementation instead.")
		if retryText, retryErr := a.client.Generate(ctx, retryPrompt, llm.Options{}); retryErr == nil {
			code = extractGoSource(retryText)
		}
	}
	return code, nil
}

func overlapsVerbatim(code string, examples []retrieval.CodeExample) bool {
	for _, ex := range examples {
		if tokenHashOverlap(code, ex.Code) > maxVerbatimOverlap {
			return true
		}
	}
	return false
}

func buildCoderPrompt(plan stage.Plan, tests, researched string, examples []retrieval.CodeExample, extraInstruction string) string {
	var b strings.Builder
	b.WriteString("Write Go code (package main) implementing the following plan. Emit only Go source, no prose.\n\n")
	b.WriteString("Plan:\n")
	b.WriteString(plan.Text)
	b.WriteString("\n\n")
	if researched != "" {
		b.WriteString("Context:\n")
		b.WriteString(researched)
		b.WriteString("\n\n")
	}
	if tests != "" {
		b.WriteString("Tests it must satisfy:\n")
		b.WriteString(tests)
		b.WriteString("\n\n")
	}
	for i, ex := range examples {
		fmt.Fprintf(&b, "Example %d (%s):\n%s\n\n", i+1, ex.Description, ex.Code)
	}
	if extraInstruction != "" {
		b.WriteString(extraInstruction)
		b.WriteString("\n")
	}
	return b.String()
}
