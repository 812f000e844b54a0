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
	"github.com/kforge/codeforge/pkg/stage"
)

var debugSchema = &llm.JSONSchema{
	Type: "object",
	Properties: map[string]*llm.JSONSchema{
		"error_type":       {Type: "string"},
		"location":         {Type: "string"},
		"root_cause":       {Type: "string"},
		"fix_instructions": {Type: "string"},
		"confidence":       {Type: "number", Description: "0 to 1"},
	},
	Required: []string{"error_type", "fix_instructions", "confidence"},
}

// DebuggerAgent diagnoses a validation failure and proposes fix
// instructions for the FixerAgent.
type DebuggerAgent struct {
	client llm.Client
}

// NewDebuggerAgent creates a DebuggerAgent backed by client.
func NewDebuggerAgent(client llm.Client) *DebuggerAgent {
	return &DebuggerAgent{client: client}
}

func (a *DebuggerAgent) Name() string { return "debugging" }

func (a *DebuggerAgent) Execute(ctx context.Context, st *stage.State, pub event.Publisher) error {
	pub.StageStart(a.Name(), "diagnosing validation failure")

	report, _ := st.ValidationResults()
	code := st.Code()
	tests, _ := st.Tests()
	plan, _ := st.Plan()

	prompt := buildDebugPrompt(report, code, tests, plan)
	obj, structured, err := llm.GenerateWithFallback(ctx, a.client, prompt, debugSchema, llm.Options{}, fallbackDebug(report))
	if err != nil {
		pub.StageError(a.Name(), err)
		return &stage.StageError{Stage: a.Name(), Cause: err}
	}

	result, err := decodeDebugResult(obj, structured)
	if err != nil {
		pub.StageError(a.Name(), err)
		return &stage.StageError{Stage: a.Name(), Cause: err}
	}

	st.SetDebugResult(result)
	pub.StageEnd(a.Name(), result)
	return nil
}

func buildDebugPrompt(report stage.ValidationReport, code, tests string, plan stage.Plan) string {
	var b strings.Builder
	b.WriteString("The following Go code failed validation. Diagnose the root cause and propose fix instructions.\n\n")
	fmt.Fprintf(&b, "Test/compile error: %s\n", report.Pytest.Errors)
	fmt.Fprintf(&b, "Static typing errors: %s\n", report.Mypy.Errors)
	fmt.Fprintf(&b, "Security lint issues: %s\n\n", report.Bandit.Issues)
	b.WriteString("Plan:\n")
	b.WriteString(plan.Text)
	b.WriteString("\n\nCode:\n")
	b.WriteString(code)
	if tests != "" {
		b.WriteString("\n\nTests:\n")
		b.WriteString(tests)
	}
	return b.String()
}

func fallbackDebug(report stage.ValidationReport) llm.ManualParser {
	return func(text string) (any, error) {
		errType := "unknown"
		switch {
		case report.Pytest.Errors != "" && strings.Contains(report.Pytest.Errors, "syntax"):
			errType = "syntax_error"
		case report.Pytest.Errors != "":
			errType = "test_failure"
		case report.Mypy.Errors != "":
			errType = "type_error"
		case report.Bandit.Issues != "":
			errType = "security_issue"
		}
		instructions := strings.TrimSpace(text)
		if instructions == "" {
			instructions = "Review the reported errors and correct the implementation accordingly."
		}
		return stage.DebugResult{
			ErrorType:       errType,
			RootCause:       "fallback diagnosis from validation report",
			FixInstructions: instructions,
			Confidence:      0.3,
		}, nil
	}
}

func decodeDebugResult(obj any, structured bool) (stage.DebugResult, error) {
	if !structured {
		result, ok := obj.(stage.DebugResult)
		if !ok {
			return stage.DebugResult{}, fmt.Errorf("debugger: unexpected fallback result type %T", obj)
		}
		return result, nil
	}

	m, ok := obj.(map[string]any)
	if !ok {
		return stage.DebugResult{}, fmt.Errorf("debugger: unexpected structured result type %T", obj)
	}

	errType, _ := m["error_type"].(string)
	location, _ := m["location"].(string)
	rootCause, _ := m["root_cause"].(string)
	fixInstructions, _ := m["fix_instructions"].(string)
	confidence, _ := m["confidence"].(float64)

	return stage.DebugResult{
		ErrorType:       errType,
		Location:        location,
		RootCause:       rootCause,
		FixInstructions: fixInstructions,
		Confidence:      confidence,
	}, nil
}
