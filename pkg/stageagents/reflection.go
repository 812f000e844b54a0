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

var reflectionSchema = &llm.JSONSchema{
	Type: "object",
	Properties: map[string]*llm.JSONSchema{
		"planning":     {Type: "number", Description: "0 to 1"},
		"research":     {Type: "number", Description: "0 to 1"},
		"testing":      {Type: "number", Description: "0 to 1"},
		"coding":       {Type: "number", Description: "0 to 1"},
		"analysis":     {Type: "string"},
		"improvements": {Type: "string"},
	},
	Required: []string{"planning", "research", "testing", "coding"},
}

// ReflectionAgent scores the completed run's artifacts and computes an
// overall weighted score.
type ReflectionAgent struct {
	client llm.Client
}

// NewReflectionAgent creates a ReflectionAgent backed by client.
func NewReflectionAgent(client llm.Client) *ReflectionAgent {
	return &ReflectionAgent{client: client}
}

func (a *ReflectionAgent) Name() string { return "reflection" }

func (a *ReflectionAgent) Execute(ctx context.Context, st *stage.State, pub event.Publisher) error {
	pub.StageStart(a.Name(), "reflecting on the run")

	plan, _ := st.Plan()
	researched, _ := st.Context()
	tests, _ := st.Tests()
	code := st.Code()
	validation, _ := st.ValidationResults()

	prompt := buildReflectionPrompt(plan, researched, tests, code, validation)
	obj, structured, err := llm.GenerateWithFallback(ctx, a.client, prompt, reflectionSchema, llm.Options{}, fallbackReflection(validation))
	if err != nil {
		pub.StageError(a.Name(), err)
		return &stage.StageError{Stage: a.Name(), Cause: err}
	}

	result, err := decodeReflectionResult(obj, structured)
	if err != nil {
		pub.StageError(a.Name(), err)
		return &stage.StageError{Stage: a.Name(), Cause: err}
	}
	result.ComputeOverall()

	if err := st.SetReflection(result); err != nil {
		return err
	}
	pub.StageEnd(a.Name(), result)
	return nil
}

func buildReflectionPrompt(plan stage.Plan, researched, tests, code string, validation stage.ValidationReport) string {
	var b strings.Builder
	b.WriteString("Score this completed task's planning, research, testing, and coding quality, each in [0,1].\n\n")
	b.WriteString("Plan:\n")
	b.WriteString(plan.Text)
	b.WriteString("\n\nResearch context used:\n")
	b.WriteString(researched)
	b.WriteString("\n\nTests:\n")
	b.WriteString(tests)
	b.WriteString("\n\nCode:\n")
	b.WriteString(code)
	fmt.Fprintf(&b, "\n\nValidation passed: %v\n", validation.AllPassed)
	return b.String()
}

func fallbackReflection(validation stage.ValidationReport) llm.ManualParser {
	return func(text string) (any, error) {
		base := 0.5
		if validation.AllPassed {
			base = 0.75
		}
		return stage.ReflectionResult{
			Planning: base,
			Research: base,
			Testing:  base,
			Coding:   base,
			Analysis: "fallback reflection: LLM scoring unavailable, derived from validation outcome",
		}, nil
	}
}

func decodeReflectionResult(obj any, structured bool) (stage.ReflectionResult, error) {
	if !structured {
		result, ok := obj.(stage.ReflectionResult)
		if !ok {
			return stage.ReflectionResult{}, fmt.Errorf("reflection: unexpected fallback result type %T", obj)
		}
		return result, nil
	}

	m, ok := obj.(map[string]any)
	if !ok {
		return stage.ReflectionResult{}, fmt.Errorf("reflection: unexpected structured result type %T", obj)
	}

	planning, _ := m["planning"].(float64)
	research, _ := m["research"].(float64)
	testing, _ := m["testing"].(float64)
	coding, _ := m["coding"].(float64)
	analysis, _ := m["analysis"].(string)
	improvements, _ := m["improvements"].(string)

	return stage.ReflectionResult{
		Planning:     planning,
		Research:     research,
		Testing:      testing,
		Coding:       coding,
		Analysis:     analysis,
		Improvements: improvements,
	}, nil
}
