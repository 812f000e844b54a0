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

var planSchema = &llm.JSONSchema{
	Type: "object",
	Properties: map[string]*llm.JSONSchema{
		"text": {Type: "string"},
		"functions": {
			Type: "array",
			Items: &llm.JSONSchema{
				Type: "object",
				Properties: map[string]*llm.JSONSchema{
					"name":         {Type: "string"},
					"signature":    {Type: "string"},
					"description":  {Type: "string"},
					"dependencies": {Type: "array", Items: &llm.JSONSchema{Type: "string"}},
				},
				Required: []string{"name", "signature"},
			},
		},
	},
	Required: []string{"text"},
}

// PlannerAgent produces a human-readable plan, and when structured output
// is available, a topologically-ordered function breakdown.
type PlannerAgent struct {
	client llm.Client
}

// NewPlannerAgent creates a PlannerAgent backed by client.
func NewPlannerAgent(client llm.Client) *PlannerAgent {
	return &PlannerAgent{client: client}
}

func (a *PlannerAgent) Name() string { return "planning" }

func (a *PlannerAgent) Execute(ctx context.Context, st *stage.State, pub event.Publisher) error {
	pub.StageStart(a.Name(), "drafting a plan")

	intent, _ := st.IntentResult()
	researched, _ := st.Context()

	prompt := buildPlanPrompt(st.Task(), intent, researched)
	obj, structured, err := llm.GenerateWithFallback(ctx, a.client, prompt, planSchema, llm.Options{}, fallbackPlan(st.Task()))
	if err != nil {
		pub.StageError(a.Name(), err)
		return &stage.StageError{Stage: a.Name(), Cause: err}
	}

	plan, err := decodePlan(obj, structured)
	if err != nil {
		pub.StageError(a.Name(), err)
		return &stage.StageError{Stage: a.Name(), Cause: err}
	}

	if !validTopologicalOrder(plan.Functions) {
		plan.Functions = nil
	}

	// An empty plan gets a synthesized one-liner; the complexity downgrade
	// this implies is applied by the Workflow Engine, which owns the
	// iteration budget that complexity feeds into (AgentState.intent_result
	// is set-once and this stage does not own it).
	if strings.TrimSpace(plan.Text) == "" {
		plan.Text = synthesizePlan(st.Task())
	}

	if err := st.SetPlan(plan); err != nil {
		return err
	}
	pub.StageEnd(a.Name(), plan)
	return nil
}

func buildPlanPrompt(task string, intent stage.IntentResult, researched string) string {
	var b strings.Builder
	b.WriteString("Write a plan to accomplish the following task. ")
	b.WriteString("If the task is complex, break it into a topologically-ordered list of functions ")
	b.WriteString("where each function's dependencies name only functions earlier in the list.\n\n")
	fmt.Fprintf(&b, "Intent: %s (complexity: %s)\n", intent.Type, intent.Complexity)
	if researched != "" {
		b.WriteString("Context:\n")
		b.WriteString(researched)
		b.WriteString("\n\n")
	}
	b.WriteString("Task: ")
	b.WriteString(task)
	return b.String()
}

func fallbackPlan(task string) llm.ManualParser {
	return func(text string) (any, error) {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			trimmed = synthesizePlan(task)
		}
		return stage.Plan{Text: trimmed}, nil
	}
}

// synthesizePlan builds a one-line plan from the task text, used when the
// planning stage returns an empty plan.
func synthesizePlan(task string) string {
	return "Implement: " + strings.TrimSpace(task)
}

func decodePlan(obj any, structured bool) (stage.Plan, error) {
	if !structured {
		plan, ok := obj.(stage.Plan)
		if !ok {
			return stage.Plan{}, fmt.Errorf("planner: unexpected fallback result type %T", obj)
		}
		return plan, nil
	}

	m, ok := obj.(map[string]any)
	if !ok {
		return stage.Plan{}, fmt.Errorf("planner: unexpected structured result type %T", obj)
	}

	text, _ := m["text"].(string)
	plan := stage.Plan{Text: text}

	rawFns, _ := m["functions"].([]any)
	for _, rf := range rawFns {
		fm, ok := rf.(map[string]any)
		if !ok {
			continue
		}
		name, _ := fm["name"].(string)
		signature, _ := fm["signature"].(string)
		description, _ := fm["description"].(string)
		var deps []string
		if rawDeps, ok := fm["dependencies"].([]any); ok {
			for _, d := range rawDeps {
				if s, ok := d.(string); ok {
					deps = append(deps, s)
				}
			}
		}
		plan.Functions = append(plan.Functions, stage.FunctionSpec{
			Name: name, Signature: signature, Description: description, Dependencies: deps,
		})
	}
	return plan, nil
}

// validTopologicalOrder reports whether every FunctionSpec's dependencies
// name only specs that precede it in the list.
func validTopologicalOrder(fns []stage.FunctionSpec) bool {
	seen := make(map[string]bool, len(fns))
	for _, fn := range fns {
		for _, dep := range fn.Dependencies {
			if !seen[dep] {
				return false
			}
		}
		seen[fn.Name] = true
	}
	return true
}
