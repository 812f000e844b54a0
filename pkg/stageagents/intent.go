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

var intentTypes = []string{
	string(stage.IntentGreeting), string(stage.IntentHelp), string(stage.IntentCreate),
	string(stage.IntentModify), string(stage.IntentDebug), string(stage.IntentOptimize),
	string(stage.IntentExplain), string(stage.IntentTest), string(stage.IntentRefactor),
	string(stage.IntentAnalyze),
}

var intentSchema = &llm.JSONSchema{
	Type: "object",
	Properties: map[string]*llm.JSONSchema{
		"type":       {Type: "string", Enum: intentTypes},
		"confidence": {Type: "number", Description: "0 to 1"},
		"complexity": {Type: "string", Enum: []string{"simple", "medium", "complex"}},
		"reasoning":  {Type: "string"},
	},
	Required: []string{"type", "confidence", "complexity"},
}

// intentKeywords is the localized dictionary the fallback classifier
// scores a query against when structured output is unavailable or fails.
var intentKeywords = map[stage.IntentType][]string{
	stage.IntentGreeting: {"hello", "hi", "hey", "good morning", "good afternoon"},
	stage.IntentHelp:     {"help", "how do i", "how can i", "what is", "explain how"},
	stage.IntentCreate:   {"create", "write", "implement", "build", "add a function", "generate"},
	stage.IntentModify:   {"change", "modify", "update", "edit", "rename"},
	stage.IntentDebug:    {"bug", "error", "crash", "fix", "not working", "fails", "panic"},
	stage.IntentOptimize: {"optimize", "faster", "performance", "speed up", "reduce latency"},
	stage.IntentExplain:  {"explain", "what does", "why does", "describe"},
	stage.IntentTest:     {"test", "unit test", "write tests", "coverage"},
	stage.IntentRefactor: {"refactor", "clean up", "restructure", "simplify"},
	stage.IntentAnalyze:  {"analyze", "review", "audit", "inspect"},
}

// IntentAgent classifies a user query into one of the ten intent types.
type IntentAgent struct {
	client llm.Client
}

// NewIntentAgent creates an IntentAgent backed by client.
func NewIntentAgent(client llm.Client) *IntentAgent {
	return &IntentAgent{client: client}
}

func (a *IntentAgent) Name() string { return "intent" }

// Execute classifies st.Task() and records the result via SetIntentResult.
// If intent_result.confidence comes back below 0.5, the caller (Workflow
// Engine) applies the tie-break of treating it as create/medium; this
// stage itself reports exactly what it found.
func (a *IntentAgent) Execute(ctx context.Context, st *stage.State, pub event.Publisher) error {
	pub.StageStart(a.Name(), "classifying intent")

	prompt := buildIntentPrompt(st.Task())
	obj, structured, err := llm.GenerateWithFallback(ctx, a.client, prompt, intentSchema, llm.Options{}, fallbackIntent(st.Task()))
	if err != nil {
		pub.StageError(a.Name(), err)
		return &stage.StageError{Stage: a.Name(), Cause: err}
	}

	result, err := decodeIntentResult(obj, structured)
	if err != nil {
		pub.StageError(a.Name(), err)
		return &stage.StageError{Stage: a.Name(), Cause: err}
	}

	if err := st.SetIntentResult(result); err != nil {
		return err
	}
	pub.StageEnd(a.Name(), result)
	return nil
}

func buildIntentPrompt(task string) string {
	var b strings.Builder
	b.WriteString("Classify the following user request into exactly one intent type ")
	b.WriteString("(greeting, help, create, modify, debug, optimize, explain, test, refactor, analyze), ")
	b.WriteString("estimate its complexity (simple, medium, complex), and give a confidence in [0,1].\n\n")
	b.WriteString("Request: ")
	b.WriteString(task)
	return b.String()
}

func fallbackIntent(task string) llm.ManualParser {
	return func(_ string) (any, error) {
		lower := strings.ToLower(task)
		var best stage.IntentType = stage.IntentCreate
		bestScore := 0
		for intentType, keywords := range intentKeywords {
			score := 0
			for _, kw := range keywords {
				if strings.Contains(lower, kw) {
					score++
				}
			}
			if score > bestScore {
				bestScore = score
				best = intentType
			}
		}
		confidence := 0.3 + 0.1*float64(bestScore)
		if confidence > 0.6 {
			confidence = 0.6
		}
		complexity := stage.ComplexityMedium
		if len(strings.Fields(task)) < 8 {
			complexity = stage.ComplexitySimple
		}
		return stage.IntentResult{
			Type:       best,
			Confidence: confidence,
			Complexity: complexity,
			Reasoning:  "fallback keyword classification",
		}, nil
	}
}

func decodeIntentResult(obj any, structured bool) (stage.IntentResult, error) {
	if !structured {
		result, ok := obj.(stage.IntentResult)
		if !ok {
			return stage.IntentResult{}, fmt.Errorf("intent: unexpected fallback result type %T", obj)
		}
		return result, nil
	}

	m, ok := obj.(map[string]any)
	if !ok {
		return stage.IntentResult{}, fmt.Errorf("intent: unexpected structured result type %T", obj)
	}

	typ, _ := m["type"].(string)
	confidence, _ := m["confidence"].(float64)
	complexity, _ := m["complexity"].(string)
	reasoning, _ := m["reasoning"].(string)

	return stage.IntentResult{
		Type:       stage.IntentType(typ),
		Confidence: confidence,
		Complexity: stage.Complexity(complexity),
		Reasoning:  reasoning,
	}, nil
}
