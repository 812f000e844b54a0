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

package workflow

import "github.com/kforge/codeforge/pkg/stage"

// Results is the payload carried by the terminal final_result event: every
// artifact a run produced, whichever path it took.
type Results struct {
	Intent          stage.IntentResult    `json:"intent"`
	Plan            stage.Plan            `json:"plan,omitempty"`
	Context         string                `json:"context,omitempty"`
	Tests           string                `json:"tests,omitempty"`
	Code            string                `json:"code,omitempty"`
	Validation      stage.ValidationReport `json:"validation_results,omitempty"`
	Debug           *stage.DebugResult    `json:"debug_result,omitempty"`
	Reflection      *stage.ReflectionResult `json:"reflection_result,omitempty"`
	Debate          *stage.DebateReport   `json:"debate_result,omitempty"`
	GreetingMessage string                `json:"greeting_message,omitempty"`
	Iteration       int                   `json:"iteration"`
	Failed          bool                  `json:"failed,omitempty"`
}

func resultsFromState(st *stage.State) Results {
	intent, _ := st.IntentResult()
	plan, _ := st.Plan()
	context, _ := st.Context()
	tests, _ := st.Tests()
	validation, _ := st.ValidationResults()
	greeting, _ := st.GreetingMessage()

	r := Results{
		Intent:          intent,
		Plan:            plan,
		Context:         context,
		Tests:           tests,
		Code:            st.Code(),
		Validation:      validation,
		GreetingMessage: greeting,
		Iteration:       st.Iteration(),
	}
	if debug, ok := st.DebugResult(); ok {
		r.Debug = &debug
	}
	if reflection, ok := st.Reflection(); ok {
		r.Reflection = &reflection
	}
	if debateReport, ok := st.Debate(); ok {
		r.Debate = &debateReport
	}
	return r
}

func resultsFromSnapshot(snap stage.Snapshot) Results {
	r := Results{
		Context:         snap.Context,
		Tests:           snap.Tests,
		Code:            snap.Code,
		GreetingMessage: snap.GreetingMessage,
		Iteration:       snap.Iteration,
		Debug:           snap.DebugResult,
		Reflection:      snap.Reflection,
		Debate:          snap.Debate,
	}
	if snap.IntentResult != nil {
		r.Intent = *snap.IntentResult
	}
	if snap.Plan != nil {
		r.Plan = *snap.Plan
	}
	if snap.ValidationResults != nil {
		r.Validation = *snap.ValidationResults
	}
	return r
}
