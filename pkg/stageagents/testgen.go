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
	"github.com/kforge/codeforge/pkg/validate"
)

// TestGeneratorAgent produces test source for the planned functions. The
// emitted tests are guaranteed syntactically valid, or the stage reports
// stage_error and tests fall back to an empty string.
type TestGeneratorAgent struct {
	client llm.Client
}

// NewTestGeneratorAgent creates a TestGeneratorAgent backed by client.
func NewTestGeneratorAgent(client llm.Client) *TestGeneratorAgent {
	return &TestGeneratorAgent{client: client}
}

func (a *TestGeneratorAgent) Name() string { return "test_generation" }

func (a *TestGeneratorAgent) Execute(ctx context.Context, st *stage.State, pub event.Publisher) error {
	pub.StageStart(a.Name(), "writing tests")

	plan, _ := st.Plan()
	intent, _ := st.IntentResult()

	prompt := buildTestPrompt(plan, intent)
	text, err := a.client.Generate(ctx, prompt, llm.Options{})
	if err != nil {
		pub.StageError(a.Name(), err)
		if setErr := st.SetTests(""); setErr != nil {
			return setErr
		}
		return nil
	}

	tests := extractGoSource(text)
	result := validate.Validate(ctx, stubPackageForSyntaxCheck(), tests, validate.DefaultTimeout)
	if !result.Passed {
		pub.StageError(a.Name(), fmt.Errorf("generated tests failed syntax check: %s", result.Error))
		tests = ""
	}

	if err := st.SetTests(tests); err != nil {
		return err
	}
	pub.StageEnd(a.Name(), tests)
	return nil
}

func buildTestPrompt(plan stage.Plan, intent stage.IntentResult) string {
	var b strings.Builder
	b.WriteString("Write Go tests (package main, using the testing package) for the following plan. ")
	b.WriteString("Emit only Go source, no prose.\n\n")
	fmt.Fprintf(&b, "Intent: %s\n", intent.Type)
	b.WriteString("Plan:\n")
	b.WriteString(plan.Text)
	for _, fn := range plan.Functions {
		fmt.Fprintf(&b, "- %s: %s\n", fn.Signature, fn.Description)
	}
	return b.String()
}

// stubPackageForSyntaxCheck gives the Quick Validator a minimal, always-
// valid package body so its syntax/compile checks apply to the tests file
// alone when only the tests are under scrutiny.
func stubPackageForSyntaxCheck() string {
	return "package main\n"
}
