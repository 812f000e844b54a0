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

	"github.com/kforge/codeforge/pkg/astx"
	"github.com/kforge/codeforge/pkg/event"
	"github.com/kforge/codeforge/pkg/llm"
	"github.com/kforge/codeforge/pkg/stage"
)

// FixerAgent applies a DebugResult's fix instructions to the code,
// rejecting a fix that changes a function signature the debugger did not
// explicitly call out.
type FixerAgent struct {
	client llm.Client
}

// NewFixerAgent creates a FixerAgent backed by client.
func NewFixerAgent(client llm.Client) *FixerAgent {
	return &FixerAgent{client: client}
}

func (a *FixerAgent) Name() string { return "fixing" }

func (a *FixerAgent) Execute(ctx context.Context, st *stage.State, pub event.Publisher) error {
	pub.StageStart(a.Name(), "applying fix")

	debug, _ := st.DebugResult()
	code := st.Code()

	prompt := buildFixPrompt(code, debug)
	text, err := a.client.Generate(ctx, prompt, llm.Options{})
	if err != nil {
		pub.StageError(a.Name(), err)
		return &stage.StageError{Stage: a.Name(), Cause: err}
	}

	fixed := extractGoSource(text)
	if !signaturesPreserved(code, fixed, debug.Location) {
		pub.StageError(a.Name(), fmt.Errorf("fix changed a function signature the debugger did not mark for change, discarding"))
		st.IncrementIteration()
		pub.StageEnd(a.Name(), code)
		return nil
	}

	st.SetCode(fixed)
	st.IncrementIteration()
	pub.StageEnd(a.Name(), fixed)
	return nil
}

func buildFixPrompt(code string, debug stage.DebugResult) string {
	var b strings.Builder
	b.WriteString("Apply the following fix to the Go code below. Preserve every function signature unless explicitly told to change it. Emit only the corrected Go source.\n\n")
	fmt.Fprintf(&b, "Root cause: %s\n", debug.RootCause)
	fmt.Fprintf(&b, "Fix instructions: %s\n", debug.FixInstructions)
	if debug.Location != "" {
		fmt.Fprintf(&b, "Location permitted to change signature: %s\n", debug.Location)
	}
	b.WriteString("\nCode:\n")
	b.WriteString(code)
	return b.String()
}

// signaturesPreserved reports whether every function present in both the
// original and fixed code kept its signature, except one named by
// permittedChange.
func signaturesPreserved(original, fixed, permittedChange string) bool {
	origSigs := functionSignatures(original)
	fixedSigs := functionSignatures(fixed)
	for name, sig := range origSigs {
		if name == permittedChange {
			continue
		}
		if newSig, ok := fixedSigs[name]; ok && newSig != sig {
			return false
		}
	}
	return true
}

func functionSignatures(code string) map[string]string {
	analysis := astx.AnalyzeFile("generated.go", []byte(code))
	sigs := make(map[string]string, len(analysis.Functions))
	for _, fn := range analysis.Functions {
		sigs[fn.Name] = fn.Signature
	}
	return sigs
}
