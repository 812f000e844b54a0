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
	"os"
	"os/exec"
	"path/filepath"

	"github.com/kforge/codeforge/pkg/event"
	"github.com/kforge/codeforge/pkg/stage"
	"github.com/kforge/codeforge/pkg/validate"
)

const maxReportChars = 500

// ValidatorAgent runs three checks over generated code: the Quick
// Validator's syntax/compile/test pass, a static typing pass (go vet),
// and a security lint pass (an AST heuristic scan).
type ValidatorAgent struct{}

// NewValidatorAgent creates a ValidatorAgent.
func NewValidatorAgent() *ValidatorAgent { return &ValidatorAgent{} }

func (a *ValidatorAgent) Name() string { return "validation" }

func (a *ValidatorAgent) Execute(ctx context.Context, st *stage.State, pub event.Publisher) error {
	pub.StageStart(a.Name(), "validating generated code")

	code := st.Code()
	tests, _ := st.Tests()

	quick := validate.Validate(ctx, code, tests, validate.DefaultTimeout)
	typing := runStaticTypingPass(ctx, code)
	security := runSecurityLintPass(code)

	report := stage.ValidationReport{
		Pytest: stage.ToolReport{
			Success: quick.Passed,
			Errors:  truncate(quick.Error, maxReportChars),
		},
		Mypy:      typing,
		Bandit:    security,
		AllPassed: quick.Passed && typing.Success && security.Success,
	}

	st.SetValidationResults(report)
	pub.StageEnd(a.Name(), report)
	return nil
}

func runStaticTypingPass(ctx context.Context, code string) stage.ToolReport {
	dir, err := os.MkdirTemp("", "codeforge-vet-*")
	if err != nil {
		return stage.ToolReport{Success: false, Errors: truncate(err.Error(), maxReportChars)}
	}
	defer os.RemoveAll(dir)

	if err := os.WriteFile(filepath.Join(dir, "generated.go"), []byte(code), 0644); err != nil {
		return stage.ToolReport{Success: false, Errors: truncate(err.Error(), maxReportChars)}
	}
	goMod := "module codeforgevet\n\ngo 1.24\n"
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte(goMod), 0644); err != nil {
		return stage.ToolReport{Success: false, Errors: truncate(err.Error(), maxReportChars)}
	}

	cmd := exec.CommandContext(ctx, "go", "vet", "./...")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return stage.ToolReport{Success: false, Errors: truncate(string(out), maxReportChars)}
	}
	return stage.ToolReport{Success: true}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
