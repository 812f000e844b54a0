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

// MaxFixAttempts bounds per-function targeted fix attempts in the
// Incremental Coder.
const MaxFixAttempts = 3

// IncrementalCoder generates a complex task's code one function at a
// time, validating and targeted-fixing each before moving to the next.
type IncrementalCoder struct {
	client llm.Client
	index  *retrieval.Index
}

// NewIncrementalCoder creates an IncrementalCoder.
func NewIncrementalCoder(client llm.Client, index *retrieval.Index) *IncrementalCoder {
	return &IncrementalCoder{client: client, index: index}
}

func (a *IncrementalCoder) Name() string { return "coding" }

func (a *IncrementalCoder) Execute(ctx context.Context, st *stage.State, pub event.Publisher) error {
	pub.StageStart(a.Name(), "generating code incrementally")

	plan, _ := st.Plan()
	tests, _ := st.Tests()
	researched, _ := st.Context()

	total := len(plan.Functions)
	var accumulated strings.Builder
	accumulated.WriteString("package main\n\n")

	for i, spec := range plan.Functions {
		pub.IncrementalProgress(spec.Name, "generating", 0, float64(i)/float64(total))

		fn, err := a.generateFunction(ctx, spec, researched)
		if err != nil {
			pub.IncrementalProgress(spec.Name, "failed", 0, float64(i)/float64(total))
			pub.StageError(a.Name(), fmt.Errorf("incremental coder: function %q: %w", spec.Name, err))
			continue
		}

		candidate := accumulated.String() + fn + "\n"
		pub.IncrementalProgress(spec.Name, "validating", 0, float64(i)/float64(total))

		result := validate.Validate(ctx, candidate, tests, validate.DefaultTimeout)
		attempt := 0
		for !result.Passed && attempt < MaxFixAttempts {
			attempt++
			pub.IncrementalProgress(spec.Name, "fixing", attempt, float64(i)/float64(total))
			fixed, ferr := a.fixFunction(ctx, spec, fn, result.Error)
			if ferr != nil {
				break
			}
			fn = fixed
			candidate = accumulated.String() + fn + "\n"
			result = validate.Validate(ctx, candidate, tests, validate.DefaultTimeout)
		}

		status := "passed"
		if !result.Passed {
			status = "failed"
		}
		pub.IncrementalProgress(spec.Name, status, attempt, float64(i+1)/float64(total))

		accumulated.WriteString(fn)
		accumulated.WriteString("\n")
	}

	code := accumulated.String()
	st.SetCode(code)

	if result := validate.Validate(ctx, code, tests, validate.DefaultTimeout); result.Passed && a.index != nil {
		_ = a.index.AddFromHistory(ctx, st.Task(), code)
	}

	pub.StageEnd(a.Name(), code)
	return nil
}

func (a *IncrementalCoder) generateFunction(ctx context.Context, spec stage.FunctionSpec, researched string) (string, error) {
	var b strings.Builder
	b.WriteString("Write a single Go function. Emit only the function, no prose, no package clause.\n\n")
	fmt.Fprintf(&b, "Name: %s\nSignature: %s\nDescription: %s\n", spec.Name, spec.Signature, spec.Description)
	if researched != "" {
		b.WriteString("Context:\n")
		b.WriteString(researched)
		b.WriteString("\n")
	}
	text, err := a.client.Generate(ctx, b.String(), llm.Options{})
	if err != nil {
		return "", err
	}
	return extractGoSource(text), nil
}

func (a *IncrementalCoder) fixFunction(ctx context.Context, spec stage.FunctionSpec, fn, validationError string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "The following Go function failed validation with error: %s\n\n", validationError)
	b.WriteString("Function:\n")
	b.WriteString(fn)
	b.WriteString("\n\nRewrite it to fix the error. Preserve its signature. Emit only the corrected function.\n")
	text, err := a.client.Generate(ctx, b.String(), llm.Options{})
	if err != nil {
		return "", err
	}
	return extractGoSource(text), nil
}
