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

// Package stageagents implements the nine Stage Agents that the Workflow
// Engine drives over a task's AgentState: Intent, Planner, Researcher,
// TestGenerator, Coder/IncrementalCoder, Validator, Debugger, Fixer, and
// Reflection.
package stageagents

import (
	"context"

	"github.com/kforge/codeforge/pkg/event"
	"github.com/kforge/codeforge/pkg/stage"
)

// Stage is the common contract every stage agent satisfies. Agents never
// mutate AgentState keys they do not own; they fail by returning a typed
// error, never by silently leaving a field unset.
type Stage interface {
	Name() string
	Execute(ctx context.Context, st *stage.State, pub event.Publisher) error
}
