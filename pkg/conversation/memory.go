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

package conversation

import "context"

// HistorySink is the subset of the Retrieval Index's interface that Memory
// needs, so this package does not import pkg/retrieval directly.
type HistorySink interface {
	AddFromHistory(ctx context.Context, taskText, code string) error
}

// Memory implements the "forward (task_text, code) to the Retrieval Index
// on all_passed=true" rule.
type Memory struct {
	sink HistorySink
}

// NewMemory creates a Memory that forwards successful task outcomes to sink.
func NewMemory(sink HistorySink) *Memory {
	return &Memory{sink: sink}
}

// OnTaskCompleted is called once a task reaches a terminal state. When
// allPassed is false, or a proper retrieval sink wasn't configured, this
// is a no-op: only successful generations enrich the few-shot corpus.
func (m *Memory) OnTaskCompleted(ctx context.Context, taskText, code string, allPassed bool) error {
	if !allPassed || m.sink == nil {
		return nil
	}
	return m.sink.AddFromHistory(ctx, taskText, code)
}
