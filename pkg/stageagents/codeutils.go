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

import "strings"

// extractGoSource strips a ```go ... ``` or ``` ... ``` fence if the model
// wrapped its output in one, returning the raw source either way.
func extractGoSource(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	lines = lines[1:]
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// tokenHashOverlap computes the fraction of tok(a)'s tokens that also
// appear in tok(b), used by CoderAgent's anti-verbatim-copy guard.
func tokenHashOverlap(a, b string) float64 {
	aTokens := strings.Fields(a)
	if len(aTokens) == 0 {
		return 0
	}
	bSet := make(map[string]bool, len(strings.Fields(b)))
	for _, t := range strings.Fields(b) {
		bSet[t] = true
	}
	shared := 0
	for _, t := range aTokens {
		if bSet[t] {
			shared++
		}
	}
	return float64(shared) / float64(len(aTokens))
}
