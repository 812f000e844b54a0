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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kforge/codeforge/pkg/astx"
	"github.com/kforge/codeforge/pkg/event"
	"github.com/kforge/codeforge/pkg/retrieval"
	"github.com/kforge/codeforge/pkg/stage"
)

// WebSearcher is the optional external web search source. No pack
// dependency provides a concrete search API, and the spec scopes web
// search as an external integration the operator can disable, so the
// only implementation shipped here is NoopWebSearcher.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]string, error)
}

// NoopWebSearcher reports no results; it is the default when web search is
// not configured.
type NoopWebSearcher struct{}

func (NoopWebSearcher) Search(context.Context, string, int) ([]string, error) { return nil, nil }

type researchCacheEntry struct {
	context   string
	expiresAt time.Time
}

// ResearcherAgent assembles research context from the local example
// index, optional web search, and in-process AST facts.
type ResearcherAgent struct {
	index       *retrieval.Index
	web         WebSearcher
	projectRoot string
	ttl         time.Duration

	mu    sync.Mutex
	cache map[string]researchCacheEntry
}

// ResearcherConfig configures a ResearcherAgent.
type ResearcherConfig struct {
	Index       *retrieval.Index
	Web         WebSearcher
	ProjectRoot string // empty disables the AST-facts source
	CacheTTL    time.Duration
}

// NewResearcherAgent creates a ResearcherAgent.
func NewResearcherAgent(cfg ResearcherConfig) *ResearcherAgent {
	if cfg.Web == nil {
		cfg.Web = NoopWebSearcher{}
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &ResearcherAgent{
		index:       cfg.Index,
		web:         cfg.Web,
		projectRoot: cfg.ProjectRoot,
		ttl:         cfg.CacheTTL,
		cache:       make(map[string]researchCacheEntry),
	}
}

func (a *ResearcherAgent) Name() string { return "research" }

func (a *ResearcherAgent) Execute(ctx context.Context, st *stage.State, pub event.Publisher) error {
	pub.StageStart(a.Name(), "gathering context")

	intent, _ := st.IntentResult()
	disableWeb := stage.OptionsFromContext(ctx).DisableWebSearch
	key := fingerprint(st.Task(), string(intent.Type), disableWeb)

	if cached, ok := a.lookupCache(key); ok {
		if err := st.SetContext(cached); err != nil {
			return err
		}
		pub.StageEnd(a.Name(), cached)
		return nil
	}

	var sections []string

	if a.index != nil {
		examples, err := a.index.FindSimilar(ctx, st.Task(), 5, []retrieval.Source{retrieval.SourceLocal, retrieval.SourceHistory}, "go")
		if err == nil && len(examples) > 0 {
			sections = append(sections, formatExamples(examples))
		}
	}

	if !disableWeb {
		maxResults := stage.OptionsFromContext(ctx).WebSearchMaxResults
		if maxResults <= 0 {
			maxResults = 5
		}
		results, err := a.web.Search(ctx, st.Task(), maxResults)
		if err == nil && len(results) > 0 {
			sections = append(sections, "Web findings:\n"+strings.Join(results, "\n"))
		}
	}

	if a.projectRoot != "" {
		if facts, err := a.astFacts(); err == nil && facts != "" {
			sections = append(sections, facts)
		}
	}

	researched := strings.Join(sections, "\n\n")
	a.storeCache(key, researched)

	if err := st.SetContext(researched); err != nil {
		return err
	}
	pub.StageEnd(a.Name(), researched)
	return nil
}

func (a *ResearcherAgent) lookupCache(key string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.context, true
}

func (a *ResearcherAgent) storeCache(key, context string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache[key] = researchCacheEntry{context: context, expiresAt: time.Now().Add(a.ttl)}
}

func (a *ResearcherAgent) astFacts() (string, error) {
	analysis, err := astx.AnalyzeProject(a.projectRoot)
	if err != nil {
		return "", err
	}
	top := analysis.Graph.ImportantEntities(5)
	if len(top) == 0 {
		return "", nil
	}
	var b strings.Builder
	b.WriteString("Important entities in this project:\n")
	for _, e := range top {
		fmt.Fprintf(&b, "- %s (score %.3f)\n", e.Name, e.Score)
	}
	return b.String(), nil
}

func formatExamples(examples []retrieval.CodeExample) string {
	var b strings.Builder
	b.WriteString("Relevant examples:\n")
	for _, ex := range examples {
		b.WriteString("---\n")
		if ex.Description != "" {
			b.WriteString(ex.Description)
			b.WriteString("\n")
		}
		b.WriteString(ex.Code)
		b.WriteString("\n")
	}
	return b.String()
}

func fingerprint(taskText, intentType string, disableWebSearch bool) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%v", taskText, intentType, disableWebSearch)))
	return hex.EncodeToString(h[:])
}
