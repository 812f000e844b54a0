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

// Package debate implements the Multi-Reviewer Debate: a fixed panel of
// specialized reviewers runs in parallel over the final code, and any
// critical or high severity finding triggers a bounded rewrite/re-review
// cycle until the panel reaches consensus or MAX_ROUNDS is exhausted.
package debate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kforge/codeforge/pkg/event"
	"github.com/kforge/codeforge/pkg/llm"
	"github.com/kforge/codeforge/pkg/stage"
)

// DefaultMaxRounds bounds the debate's fix/re-review cycle.
const DefaultMaxRounds = 3

// Reviewer is one specialized critique lens.
type Reviewer string

const (
	ReviewerSecurity    Reviewer = "security"
	ReviewerPerformance Reviewer = "performance"
	ReviewerCorrectness Reviewer = "correctness"
)

var defaultReviewers = []Reviewer{ReviewerSecurity, ReviewerPerformance, ReviewerCorrectness}

// Config controls the panel's composition and the fix cycle's bound.
type Config struct {
	Reviewers []Reviewer
	MaxRounds int
	// ReviewerModel, when set, overrides the task's model for every
	// reviewer call uniformly. Empty means inherit the task's model.
	ReviewerModel string
}

func (c *Config) setDefaults() {
	if len(c.Reviewers) == 0 {
		c.Reviewers = defaultReviewers
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultMaxRounds
	}
}

var issuesSchema = &llm.JSONSchema{
	Type: "object",
	Properties: map[string]*llm.JSONSchema{
		"issues": {
			Type: "array",
			Items: &llm.JSONSchema{
				Type: "object",
				Properties: map[string]*llm.JSONSchema{
					"severity":    {Type: "string", Enum: []string{"critical", "high", "medium", "low"}},
					"location":    {Type: "string"},
					"description": {Type: "string"},
					"evidence":    {Type: "string"},
					"suggestion":  {Type: "string"},
				},
				Required: []string{"severity", "description"},
			},
		},
	},
	Required: []string{"issues"},
}

// Debate is the Stage wired into the Workflow Engine for the critic/debate
// node. It satisfies the same Stage contract pkg/stageagents agents do
// (Name/Execute) so the engine can drive it identically.
type Debate struct {
	client llm.Client
	cfg    Config
}

// New creates a Debate panel. Zero-valued Config fields take their
// documented defaults (three reviewers, MAX_ROUNDS=3).
func New(client llm.Client, cfg Config) *Debate {
	cfg.setDefaults()
	return &Debate{client: client, cfg: cfg}
}

func (d *Debate) Name() string { return "debate" }

func (d *Debate) Execute(ctx context.Context, st *stage.State, pub event.Publisher) error {
	pub.StageStart(d.Name(), "running multi-reviewer debate")

	code := st.Code()
	tests, _ := st.Tests()
	task := st.Task()

	var allIssues []stage.ReviewIssue
	var previous []stage.ReviewIssue
	fixedIssues := 0
	consensus := false
	round := 0

	for round = 1; round <= d.cfg.MaxRounds; round++ {
		issues := d.runReviewers(ctx, pub, round, code, task, tests, previous)
		allIssues = append(allIssues, issues...)

		blocking := blockingIssues(issues)
		if len(blocking) == 0 {
			consensus = true
			break
		}

		fixed, err := d.rewrite(ctx, code, blocking)
		if err != nil {
			pub.StageError(d.Name(), fmt.Errorf("debate: round %d rewrite failed: %w", round, err))
			break
		}
		code = fixed
		fixedIssues += len(blocking)
		previous = issues
	}
	if round > d.cfg.MaxRounds {
		round = d.cfg.MaxRounds
	}

	st.SetCode(code)
	report := stage.DebateReport{
		TotalIssues: len(allIssues),
		FixedIssues: fixedIssues,
		Rounds:      round,
		Consensus:   consensus,
		AllIssues:   allIssues,
	}
	if err := st.SetDebate(report); err != nil {
		return err
	}

	pub.DebateResult(report.TotalIssues, report.FixedIssues, report.Rounds, report.Consensus)
	pub.StageEnd(d.Name(), report)
	return nil
}

// runReviewers fans the panel out with errgroup, tolerating individual
// reviewer failures: a reviewer whose call errors contributes no issues
// and the debate continues with the rest of the panel.
func (d *Debate) runReviewers(ctx context.Context, pub event.Publisher, round int, code, task, tests string, previous []stage.ReviewIssue) []stage.ReviewIssue {
	var mu sync.Mutex
	var issues []stage.ReviewIssue

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range d.cfg.Reviewers {
		r := r
		g.Go(func() error {
			pub.DebateProgress(round, d.cfg.MaxRounds, string(r), "reviewing", nil)
			found, err := d.review(gctx, r, code, task, tests, previous)
			if err != nil {
				pub.DebateProgress(round, d.cfg.MaxRounds, string(r), "error", err.Error())
				return nil
			}
			mu.Lock()
			issues = append(issues, found...)
			mu.Unlock()
			for _, iss := range found {
				pub.DebateProgress(round, d.cfg.MaxRounds, string(r), "issue", iss)
			}
			pub.DebateProgress(round, d.cfg.MaxRounds, string(r), "done", nil)
			return nil
		})
	}
	_ = g.Wait()
	return issues
}

func (d *Debate) review(ctx context.Context, r Reviewer, code, task, tests string, previous []stage.ReviewIssue) ([]stage.ReviewIssue, error) {
	prompt := buildReviewPrompt(r, code, task, tests, previous)
	opts := llm.Options{}
	if d.cfg.ReviewerModel != "" {
		opts.Model = d.cfg.ReviewerModel
	}

	obj, structured, err := llm.GenerateWithFallback(ctx, d.client, prompt, issuesSchema, opts, fallbackReview(r))
	if err != nil {
		return nil, err
	}
	return decodeIssues(obj, structured, r)
}

func buildReviewPrompt(r Reviewer, code, task, tests string, previous []stage.ReviewIssue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s reviewer. Find %s issues in the following Go code. ", r, r)
	b.WriteString("Report only genuine issues; an empty list is a valid answer.\n\n")
	fmt.Fprintf(&b, "Task: %s\n\nCode:\n%s\n", task, code)
	if tests != "" {
		b.WriteString("\nTests:\n")
		b.WriteString(tests)
	}
	if len(previous) > 0 {
		b.WriteString("\nPreviously reported issues (do not repeat these unless still present):\n")
		for _, p := range previous {
			fmt.Fprintf(&b, "- [%s/%s] %s\n", p.Category, p.Severity, p.Description)
		}
	}
	return b.String()
}

func fallbackReview(r Reviewer) llm.ManualParser {
	return func(text string) (any, error) {
		var issues []stage.ReviewIssue
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			sev := severityFromLine(line)
			if sev == "" {
				continue
			}
			issues = append(issues, stage.ReviewIssue{
				Category:    categoryFor(r),
				Severity:    sev,
				Description: line,
				Reviewer:    string(r),
			})
		}
		return issues, nil
	}
}

func severityFromLine(line string) stage.Severity {
	upper := strings.ToUpper(line)
	switch {
	case strings.HasPrefix(upper, "CRITICAL"):
		return stage.SeverityCritical
	case strings.HasPrefix(upper, "HIGH"):
		return stage.SeverityHigh
	case strings.HasPrefix(upper, "MEDIUM"):
		return stage.SeverityMedium
	case strings.HasPrefix(upper, "LOW"):
		return stage.SeverityLow
	default:
		return ""
	}
}

func categoryFor(r Reviewer) stage.ReviewCategory {
	switch r {
	case ReviewerSecurity:
		return stage.CategorySecurity
	case ReviewerPerformance:
		return stage.CategoryPerformance
	case ReviewerCorrectness:
		return stage.CategoryCorrectness
	default:
		return stage.CategoryCorrectness
	}
}

func decodeIssues(obj any, structured bool, r Reviewer) ([]stage.ReviewIssue, error) {
	if !structured {
		issues, ok := obj.([]stage.ReviewIssue)
		if !ok {
			return nil, fmt.Errorf("debate: unexpected fallback result type %T", obj)
		}
		return issues, nil
	}

	m, ok := obj.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("debate: unexpected structured result type %T", obj)
	}
	raw, _ := m["issues"].([]any)
	issues := make([]stage.ReviewIssue, 0, len(raw))
	for _, item := range raw {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		severity, _ := fields["severity"].(string)
		location, _ := fields["location"].(string)
		description, _ := fields["description"].(string)
		evidence, _ := fields["evidence"].(string)
		suggestion, _ := fields["suggestion"].(string)
		issues = append(issues, stage.ReviewIssue{
			Category:    categoryFor(r),
			Severity:    stage.Severity(severity),
			Location:    location,
			Description: description,
			Evidence:    evidence,
			Suggestion:  suggestion,
			Reviewer:    string(r),
		})
	}
	return issues, nil
}

func blockingIssues(issues []stage.ReviewIssue) []stage.ReviewIssue {
	var blocking []stage.ReviewIssue
	for _, iss := range issues {
		if iss.IsBlocking() {
			blocking = append(blocking, iss)
		}
	}
	return blocking
}

func (d *Debate) rewrite(ctx context.Context, code string, blocking []stage.ReviewIssue) (string, error) {
	var b strings.Builder
	b.WriteString("The following Go code has critical or high severity review findings. Rewrite it to address every finding below while preserving its public behavior. Emit only Go source, no prose.\n\n")
	for _, iss := range blocking {
		fmt.Fprintf(&b, "- [%s/%s] %s", iss.Category, iss.Severity, iss.Description)
		if iss.Suggestion != "" {
			fmt.Fprintf(&b, " (suggestion: %s)", iss.Suggestion)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nCode:\n")
	b.WriteString(code)

	text, err := d.client.Generate(ctx, b.String(), llm.Options{})
	if err != nil {
		return code, err
	}
	return extractGoSource(text), nil
}

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
	if last := len(lines) - 1; last >= 0 && strings.HasPrefix(strings.TrimSpace(lines[last]), "```") {
		lines = lines[:last]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
