package debate

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kforge/codeforge/pkg/event"
	"github.com/kforge/codeforge/pkg/llm"
	"github.com/kforge/codeforge/pkg/stage"
)

// scriptedClient plays back structSeq (for GenerateStructured) and genTexts
// (for Generate, the rewrite path) in call order. Safe for the concurrent
// reviewer fan-out: every access is behind mu.
type scriptedClient struct {
	mu        sync.Mutex
	structSeq []map[string]any
	structIdx int
	genTexts  []string
	genIdx    int
}

func (c *scriptedClient) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.genTexts) == 0 {
		return "package main\n", nil
	}
	idx := c.genIdx
	if idx >= len(c.genTexts) {
		idx = len(c.genTexts) - 1
	}
	c.genIdx++
	return c.genTexts[idx], nil
}

func (c *scriptedClient) GenerateStream(ctx context.Context, prompt string, opts llm.Options) (<-chan llm.Delta, <-chan error) {
	d := make(chan llm.Delta)
	e := make(chan error, 1)
	close(d)
	close(e)
	return d, e
}

func (c *scriptedClient) Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	return c.Generate(ctx, "", opts)
}

func (c *scriptedClient) GenerateStructured(ctx context.Context, prompt string, schema *llm.JSONSchema, opts llm.Options) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.structSeq) == 0 {
		return map[string]any{"issues": []any{}}, nil
	}
	idx := c.structIdx
	if idx >= len(c.structSeq) {
		idx = len(c.structSeq) - 1
	}
	c.structIdx++
	return c.structSeq[idx], nil
}

func TestDebate_ConsensusOnFirstRoundWithNoIssues(t *testing.T) {
	client := &scriptedClient{structSeq: []map[string]any{{"issues": []any{}}}}
	d := New(client, Config{})

	st := stage.NewState("task", "", false, "")
	st.SetCode("package main\n")
	mgr := event.NewManager(nil)

	require.NoError(t, d.Execute(context.Background(), st, mgr.For("t1")))

	report, ok := st.Debate()
	require.True(t, ok)
	assert.True(t, report.Consensus)
	assert.Equal(t, 1, report.Rounds)
	assert.Equal(t, 0, report.TotalIssues)
}

// single-reviewer config keeps the per-round issue count deterministic:
// with the full three-reviewer panel, round boundaries don't line up with
// structSeq entries since reviewers run concurrently.
func singleReviewer(r Reviewer, maxRounds int) Config {
	return Config{Reviewers: []Reviewer{r}, MaxRounds: maxRounds}
}

func TestDebate_FixesCriticalIssueThenConverges(t *testing.T) {
	client := &scriptedClient{
		structSeq: []map[string]any{
			{"issues": []any{
				map[string]any{"severity": "critical", "description": "SQL built via string concatenation"},
			}},
			{"issues": []any{}},
		},
		genTexts: []string{"package main\n\nfunc query() {}\n"},
	}
	d := New(client, singleReviewer(ReviewerSecurity, 0))

	st := stage.NewState("task", "", false, "")
	st.SetCode("package main\n\nfunc query(id string) { _ = \"SELECT * FROM users WHERE id = \" + id }\n")
	mgr := event.NewManager(nil)

	require.NoError(t, d.Execute(context.Background(), st, mgr.For("t1")))

	report, ok := st.Debate()
	require.True(t, ok)
	assert.True(t, report.Consensus)
	assert.Equal(t, 2, report.Rounds)
	assert.Equal(t, 1, report.TotalIssues)
	assert.Equal(t, 1, report.FixedIssues)
	assert.Contains(t, st.Code(), "func query()")
}

func TestDebate_StopsAtMaxRoundsWithoutConsensus(t *testing.T) {
	issue := map[string]any{"issues": []any{
		map[string]any{"severity": "high", "description": "still racy"},
	}}
	client := &scriptedClient{
		structSeq: []map[string]any{issue, issue},
		genTexts:  []string{"package main\n", "package main\n"},
	}
	d := New(client, singleReviewer(ReviewerCorrectness, 2))

	st := stage.NewState("task", "", false, "")
	st.SetCode("package main\n")
	mgr := event.NewManager(nil)

	require.NoError(t, d.Execute(context.Background(), st, mgr.For("t1")))

	report, ok := st.Debate()
	require.True(t, ok)
	assert.False(t, report.Consensus)
	assert.Equal(t, 2, report.Rounds)
	assert.Equal(t, 2, report.TotalIssues)
}

func TestBlockingIssues_FiltersBySeverity(t *testing.T) {
	issues := []stage.ReviewIssue{
		{Severity: stage.SeverityLow},
		{Severity: stage.SeverityHigh},
		{Severity: stage.SeverityMedium},
		{Severity: stage.SeverityCritical},
	}
	blocking := blockingIssues(issues)
	assert.Len(t, blocking, 2)
}
