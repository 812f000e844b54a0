package stageagents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kforge/codeforge/pkg/event"
	"github.com/kforge/codeforge/pkg/retrieval"
	"github.com/kforge/codeforge/pkg/stage"
)

func TestCoderAgent_GeneratesCodeWithNilIndex(t *testing.T) {
	code := "```go\npackage main\n\nfunc add(a, b int) int {\n\treturn a + b\n}\n```"
	client := &fakeClient{genTexts: []string{code}}
	agent := NewCoderAgent(client, nil)

	st := stage.NewState("add two numbers", "", false, "")
	mgr := event.NewManager(nil)
	require.NoError(t, agent.Execute(context.Background(), st, mgr.For("t1")))

	assert.Contains(t, st.Code(), "func add")
}

func TestOverlapsVerbatim_DetectsNearCopy(t *testing.T) {
	example := []retrieval.CodeExample{{Code: "func add(a, b int) int { return a + b }"}}
	assert.True(t, overlapsVerbatim("func add(a, b int) int { return a + b }", example))
	assert.False(t, overlapsVerbatim("type Stack struct { items []string }", example))
}
