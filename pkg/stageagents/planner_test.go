package stageagents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kforge/codeforge/pkg/event"
	"github.com/kforge/codeforge/pkg/stage"
)

func TestValidTopologicalOrder(t *testing.T) {
	ok := validTopologicalOrder([]stage.FunctionSpec{
		{Name: "a"},
		{Name: "b", Dependencies: []string{"a"}},
		{Name: "c", Dependencies: []string{"a", "b"}},
	})
	assert.True(t, ok)

	bad := validTopologicalOrder([]stage.FunctionSpec{
		{Name: "a", Dependencies: []string{"b"}},
		{Name: "b"},
	})
	assert.False(t, bad)
}

func TestPlannerAgent_DiscardsOutOfOrderFunctions(t *testing.T) {
	client := &fakeClient{structObj: map[string]any{
		"text": "do the thing",
		"functions": []any{
			map[string]any{"name": "a", "signature": "func a()", "dependencies": []any{"b"}},
			map[string]any{"name": "b", "signature": "func b()"},
		},
	}}
	agent := NewPlannerAgent(client)
	st := stage.NewState("task", "", false, "")
	require.NoError(t, st.SetIntentResult(stage.IntentResult{Type: stage.IntentCreate}))
	mgr := event.NewManager(nil)

	require.NoError(t, agent.Execute(context.Background(), st, mgr.For("t1")))

	plan, ok := st.Plan()
	require.True(t, ok)
	assert.Empty(t, plan.Functions, "out-of-order dependencies must discard the function list")
	assert.Equal(t, "do the thing", plan.Text)
}

func TestPlannerAgent_SynthesizesEmptyPlan(t *testing.T) {
	client := &fakeClient{structObj: map[string]any{"text": ""}}
	agent := NewPlannerAgent(client)
	st := stage.NewState("implement a stack", "", false, "")
	require.NoError(t, st.SetIntentResult(stage.IntentResult{Type: stage.IntentCreate}))
	mgr := event.NewManager(nil)

	require.NoError(t, agent.Execute(context.Background(), st, mgr.For("t2")))

	plan, ok := st.Plan()
	require.True(t, ok)
	assert.Contains(t, plan.Text, "implement a stack")
}
