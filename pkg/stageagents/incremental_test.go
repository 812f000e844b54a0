package stageagents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kforge/codeforge/pkg/event"
	"github.com/kforge/codeforge/pkg/stage"
)

func TestIncrementalCoder_GeneratesFunctionPerSpec(t *testing.T) {
	fn := "func add(a, b int) int {\n\treturn a + b\n}"
	client := &fakeClient{genTexts: []string{fn}}
	agent := NewIncrementalCoder(client, nil)

	st := stage.NewState("add two numbers", "", true, "")
	require.NoError(t, st.SetPlan(stage.Plan{
		Text: "implement add",
		Functions: []stage.FunctionSpec{
			{Name: "add", Signature: "func add(a, b int) int"},
		},
	}))

	mgr := event.NewManager(nil)
	require.NoError(t, agent.Execute(context.Background(), st, mgr.For("t1")))

	assert.Contains(t, st.Code(), "func add")
}
