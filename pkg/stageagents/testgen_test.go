package stageagents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kforge/codeforge/pkg/event"
	"github.com/kforge/codeforge/pkg/stage"
)

func TestTestGeneratorAgent_ValidTestsAreKept(t *testing.T) {
	tests := "```go\npackage main\n\nimport \"testing\"\n\nfunc TestAdd(t *testing.T) {\n\tif 1+1 != 2 {\n\t\tt.Fatal(\"math broke\")\n\t}\n}\n```"
	client := &fakeClient{genTexts: []string{tests}}
	agent := NewTestGeneratorAgent(client)

	st := stage.NewState("task", "", false, "")
	mgr := event.NewManager(nil)
	require.NoError(t, agent.Execute(context.Background(), st, mgr.For("t1")))

	got, ok := st.Tests()
	require.True(t, ok)
	assert.Contains(t, got, "func TestAdd")
}

func TestTestGeneratorAgent_InvalidSyntaxFallsBackToEmpty(t *testing.T) {
	client := &fakeClient{genTexts: []string{"this is not valid go {{{"}}
	agent := NewTestGeneratorAgent(client)

	st := stage.NewState("task", "", false, "")
	mgr := event.NewManager(nil)
	require.NoError(t, agent.Execute(context.Background(), st, mgr.For("t1")))

	got, ok := st.Tests()
	require.True(t, ok)
	assert.Empty(t, got)
}

func TestTestGeneratorAgent_GenerateErrorFallsBackToEmpty(t *testing.T) {
	client := &fakeClient{genErr: assert.AnError}
	agent := NewTestGeneratorAgent(client)

	st := stage.NewState("task", "", false, "")
	mgr := event.NewManager(nil)
	require.NoError(t, agent.Execute(context.Background(), st, mgr.For("t1")))

	got, ok := st.Tests()
	require.True(t, ok)
	assert.Empty(t, got)
}
