package stageagents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kforge/codeforge/pkg/event"
	"github.com/kforge/codeforge/pkg/stage"
)

func TestDebuggerAgent_StructuredPath(t *testing.T) {
	client := &fakeClient{structObj: map[string]any{
		"error_type":       "test_failure",
		"fix_instructions": "handle the empty slice case",
		"confidence":       0.8,
	}}
	agent := NewDebuggerAgent(client)

	st := stage.NewState("task", "", false, "")
	st.SetCode("package main\n")
	st.SetValidationResults(stage.ValidationReport{
		Pytest: stage.ToolReport{Errors: "expected 1, got 0"},
	})
	_, set := st.ValidationResults()
	require.True(t, set)

	mgr := event.NewManager(nil)
	require.NoError(t, agent.Execute(context.Background(), st, mgr.For("t1")))

	result, ok := st.DebugResult()
	require.True(t, ok)
	assert.Equal(t, "test_failure", result.ErrorType)
	assert.Equal(t, 0.8, result.Confidence)
}

func TestDebuggerAgent_FallbackInfersErrorType(t *testing.T) {
	client := &fakeClient{structErr: assert.AnError, genTexts: []string{"check the bounds"}}
	agent := NewDebuggerAgent(client)

	st := stage.NewState("task", "", false, "")
	st.SetCode("package main\n")
	st.SetValidationResults(stage.ValidationReport{
		Mypy: stage.ToolReport{Errors: "type mismatch"},
	})
	_, set := st.ValidationResults()
	require.True(t, set)

	mgr := event.NewManager(nil)
	require.NoError(t, agent.Execute(context.Background(), st, mgr.For("t1")))

	result, ok := st.DebugResult()
	require.True(t, ok)
	assert.Equal(t, "type_error", result.ErrorType)
	assert.Equal(t, 0.3, result.Confidence)
}
