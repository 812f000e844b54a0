package stageagents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kforge/codeforge/pkg/event"
	"github.com/kforge/codeforge/pkg/stage"
)

func TestIntentAgent_StructuredPath(t *testing.T) {
	client := &fakeClient{structObj: map[string]any{
		"type": "create", "confidence": 0.9, "complexity": "medium", "reasoning": "wants new code",
	}}
	agent := NewIntentAgent(client)
	st := stage.NewState("write a function", "", false, "")
	mgr := event.NewManager(nil)

	require.NoError(t, agent.Execute(context.Background(), st, mgr.For("t1")))

	result, ok := st.IntentResult()
	require.True(t, ok)
	assert.Equal(t, stage.IntentCreate, result.Type)
	assert.Equal(t, 0.9, result.Confidence)
}

func TestIntentAgent_FallbackPath(t *testing.T) {
	client := &fakeClient{structErr: errors.New("structured output unavailable"), genTexts: []string{""}}
	agent := NewIntentAgent(client)
	st := stage.NewState("please fix this bug in my code", "", false, "")
	mgr := event.NewManager(nil)

	require.NoError(t, agent.Execute(context.Background(), st, mgr.For("t2")))

	result, ok := st.IntentResult()
	require.True(t, ok)
	assert.Equal(t, stage.IntentDebug, result.Type)
	assert.LessOrEqual(t, result.Confidence, 0.6)
}
