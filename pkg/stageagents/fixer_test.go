package stageagents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kforge/codeforge/pkg/event"
	"github.com/kforge/codeforge/pkg/stage"
)

const origCode = `package main

func add(a, b int) int {
	return a - b
}
`

func TestSignaturesPreserved_RejectsUnpermittedChange(t *testing.T) {
	fixed := `package main

func add(a, b, c int) int {
	return a + b + c
}
`
	assert.False(t, signaturesPreserved(origCode, fixed, ""))
}

func TestSignaturesPreserved_AllowsPermittedChange(t *testing.T) {
	fixed := `package main

func add(a, b, c int) int {
	return a + b + c
}
`
	assert.True(t, signaturesPreserved(origCode, fixed, "add"))
}

func TestSignaturesPreserved_AllowsUnrelatedFix(t *testing.T) {
	fixed := `package main

func add(a, b int) int {
	return a + b
}
`
	assert.True(t, signaturesPreserved(origCode, fixed, ""))
}

func TestFixerAgent_DiscardsFixThatChangesSignature(t *testing.T) {
	fixed := `package main

func add(a, b, c int) int {
	return a + b + c
}
`
	client := &fakeClient{genTexts: []string{fixed}}
	agent := NewFixerAgent(client)

	st := stage.NewState("task", "", false, "")
	st.SetCode(origCode)
	st.SetDebugResult(stage.DebugResult{FixInstructions: "fix subtraction"})
	_, set := st.DebugResult()
	require.True(t, set)

	mgr := event.NewManager(nil)
	require.NoError(t, agent.Execute(context.Background(), st, mgr.For("t1")))

	assert.Equal(t, origCode, st.Code(), "a fix that changes an unmarked signature must be discarded")
	assert.Equal(t, 1, st.Iteration())
}
