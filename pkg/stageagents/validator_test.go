package stageagents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kforge/codeforge/pkg/event"
	"github.com/kforge/codeforge/pkg/stage"
)

func TestValidatorAgent_CleanCodePassesQuickAndSecurityChecks(t *testing.T) {
	agent := NewValidatorAgent()

	st := stage.NewState("task", "", false, "")
	st.SetCode("package main\n\nfunc add(a, b int) int {\n\treturn a + b\n}\n")

	mgr := event.NewManager(nil)
	require.NoError(t, agent.Execute(context.Background(), st, mgr.For("t1")))

	report, ok := st.ValidationResults()
	require.True(t, ok)
	assert.True(t, report.Pytest.Success)
	assert.True(t, report.Bandit.Success)
}

func TestValidatorAgent_FlagsSecurityIssueEvenIfCodeCompiles(t *testing.T) {
	agent := NewValidatorAgent()

	st := stage.NewState("task", "", false, "")
	st.SetCode("package main\n\nimport \"crypto/md5\"\n\nfunc hash(s string) [16]byte {\n\treturn md5.Sum([]byte(s))\n}\n")

	mgr := event.NewManager(nil)
	require.NoError(t, agent.Execute(context.Background(), st, mgr.For("t1")))

	report, ok := st.ValidationResults()
	require.True(t, ok)
	assert.True(t, report.Pytest.Success)
	assert.False(t, report.Bandit.Success)
	assert.False(t, report.AllPassed)
}
