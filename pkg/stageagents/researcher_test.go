package stageagents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kforge/codeforge/pkg/event"
	"github.com/kforge/codeforge/pkg/stage"
)

func TestResearcherAgent_CachesByFingerprint(t *testing.T) {
	agent := NewResearcherAgent(ResearcherConfig{})
	st := stage.NewState("build a cache", "", false, "")
	mgr := event.NewManager(nil)

	require.NoError(t, agent.Execute(context.Background(), st, mgr.For("t1")))
	_, ok := st.Context()
	require.True(t, ok)

	key := fingerprint("build a cache", "", false)
	_, cached := agent.lookupCache(key)
	assert.True(t, cached, "a researched context must be cached under its fingerprint")
}

func TestFingerprint_DifferentInputsDifferentKeys(t *testing.T) {
	a := fingerprint("task", "create", false)
	b := fingerprint("task", "create", true)
	assert.NotEqual(t, a, b)
}
