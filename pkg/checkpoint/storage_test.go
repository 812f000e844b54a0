package checkpoint

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kforge/codeforge/pkg/stage"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "checkpoints"))
	require.NoError(t, err)
	return s
}

func TestStorage_SaveLoadRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	cp := Checkpoint{
		Metadata: NewMetadata("task-1", "write a fibonacci function", "gpt-4"),
		State:    stage.Snapshot{Task: "write a fibonacci function", Code: "func fib(n int) int { return n }"},
	}
	require.NoError(t, s.Save(cp))

	got, ok, err := s.Load("task-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cp.Metadata.TaskID, got.Metadata.TaskID)
	assert.Equal(t, cp.State.Code, got.State.Code)
}

func TestStorage_LoadMissing(t *testing.T) {
	s := newTestStorage(t)
	got, ok, err := s.Load("does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestStorage_Delete(t *testing.T) {
	s := newTestStorage(t)
	meta := NewMetadata("task-2", "task", "gpt-4")
	require.NoError(t, s.Save(Checkpoint{Metadata: meta}))

	require.NoError(t, s.Delete("task-2"))
	_, ok, err := s.Load("task-2")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting a checkpoint that never existed is not an error.
	assert.NoError(t, s.Delete("never-existed"))
}

func TestStorage_ListActiveExcludesTerminal(t *testing.T) {
	s := newTestStorage(t)

	running := NewMetadata("running", "t", "gpt-4")
	paused := NewMetadata("paused", "t", "gpt-4")
	paused.Status = StatusPaused
	completed := NewMetadata("completed", "t", "gpt-4")
	completed.Status = StatusCompleted

	for _, m := range []Metadata{running, paused, completed} {
		require.NoError(t, s.Save(Checkpoint{Metadata: m}))
	}

	active, err := s.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 2)
	ids := map[string]bool{active[0].TaskID: true, active[1].TaskID: true}
	assert.True(t, ids["running"])
	assert.True(t, ids["paused"])
}

func TestStorage_ListHistorySortedByUpdatedAtDesc(t *testing.T) {
	s := newTestStorage(t)

	older := NewMetadata("older", "t", "gpt-4")
	older.UpdatedAt = time.Now().Add(-time.Hour)
	newer := NewMetadata("newer", "t", "gpt-4")

	require.NoError(t, s.Save(Checkpoint{Metadata: older}))
	require.NoError(t, s.Save(Checkpoint{Metadata: newer}))

	history, err := s.ListHistory()
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "newer", history[0].TaskID)
	assert.Equal(t, "older", history[1].TaskID)
}

func TestStorage_SaveRejectsEmptyTaskID(t *testing.T) {
	s := newTestStorage(t)
	err := s.Save(Checkpoint{Metadata: Metadata{}})
	assert.Error(t, err)
}
