package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetadata_AdvanceNeverMovesUpdatedAtBackward(t *testing.T) {
	meta := NewMetadata("task-1", "text", "gpt-4")
	future := meta.UpdatedAt.Add(time.Hour)
	meta.UpdatedAt = future

	restore := timeNow
	timeNow = func() time.Time { return future.Add(-time.Minute) }
	defer func() { timeNow = restore }()

	advanced := meta.Advance("planning", StatusRunning, 1)
	assert.False(t, advanced.UpdatedAt.Before(future), "updated_at must never move backward")
}

func TestStatus_IsTerminalAndIsActive(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.False(t, StatusPaused.IsTerminal())

	assert.True(t, StatusRunning.IsActive())
	assert.True(t, StatusPaused.IsActive())
	assert.False(t, StatusCompleted.IsActive())
	assert.False(t, StatusFailed.IsActive())
}
