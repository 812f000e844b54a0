package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_PublishSubscribe_Ordering(t *testing.T) {
	m := NewManager(nil)
	ch, unsub := m.Subscribe("task-1")
	defer unsub()

	p := m.For("task-1")
	p.StageStart("planning", "starting")
	p.StageProgress("planning", "halfway", nil)
	p.StageEnd("planning", "ok")
	p.FinalResult(map[string]any{"code": "package main"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	events, err := WaitFor(ctx, ch)
	require.NoError(t, err)

	require.Len(t, events, 4)
	assert.Equal(t, KindStageStart, events[0].Kind)
	assert.Equal(t, KindStageProgress, events[1].Kind)
	assert.Equal(t, KindStageEnd, events[2].Kind)
	assert.Equal(t, KindFinalResult, events[3].Kind)

	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Seq, events[i-1].Seq)
	}
}

func TestManager_TerminalEventClosesChannel(t *testing.T) {
	m := NewManager(nil)
	ch, unsub := m.Subscribe("task-2")
	defer unsub()

	m.For("task-2").WorkflowError(errors.New("boom"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	events, err := WaitFor(ctx, ch)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, KindWorkflowError, events[0].Kind)

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after a terminal event")
}

func TestManager_Unsubscribe_TriggersOnDisconnect(t *testing.T) {
	disconnected := make(chan string, 1)
	m := NewManager(func(taskID string) { disconnected <- taskID })

	_, unsub := m.Subscribe("task-3")
	unsub()

	select {
	case taskID := <-disconnected:
		assert.Equal(t, "task-3", taskID)
	case <-time.After(time.Second):
		t.Fatal("onDisconnect was not called")
	}
}

func TestEnqueue_DropsThinkingInProgressBeforeStructural(t *testing.T) {
	sub := newSubscriber()
	bufferSize := 2

	enqueue(sub, Event{Kind: KindThinkingInProgress, Seq: 1}, bufferSize)
	enqueue(sub, Event{Kind: KindThinkingInProgress, Seq: 2}, bufferSize)
	// Queue is now at capacity with two droppable events; a structural
	// event must still get in by evicting one of them.
	enqueue(sub, Event{Kind: KindStageEnd, Seq: 3}, bufferSize)

	require.Len(t, sub.queue, 2)
	var sawStageEnd bool
	for _, ev := range sub.queue {
		if ev.Kind == KindStageEnd {
			sawStageEnd = true
		}
	}
	assert.True(t, sawStageEnd, "stage_end must displace a droppable thinking_in_progress")
}

func TestEnqueue_NeverDropsStructuralEvents(t *testing.T) {
	sub := newSubscriber()
	bufferSize := 2

	enqueue(sub, Event{Kind: KindStageStart, Seq: 1}, bufferSize)
	enqueue(sub, Event{Kind: KindStageStart, Seq: 2}, bufferSize)
	// Queue is full of structural events with nothing droppable to evict;
	// the new structural event must still be appended, growing the queue.
	enqueue(sub, Event{Kind: KindStageStart, Seq: 3}, bufferSize)

	require.Len(t, sub.queue, 3, "structural events are never dropped even over capacity")
}

func TestEnqueue_DropsLowSeverityLogsOverCapacity(t *testing.T) {
	sub := newSubscriber()
	bufferSize := 1

	enqueue(sub, Event{Kind: KindLog, Seq: 1, Payload: LogPayload{Level: LogDebug}}, bufferSize)
	// At capacity; the debug-level log is droppable and gets overwritten.
	enqueue(sub, Event{Kind: KindLog, Seq: 2, Payload: LogPayload{Level: LogWarning}}, bufferSize)

	require.Len(t, sub.queue, 1)
	lp, ok := sub.queue[0].Payload.(LogPayload)
	require.True(t, ok)
	assert.Equal(t, LogWarning, lp.Level, "the warning-level log should have displaced the debug-level one")
}

func TestIsStructural(t *testing.T) {
	assert.True(t, IsStructural(KindFinalResult))
	assert.True(t, IsStructural(KindStageStart))
	assert.False(t, IsStructural(KindThinkingInProgress))
	assert.False(t, IsStructural(KindLog))
}
