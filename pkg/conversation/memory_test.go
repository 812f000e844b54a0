package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	calls []struct{ taskText, code string }
}

func (f *fakeSink) AddFromHistory(ctx context.Context, taskText, code string) error {
	f.calls = append(f.calls, struct{ taskText, code string }{taskText, code})
	return nil
}

func TestMemory_OnTaskCompleted_ForwardsOnlyWhenAllPassed(t *testing.T) {
	sink := &fakeSink{}
	m := NewMemory(sink)

	require.NoError(t, m.OnTaskCompleted(context.Background(), "write fib", "func fib() {}", false))
	assert.Empty(t, sink.calls)

	require.NoError(t, m.OnTaskCompleted(context.Background(), "write fib", "func fib() {}", true))
	require.Len(t, sink.calls, 1)
	assert.Equal(t, "write fib", sink.calls[0].taskText)
}

func TestMemory_OnTaskCompleted_NilSinkIsNoop(t *testing.T) {
	m := NewMemory(nil)
	assert.NoError(t, m.OnTaskCompleted(context.Background(), "t", "c", true))
}
