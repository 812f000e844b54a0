package event

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBufferSize is the per-subscriber queue's soft capacity: once
// reached, the back-pressure policy starts dropping droppable events to
// make room for new ones. Structural events always get in regardless.
const DefaultBufferSize = 256

// CancelFunc is invoked when a task's last subscriber disconnects, so the
// Workflow Engine can record status=paused after the current stage ends.
type CancelFunc func(taskID string)

// Manager is the Event Stream Manager: it owns one ordered queue per task
// and fans out to that task's subscribers.
type Manager struct {
	mu           sync.Mutex
	tasks        map[string]*taskStream
	bufferSize   int
	onDisconnect CancelFunc
}

// NewManager creates an event Manager. onDisconnect, if non-nil, is called
// when a task transitions from having subscribers to having none.
func NewManager(onDisconnect CancelFunc) *Manager {
	return &Manager{
		tasks:        make(map[string]*taskStream),
		bufferSize:   DefaultBufferSize,
		onDisconnect: onDisconnect,
	}
}

type taskStream struct {
	mu          sync.Mutex
	seq         atomic.Uint64
	subscribers map[int]*subscriber
	nextSubID   int
	done        bool
}

// subscriber holds its pending events in a plain slice guarded by qmu, so
// the back-pressure policy can selectively evict a buffered event (rather
// than being limited to a fixed-capacity channel's FIFO-only semantics).
// notify is signaled (non-blocking) after every enqueue; pump drains the
// queue into the public channel as capacity allows.
type subscriber struct {
	qmu     sync.Mutex
	queue   []Event
	notify  chan struct{}
	closed  bool
	closeCh chan struct{}
}

func newSubscriber() *subscriber {
	return &subscriber{
		notify:  make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}
}

func (s *subscriber) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) popFront() (Event, bool) {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if len(s.queue) == 0 {
		return Event{}, false
	}
	ev := s.queue[0]
	s.queue = s.queue[1:]
	return ev, true
}

func (m *Manager) stream(taskID string) *taskStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.tasks[taskID]
	if !ok {
		ts = &taskStream{subscribers: make(map[int]*subscriber)}
		m.tasks[taskID] = ts
	}
	return ts
}

// Subscribe registers a new subscriber for taskID and returns an events
// channel plus an unsubscribe function. The returned channel is closed
// after unsubscribe runs, or once a terminal event has been delivered and
// drained.
func (m *Manager) Subscribe(taskID string) (<-chan Event, func()) {
	ts := m.stream(taskID)
	ts.mu.Lock()
	id := ts.nextSubID
	ts.nextSubID++
	sub := newSubscriber()
	ts.subscribers[id] = sub
	ts.mu.Unlock()

	out := make(chan Event, 1)
	stop := make(chan struct{})
	go sub.pump(out, stop)

	unsub := func() {
		ts.mu.Lock()
		if s, ok := ts.subscribers[id]; ok {
			delete(ts.subscribers, id)
			if !s.closed {
				s.closed = true
				close(s.closeCh)
			}
		}
		empty := len(ts.subscribers) == 0
		ts.mu.Unlock()
		close(stop)
		if empty && m.onDisconnect != nil {
			m.onDisconnect(taskID)
		}
	}
	return out, unsub
}

// pump forwards queued events to out in order until stopped, or until
// closeCh fires and the remaining queue has been drained.
func (s *subscriber) pump(out chan<- Event, stop <-chan struct{}) {
	defer close(out)
	for {
		if ev, ok := s.popFront(); ok {
			select {
			case out <- ev:
				continue
			case <-stop:
				return
			}
		}
		select {
		case <-s.notify:
			continue
		case <-s.closeCh:
			for {
				ev, ok := s.popFront()
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-stop:
					return
				}
			}
		case <-stop:
			return
		}
	}
}

// Publish enqueues an event for taskID, assigning it the next sequence
// number, and delivers it to every current subscriber under the
// back-pressure policy.
func (m *Manager) Publish(taskID string, kind Kind, payload any) Event {
	ts := m.stream(taskID)
	ev := Event{
		Kind:      kind,
		TaskID:    taskID,
		Seq:       ts.seq.Add(1),
		Timestamp: time.Now(),
		Payload:   payload,
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.done {
		return ev
	}
	for _, sub := range ts.subscribers {
		enqueue(sub, ev, m.bufferSize)
	}
	if IsTerminal(kind) {
		ts.done = true
		for id, sub := range ts.subscribers {
			if !sub.closed {
				sub.closed = true
				close(sub.closeCh)
			}
			delete(ts.subscribers, id)
		}
	}
	return ev
}

// enqueue applies the back-pressure policy. Structural events are always
// appended: §4.4 requires they never be dropped. When the queue is at or
// over bufferSize, the oldest queued droppable event is evicted to make
// room; if none is queued, the queue grows past bufferSize. Droppable
// events (thinking_in_progress, sub-warning log) are appended while the
// queue is under bufferSize; once at or over capacity, the manager first
// tries to overwrite an existing droppable event in place, and if none
// exists, drops the incoming droppable event rather than grow the queue
// for it.
func enqueue(sub *subscriber, ev Event, bufferSize int) {
	sub.qmu.Lock()
	defer sub.qmu.Unlock()

	if IsStructural(ev.Kind) {
		if len(sub.queue) >= bufferSize {
			for i, queued := range sub.queue {
				if isDroppable(queued) {
					sub.queue = append(sub.queue[:i], sub.queue[i+1:]...)
					break
				}
			}
		}
		sub.queue = append(sub.queue, ev)
		sub.wake()
		return
	}

	if len(sub.queue) < bufferSize {
		sub.queue = append(sub.queue, ev)
		sub.wake()
		return
	}

	for i, queued := range sub.queue {
		if isDroppable(queued) {
			sub.queue[i] = ev
			sub.wake()
			return
		}
	}
}

func isDroppable(ev Event) bool {
	if ev.Kind == KindThinkingInProgress {
		return true
	}
	if ev.Kind == KindLog {
		if lp, ok := ev.Payload.(LogPayload); ok {
			return logLevelRank[lp.Level] < logLevelRank[LogWarning]
		}
	}
	return false
}

// Close releases resources for taskID without emitting a terminal event;
// used when a task is deleted outright.
func (m *Manager) Close(taskID string) {
	m.mu.Lock()
	ts, ok := m.tasks[taskID]
	if ok {
		delete(m.tasks, taskID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for id, sub := range ts.subscribers {
		if !sub.closed {
			sub.closed = true
			close(sub.closeCh)
		}
		delete(ts.subscribers, id)
	}
}

// WaitFor blocks until ctx is done or the stream becomes terminal,
// whichever comes first. Used by synchronous callers (e.g. tests) that
// need to drain a stream to completion.
func WaitFor(ctx context.Context, ch <-chan Event) ([]Event, error) {
	var events []Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events, nil
			}
			events = append(events, ev)
			if IsTerminal(ev.Kind) {
				return events, nil
			}
		case <-ctx.Done():
			return events, ctx.Err()
		}
	}
}
