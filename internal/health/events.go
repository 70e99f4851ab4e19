// Package health exposes liveness/readiness probes and a bounded lifecycle
// event log for the frame producer service.
package health

import (
	"sync"
	"time"

	queuepkg "github.com/Workiva/go-datastructures/queue"
)

// EventKind names a lifecycle event worth surfacing to operators.
type EventKind string

const (
	EventRestart        EventKind = "restart"
	EventReinitEnter    EventKind = "reinit-enter"
	EventReinitExit     EventKind = "reinit-exit"
	EventCursorOverflow EventKind = "cursor-overflow"
	EventTickFailure    EventKind = "tick-failure"
)

// Event is one lifecycle occurrence recorded by the service.
type Event struct {
	Kind   EventKind `json:"kind"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// EventLog keeps a bounded, newest-last history of lifecycle events, fed
// through a Workiva/go-datastructures queue and drained into a fixed-size
// ring so producers never block on a slow reader.
type EventLog struct {
	q        *queuepkg.Queue
	capacity int

	mu  sync.Mutex
	buf []Event

	done chan struct{}
}

// NewEventLog starts a background drain goroutine and returns a log that
// retains at most capacity events. Callers must Close it when done.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = 64
	}
	l := &EventLog{
		q:        queuepkg.New(int64(capacity)),
		capacity: capacity,
		buf:      make([]Event, 0, capacity),
		done:     make(chan struct{}),
	}
	go l.drain()
	return l
}

// Push enqueues a lifecycle event. Never blocks the caller on the reader.
// After Close, Push is a no-op: the disposed queue's error is ignored.
func (l *EventLog) Push(kind EventKind, reason string, at time.Time) {
	_ = l.q.Put(Event{Kind: kind, Reason: reason, At: at})
}

func (l *EventLog) drain() {
	for {
		items, err := l.q.Get(1)
		if err != nil {
			close(l.done)
			return
		}
		l.mu.Lock()
		for _, it := range items {
			ev, ok := it.(Event)
			if !ok {
				continue
			}
			l.buf = append(l.buf, ev)
		}
		if over := len(l.buf) - l.capacity; over > 0 {
			l.buf = l.buf[over:]
		}
		l.mu.Unlock()
	}
}

// Recent returns up to n most recent events, oldest first. n<=0 returns all
// retained events.
func (l *EventLog) Recent(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.buf) {
		n = len(l.buf)
	}
	out := make([]Event, n)
	copy(out, l.buf[len(l.buf)-n:])
	return out
}

// Close disposes the underlying queue and waits for the drain goroutine to
// exit.
func (l *EventLog) Close() {
	l.q.Dispose()
	<-l.done
}
