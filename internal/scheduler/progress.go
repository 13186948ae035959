package scheduler

import (
	"context"
	"sync"
)

// EventType tags progress stream events.
type EventType string

const (
	EventStarted   EventType = "started"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventCancelled EventType = "cancelled"
)

// Terminal reports whether the event ends a run's stream.
func (t EventType) Terminal() bool {
	return t == EventCompleted || t == EventFailed || t == EventCancelled
}

// Event is one entry of a run's progress stream. Started precedes all
// Progress events; exactly one terminal event closes the stream. Within
// a run Iteration is monotone and BestFitness is the monotone
// best-so-far.
type Event struct {
	Type         EventType `json:"type"`
	RunID        string    `json:"runId,omitempty"`
	Algorithm    string    `json:"algorithm,omitempty"`
	SessionCount int       `json:"sessionCount,omitempty"`
	Phase        string    `json:"phase,omitempty"`
	Percent      float64   `json:"percent"`
	BestFitness  float64   `json:"bestFitness"`
	Iteration    int       `json:"iteration"`
	ElapsedMs    int64     `json:"elapsedMs"`
	Reason       string    `json:"reason,omitempty"`
	Unscheduled  int       `json:"unscheduled,omitempty"`
}

// ProgressSink receives events from a running solver. Publish must never
// block; implementations bound their buffers and shed load themselves.
type ProgressSink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the ProgressSink interface.
type SinkFunc func(Event)

// Publish calls the wrapped function.
func (f SinkFunc) Publish(e Event) { f(e) }

// NopSink discards all events.
var NopSink ProgressSink = SinkFunc(func(Event) {})

// EventBuffer is a bounded, non-blocking ProgressSink with a blocking
// consumer side. When full it drops the oldest intermediate Progress
// event; Started and terminal events are never dropped.
type EventBuffer struct {
	mu       sync.Mutex
	pending  []Event
	capacity int
	wake     chan struct{}
	finished bool
}

// NewEventBuffer builds a buffer holding at most capacity pending events.
// Capacities below 4 are raised so Started and a terminal always fit.
func NewEventBuffer(capacity int) *EventBuffer {
	if capacity < 4 {
		capacity = 4
	}
	return &EventBuffer{
		capacity: capacity,
		wake:     make(chan struct{}, 1),
	}
}

// Publish appends the event, evicting the oldest Progress entry when the
// buffer is full. Events published after a terminal are discarded.
func (b *EventBuffer) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	if len(b.pending) >= b.capacity {
		dropped := false
		for i, p := range b.pending {
			if p.Type == EventProgress {
				b.pending = append(b.pending[:i], b.pending[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped && e.Type == EventProgress {
			return
		}
	}
	b.pending = append(b.pending, e)
	if e.Type.Terminal() {
		b.finished = true
	}
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Next blocks until an event is available or the context ends. It
// returns false once the terminal event has been consumed or the context
// is done.
func (b *EventBuffer) Next(ctx context.Context) (Event, bool) {
	for {
		b.mu.Lock()
		if len(b.pending) > 0 {
			e := b.pending[0]
			b.pending = b.pending[1:]
			b.mu.Unlock()
			return e, true
		}
		finished := b.finished
		b.mu.Unlock()
		if finished {
			return Event{}, false
		}
		select {
		case <-ctx.Done():
			return Event{}, false
		case <-b.wake:
		}
	}
}

// Drain returns and clears all pending events without blocking.
func (b *EventBuffer) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	return out
}
