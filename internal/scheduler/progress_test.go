package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBufferDropsOldestProgressWhenFull(t *testing.T) {
	buf := NewEventBuffer(4)

	buf.Publish(Event{Type: EventStarted})
	for i := 1; i <= 3; i++ {
		buf.Publish(Event{Type: EventProgress, Iteration: i})
	}
	// Full. The next publish evicts the oldest Progress, never Started.
	buf.Publish(Event{Type: EventProgress, Iteration: 4})

	events := buf.Drain()
	require.Len(t, events, 4)
	assert.Equal(t, EventStarted, events[0].Type)
	assert.Equal(t, 2, events[1].Iteration, "iteration 1 was evicted")
	assert.Equal(t, 4, events[3].Iteration)
}

func TestEventBufferKeepsTerminalWhenFull(t *testing.T) {
	buf := NewEventBuffer(4)

	buf.Publish(Event{Type: EventStarted})
	for i := 1; i <= 3; i++ {
		buf.Publish(Event{Type: EventProgress, Iteration: i})
	}
	buf.Publish(Event{Type: EventCompleted})

	events := buf.Drain()
	require.Len(t, events, 4)
	assert.Equal(t, EventCompleted, events[len(events)-1].Type)
}

func TestEventBufferDiscardsAfterTerminal(t *testing.T) {
	buf := NewEventBuffer(8)

	buf.Publish(Event{Type: EventStarted})
	buf.Publish(Event{Type: EventCancelled})
	buf.Publish(Event{Type: EventProgress, Iteration: 99})

	events := buf.Drain()
	require.Len(t, events, 2)
	assert.Equal(t, EventCancelled, events[1].Type)
}

func TestEventBufferNextBlocksUntilPublish(t *testing.T) {
	buf := NewEventBuffer(8)

	go func() {
		time.Sleep(10 * time.Millisecond)
		buf.Publish(Event{Type: EventStarted})
		buf.Publish(Event{Type: EventCompleted})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first, ok := buf.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, EventStarted, first.Type)

	second, ok := buf.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, EventCompleted, second.Type)

	_, ok = buf.Next(ctx)
	assert.False(t, ok, "stream ends after the terminal event")
}

func TestEventBufferNextHonorsContext(t *testing.T) {
	buf := NewEventBuffer(8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := buf.Next(ctx)
	assert.False(t, ok)
}

func TestEventTypeTerminal(t *testing.T) {
	assert.False(t, EventStarted.Terminal())
	assert.False(t, EventProgress.Terminal())
	assert.True(t, EventCompleted.Terminal())
	assert.True(t, EventFailed.Terminal())
	assert.True(t, EventCancelled.Terminal())
}
