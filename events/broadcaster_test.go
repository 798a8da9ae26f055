package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestSubscriberReceivesEventsInOrder(t *testing.T) {
	b := NewBroadcaster(16)
	defer b.Close()

	ch, cancel := b.Subscribe(16)
	defer cancel()

	b.Publish(1, EventSessionStarted, true, map[string]any{"sessionId": "abc"})
	b.Publish(1, EventPressesUpdated, true, nil)
	b.Publish(1, EventSessionCompleted, false, nil)

	first := recv(t, ch)
	assert.Equal(t, EventSessionStarted, first.Type)
	assert.Equal(t, uint(1), first.MachineID)
	assert.True(t, first.IsLive)
	assert.Equal(t, "abc", first.Payload["sessionId"])
	assert.False(t, first.At.IsZero())

	assert.Equal(t, EventPressesUpdated, recv(t, ch).Type)

	last := recv(t, ch)
	assert.Equal(t, EventSessionCompleted, last.Type)
	assert.False(t, last.IsLive)
}

func TestCancelledSubscriberStopsReceiving(t *testing.T) {
	b := NewBroadcaster(16)
	defer b.Close()

	ch, cancel := b.Subscribe(16)
	cancel()

	b.Publish(1, EventSessionStarted, true, nil)

	select {
	case ev := <-ch:
		t.Fatalf("received %s after cancel", ev.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	// A size-1 queue with no dispatcher consuming fast enough must drop
	// rather than block the publisher.
	b := NewBroadcaster(1)
	b.Close() // dispatcher stops; the queue can only absorb one event

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(1, EventPressesUpdated, true, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
}

func TestSlowSubscriberDoesNotStallOthers(t *testing.T) {
	b := NewBroadcaster(16)
	defer b.Close()

	slow, cancelSlow := b.Subscribe(1)
	defer cancelSlow()
	fast, cancelFast := b.Subscribe(16)
	defer cancelFast()

	for i := 0; i < 10; i++ {
		b.Publish(1, EventPressesUpdated, true, nil)
	}

	// The fast subscriber sees everything even though the slow one's buffer
	// overflowed after the first event.
	for i := 0; i < 10; i++ {
		recv(t, fast)
	}
	require.Len(t, slow, 1)
}
