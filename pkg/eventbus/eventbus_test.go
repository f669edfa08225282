package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := New()
	_, ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish("extract_meta", map[string]any{"operation_id": "abc"})

	select {
	case msg := <-ch:
		assert.Equal(t, "extract_meta", msg.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestPublishFansOutToMultipleSubscribers(t *testing.T) {
	bus := New()
	_, ch1, cancel1 := bus.Subscribe()
	defer cancel1()
	_, ch2, cancel2 := bus.Subscribe()
	defer cancel2()

	bus.Publish("kind", "payload")

	for _, ch := range []<-chan Message{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for message")
		}
	}
}

func TestPublishNeverBlocksOnFullBuffer(t *testing.T) {
	bus := New()
	_, ch, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBufferSize+10; i++ {
			bus.Publish("kind", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a full subscriber buffer")
	}

	// The subscriber should have been dropped once its buffer filled; drain
	// the buffered messages and confirm the channel was closed afterward.
	closed := false
	for i := 0; i < subscriberBufferSize+10; i++ {
		if _, open := <-ch; !open {
			closed = true
			break
		}
	}
	require.True(t, closed, "expected subscriber channel to be closed after buffer overflow")
}

func TestCancelUnsubscribes(t *testing.T) {
	bus := New()
	_, ch, cancel := bus.Subscribe()
	cancel()

	bus.Publish("kind", "payload")

	_, open := <-ch
	assert.False(t, open)
}
