package bus

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func receive(t *testing.T, ch Subscription) any {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestPubSubBus_PublishSubscribe(t *testing.T) {
	b := New(0, testLogger())
	defer b.Close()

	state := b.Subscribe(TopicState)
	events := b.Subscribe(TopicEvent)

	b.Publish(TopicState, "connected")
	b.Publish(TopicEvent, 42)

	assert.Equal(t, "connected", receive(t, state))
	assert.Equal(t, 42, receive(t, events))

	select {
	case v := <-state:
		t.Fatalf("unexpected message on state topic: %v", v)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPubSubBus_MultipleTopics(t *testing.T) {
	b := New(4, testLogger())
	defer b.Close()

	both := b.Subscribe(TopicState, TopicEvent)
	b.Publish(TopicState, "s")
	b.Publish(TopicEvent, "e")

	assert.Equal(t, "s", receive(t, both))
	assert.Equal(t, "e", receive(t, both))
}

func TestPubSubBus_Ordering(t *testing.T) {
	b := New(16, testLogger())
	defer b.Close()

	sub := b.Subscribe(TopicEvent)
	for i := 0; i < 10; i++ {
		b.Publish(TopicEvent, i)
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, i, receive(t, sub))
	}
}

func TestPubSubBus_FullSubscriberMissesInsteadOfBlocking(t *testing.T) {
	b := New(2, testLogger())
	defer b.Close()

	stalled := b.Subscribe(TopicState)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			b.Publish(TopicState, i)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a subscriber that stopped reading")
	}

	// Only what fit in the buffer was kept
	assert.Equal(t, 0, receive(t, stalled))
	assert.Equal(t, 1, receive(t, stalled))

	fresh := b.Subscribe(TopicState)
	b.Publish(TopicState, "next")
	assert.Equal(t, "next", receive(t, fresh))
}

func TestPubSubBus_Unsubscribe(t *testing.T) {
	b := New(4, testLogger())
	defer b.Close()

	sub := b.Subscribe(TopicEvent)
	b.Unsubscribe(sub)

	// Unsubscribed channels are closed by the bus
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-sub:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	b.Unsubscribe(nil)
}

func TestPubSubBus_Close(t *testing.T) {
	b := New(4, testLogger())
	sub := b.Subscribe(TopicState)

	b.Close()
	b.Close()
	assert.True(t, b.Closed())

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-sub:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	// Operations after close neither block nor panic
	b.Publish(TopicState, "late")
	late := b.Subscribe(TopicState)
	_, ok := <-late
	assert.False(t, ok)
	b.Unsubscribe(late)
}

func TestPayloadType(t *testing.T) {
	assert.Equal(t, "<nil>", payloadType(nil))
	assert.Equal(t, "string", payloadType("x"))
}
