// Package bus provides the per-channel publish/subscribe surface.
//
// Each channel owns one bus. Snapshots are published on TopicState, typed
// events on TopicEvent and session-stamped events on TopicSession.
// Subscribers receive values on a buffered Go channel. Delivery is lossy: a
// subscriber whose buffer is full misses the value and the publisher never
// waits for it. Close shuts the bus down and closes every subscription
// channel.
package bus

import (
	"log/slog"
	"reflect"
	"sync"

	"github.com/cskr/pubsub"
)

// Topics shared by all channels
const (
	TopicState   = "state"
	TopicEvent   = "event"
	TopicSession = "session"
)

// DefaultCapacity is the per-subscriber buffer size
const DefaultCapacity = 128

// Subscription receives published values until unsubscribed or the bus closes
type Subscription chan any

// MessageBus is the publish/subscribe contract channels depend on
type MessageBus interface {
	Publish(topic string, msg any)
	Subscribe(topics ...string) Subscription
	Unsubscribe(ch Subscription, topics ...string)
	Close()
}

// PubSubBus implements MessageBus on github.com/cskr/pubsub
type PubSubBus struct {
	ps     *pubsub.PubSub
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// New creates a bus. A capacity <= 0 uses DefaultCapacity.
func New(capacity int, logger *slog.Logger) *PubSubBus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PubSubBus{
		ps:     pubsub.New(capacity),
		logger: logger,
	}
}

// Publish offers msg to every subscriber of topic without blocking.
// Subscribers with a full buffer miss it. No-op after Close.
func (b *PubSubBus) Publish(topic string, msg any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Debug("publish after close dropped", "topic", topic, "payload_type", payloadType(msg))
		return
	}
	b.ps.TryPub(msg, topic)
}

// Subscribe returns a channel receiving messages for topics. After Close it
// returns an already closed channel.
func (b *PubSubBus) Subscribe(topics ...string) Subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		ch := make(Subscription)
		close(ch)
		return ch
	}

	ch := b.ps.Sub(topics...)
	b.logger.Debug("subscribe", "topics", topics)
	return ch
}

// Unsubscribe removes ch from topics, or from all topics when none are given.
// The channel is closed once it has no topics left.
func (b *PubSubBus) Unsubscribe(ch Subscription, topics ...string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed || ch == nil {
		return
	}

	if len(topics) == 0 {
		b.ps.Unsub(ch)
		b.logger.Debug("unsubscribe", "mode", "all")
		return
	}
	b.ps.Unsub(ch, topics...)
	b.logger.Debug("unsubscribe", "topics", topics)
}

// Close shuts the bus down. Safe to call more than once.
func (b *PubSubBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.ps.Shutdown()
}

// Closed reports whether Close has been called
func (b *PubSubBus) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

func payloadType(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
