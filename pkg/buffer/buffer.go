// Package buffer provides a generic, thread-safe bounded ring used for
// per-channel event history.
//
// The ring keeps the most recent items in arrival order. When full it either
// evicts the oldest item (DropOldest, the default) or rejects the new one
// (DropNewest). Statistics are always collected; Prometheus metrics are
// optional via WithMetrics.
//
// Usage:
//
//	history, err := buffer.NewCircularBuffer[message.Notification](50,
//	    buffer.WithMetrics[message.Notification](registry, "notifications"))
//	if err != nil {
//	    return err
//	}
//	_ = history.Write(event)
//	recent := history.Snapshot() // oldest first
//
// Update mutates entries in place under the buffer lock, which is how
// notification history applies a bulk mark-read.
package buffer

import (
	"fmt"
	"strings"

	"github.com/ScGaSe/smartlogistics-sub001/metric"
)

// Buffer is a bounded, ordered collection of the most recent items
type Buffer[T any] interface {
	// Write appends item, applying the overflow policy when full.
	Write(item T) error
	Latest() (T, bool)
	// Snapshot copies the stored items, oldest first.
	Snapshot() []T
	// Update calls fn on every stored item in place, oldest first.
	Update(fn func(item *T))
	Size() int
	Capacity() int
	Clear()
	Stats() *Statistics
	// Close rejects further writes; stored items stay readable.
	Close() error
}

// OverflowPolicy selects what a full buffer gives up
type OverflowPolicy int

const (
	DropOldest OverflowPolicy = iota
	DropNewest
)

func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	}
	return "Unknown"
}

// ParseOverflowPolicy maps a config value to a policy. "" selects DropOldest.
func ParseOverflowPolicy(name string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "drop_oldest":
		return DropOldest, nil
	case "drop_newest":
		return DropNewest, nil
	}
	return DropOldest, fmt.Errorf("unknown overflow policy %q", name)
}

// DropCallback receives each item lost to overflow, outside the buffer lock
type DropCallback[T any] func(item T)

type settings[T any] struct {
	policy   OverflowPolicy
	onDrop   DropCallback[T]
	registry *metric.MetricsRegistry
	label    string
}

// Option configures a buffer
type Option[T any] func(*settings[T])

// WithOverflowPolicy overrides the default DropOldest
func WithOverflowPolicy[T any](policy OverflowPolicy) Option[T] {
	return func(s *settings[T]) { s.policy = policy }
}

// WithMetrics exports buffer counters labelled with label. A nil registry or
// empty label leaves metrics off.
func WithMetrics[T any](registry *metric.MetricsRegistry, label string) Option[T] {
	return func(s *settings[T]) {
		if registry != nil && label != "" {
			s.registry, s.label = registry, label
		}
	}
}

// WithDropCallback observes items lost to overflow
func WithDropCallback[T any](fn DropCallback[T]) Option[T] {
	return func(s *settings[T]) { s.onDrop = fn }
}

// NewCircularBuffer creates a ring holding up to capacity items. A capacity
// below one is raised to one. Metrics registration failures are returned.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	var s settings[T]
	for _, opt := range options {
		if opt != nil {
			opt(&s)
		}
	}
	return newRing(max(capacity, 1), s)
}
