package buffer

import (
	"sync/atomic"
)

// Statistics tracks buffer activity.
type Statistics struct {
	writes  atomic.Int64
	drops   atomic.Int64
	size    atomic.Int64
	maxSize atomic.Int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Write records a buffer write operation.
func (s *Statistics) Write() {
	s.writes.Add(1)
}

// Drop records an item drop due to overflow policy.
func (s *Statistics) Drop() {
	s.drops.Add(1)
}

// UpdateSize updates the current buffer size and the high-water mark.
func (s *Statistics) UpdateSize(size int64) {
	s.size.Store(size)
	for {
		current := s.maxSize.Load()
		if size <= current || s.maxSize.CompareAndSwap(current, size) {
			return
		}
	}
}

// Writes returns the total number of accepted writes.
func (s *Statistics) Writes() int64 {
	return s.writes.Load()
}

// Drops returns the total number of dropped items.
func (s *Statistics) Drops() int64 {
	return s.drops.Load()
}

// CurrentSize returns the last recorded size.
func (s *Statistics) CurrentSize() int64 {
	return s.size.Load()
}

// MaxSize returns the largest recorded size.
func (s *Statistics) MaxSize() int64 {
	return s.maxSize.Load()
}
