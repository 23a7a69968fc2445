package buffer

import (
	"sync"

	"github.com/ScGaSe/smartlogistics-sub001/errors"
)

// ring stores items in a fixed slice; start is the oldest slot and n the
// number of live items.
type ring[T any] struct {
	mu     sync.RWMutex
	slots  []T
	start  int
	n      int
	closed bool

	cfg     settings[T]
	stats   *Statistics
	metrics *bufferMetrics
}

func newRing[T any](capacity int, cfg settings[T]) (*ring[T], error) {
	r := &ring[T]{
		slots: make([]T, capacity),
		cfg:   cfg,
		stats: NewStatistics(),
	}
	if cfg.registry != nil {
		m, err := newBufferMetrics(cfg.registry, cfg.label)
		if err != nil {
			return nil, errors.WrapTransient(err, "buffer", "NewCircularBuffer", "register metrics")
		}
		r.metrics = m
	}
	return r, nil
}

// at maps a logical offset from the oldest item to a slot index
func (r *ring[T]) at(i int) int { return (r.start + i) % len(r.slots) }

func (r *ring[T]) Write(item T) error {
	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()
		return errors.WrapInvalid(errors.ErrClosed, "Buffer", "Write", "buffer closed")
	}

	full := r.n == len(r.slots)
	if full && r.cfg.policy == DropNewest {
		r.recordDrop()
		r.mu.Unlock()
		r.dropped(item)
		return nil
	}

	var evicted T
	if full {
		evicted = r.slots[r.start]
		r.start = r.at(1)
		r.n--
		r.recordDrop()
	}

	r.slots[r.at(r.n)] = item
	r.n++
	r.stats.Write()
	r.stats.UpdateSize(int64(r.n))
	if r.metrics != nil {
		r.metrics.recordWrite(r.n)
	}
	r.mu.Unlock()

	if full {
		r.dropped(evicted)
	}
	return nil
}

func (r *ring[T]) recordDrop() {
	r.stats.Drop()
	if r.metrics != nil {
		r.metrics.recordDrop()
	}
}

func (r *ring[T]) dropped(item T) {
	if r.cfg.onDrop != nil {
		r.cfg.onDrop(item)
	}
}

func (r *ring[T]) Latest() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.n == 0 {
		var zero T
		return zero, false
	}
	return r.slots[r.at(r.n-1)], true
}

func (r *ring[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, 0, r.n)
	for i := range r.n {
		out = append(out, r.slots[r.at(i)])
	}
	return out
}

func (r *ring[T]) Update(fn func(item *T)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.n {
		fn(&r.slots[r.at(i)])
	}
}

func (r *ring[T]) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.n
}

func (r *ring[T]) Capacity() int { return len(r.slots) }

// Clear empties the ring without invoking the drop callback
func (r *ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.slots)
	r.start, r.n = 0, 0
	r.stats.UpdateSize(0)
	if r.metrics != nil {
		r.metrics.updateSize(0)
	}
}

func (r *ring[T]) Stats() *Statistics { return r.stats }

func (r *ring[T]) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}
