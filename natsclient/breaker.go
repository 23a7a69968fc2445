package natsclient

import (
	"sync"
	"time"
)

const (
	defaultBreakerThreshold = 5
	initialBreakerBackoff   = time.Second
	defaultBreakerCeiling   = time.Minute
)

// breaker counts consecutive failures and trips every threshold of them.
// Each trip doubles the open period up to ceiling.
type breaker struct {
	mu        sync.Mutex
	threshold int
	ceiling   time.Duration

	total   int
	streak  int
	backoff time.Duration
}

func newBreaker(threshold int, ceiling time.Duration) *breaker {
	return &breaker{threshold: threshold, ceiling: ceiling, backoff: initialBreakerBackoff}
}

// fail records one failure. When it completes a streak, tripped is true and
// open is how long the circuit should stay open.
func (b *breaker) fail() (tripped bool, open time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total++
	b.streak++
	if b.streak < b.threshold {
		return false, 0
	}
	b.streak = 0
	open = b.backoff
	b.backoff = min(b.backoff*2, b.ceiling)
	return true, open
}

func (b *breaker) reset() {
	b.mu.Lock()
	b.total, b.streak, b.backoff = 0, 0, initialBreakerBackoff
	b.mu.Unlock()
}

func (b *breaker) failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

func (b *breaker) nextBackoff() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.backoff
}
