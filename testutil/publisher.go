package testutil

import (
	"context"
	"sync"
	"testing"
	"time"
)

// Published is one recorded publish
type Published struct {
	Subject string
	Data    []byte
}

// Publisher records publishes in arrival order. It satisfies the relay
// publisher contract and is safe for concurrent use.
type Publisher struct {
	mu        sync.Mutex
	published []Published
	err       error
}

// NewPublisher creates an empty recorder
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish records data under subject, or returns the error set by FailWith
func (p *Publisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, Published{Subject: subject, Data: append([]byte(nil), data...)})
	return nil
}

// FailWith makes Publish return err until called with nil
func (p *Publisher) FailWith(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// All returns every recorded publish
func (p *Publisher) All() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published(nil), p.published...)
}

// On returns the payloads published on subject, oldest first
func (p *Publisher) On(subject string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out [][]byte
	for _, m := range p.published {
		if m.Subject == subject {
			out = append(out, m.Data)
		}
	}
	return out
}

// WaitFirst waits for the first payload on subject
func WaitFirst(t *testing.T, p *Publisher, subject string, timeout time.Duration) []byte {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if msgs := p.On(subject); len(msgs) > 0 {
			return msgs[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("nothing published on %s within %v", subject, timeout)
	return nil
}

// AssertNothingOn fails when anything was published on subject
func AssertNothingOn(t *testing.T, p *Publisher, subject string) {
	t.Helper()

	if msgs := p.On(subject); len(msgs) > 0 {
		t.Fatalf("expected nothing on %s, got %d messages", subject, len(msgs))
	}
}
