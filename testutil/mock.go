package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/ScGaSe/smartlogistics-sub001/message"
)

// Common test errors
var (
	ErrMockFailed     = errors.New("mock operation failed")
	ErrMockConnection = errors.New("mock connection error")
)

// RecordingSink captures notifications handed to a notification sink.
// Err makes every call fail; Block holds calls until it is closed; Panic
// makes every call panic.
type RecordingSink struct {
	mu    sync.Mutex
	items []message.Notification

	Err   error
	Block chan struct{}
	Panic bool
}

// NewRecordingSink creates an empty sink
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// Notify records n
func (s *RecordingSink) Notify(ctx context.Context, n message.Notification) error {
	if s.Block != nil {
		select {
		case <-s.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.Panic {
		panic("recording sink panic")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, n)
	return s.Err
}

// Notifications returns everything recorded so far
func (s *RecordingSink) Notifications() []message.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]message.Notification(nil), s.items...)
}

// Count returns the number of recorded notifications
func (s *RecordingSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
