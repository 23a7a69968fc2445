package worker

import "errors"

var (
	ErrNilProcessor       = errors.New("worker: nil processor")
	ErrPoolNotStarted     = errors.New("worker: pool not started")
	ErrPoolAlreadyStarted = errors.New("worker: pool already started")
	ErrPoolStopped        = errors.New("worker: pool stopped")
	ErrQueueFull          = errors.New("worker: queue full")
	ErrStopTimeout        = errors.New("worker: workers did not drain before timeout")
	ErrProcessorPanic     = errors.New("worker: processor panicked")
)
