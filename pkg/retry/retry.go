// Package retry provides reconnect delay policies and a context-aware retry loop
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	// Thread-safe random source for jitter
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NonRetryableError wraps errors that should not be retried
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to indicate it should not be retried
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Strategy selects how the delay grows with the attempt number
type Strategy int

const (
	// Fixed waits BaseDelay before every attempt
	Fixed Strategy = iota
	// Linear waits attempt × BaseDelay
	Linear
	// Exponential waits BaseDelay × Multiplier^(attempt-1)
	Exponential
)

// String returns the config name of the strategy
func (s Strategy) String() string {
	switch s {
	case Fixed:
		return "fixed"
	case Linear:
		return "linear"
	case Exponential:
		return "exponential"
	default:
		return "unknown"
	}
}

// ParseStrategy maps a config name to a Strategy
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "fixed", "":
		return Fixed, nil
	case "linear":
		return Linear, nil
	case "exponential":
		return Exponential, nil
	default:
		return Fixed, fmt.Errorf("retry: unknown strategy %q", name)
	}
}

// Policy decides whether and when the next attempt happens.
// Attempts are counted from 1 for the first retry.
type Policy struct {
	MaxAttempts int           // Retry ceiling (0 = never retry)
	Strategy    Strategy      // Delay growth
	BaseDelay   time.Duration // Delay unit
	MaxDelay    time.Duration // Upper bound, 0 = unbounded
	Multiplier  float64       // Exponential factor (typically 2.0)
	AddJitter   bool          // Add up to 25% randomness
}

// FixedPolicy waits the same delay between attempts
func FixedPolicy(maxAttempts int, delay time.Duration) Policy {
	return Policy{MaxAttempts: maxAttempts, Strategy: Fixed, BaseDelay: delay}
}

// LinearPolicy waits attempt × step between attempts. Growth is bounded only
// by the attempt ceiling unless MaxDelay is set.
func LinearPolicy(maxAttempts int, step time.Duration) Policy {
	return Policy{MaxAttempts: maxAttempts, Strategy: Linear, BaseDelay: step}
}

// ExponentialPolicy doubles the delay up to maxDelay
func ExponentialPolicy(maxAttempts int, initial, maxDelay time.Duration) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Strategy:    Exponential,
		BaseDelay:   initial,
		MaxDelay:    maxDelay,
		Multiplier:  2.0,
	}
}

// Exhausted reports whether attempts already made reach the ceiling
func (p Policy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}

// Delay returns the wait before the given attempt (1-based)
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.BaseDelay <= 0 {
		return 0
	}

	var delay time.Duration
	switch p.Strategy {
	case Linear:
		delay = time.Duration(attempt) * p.BaseDelay
	case Exponential:
		multiplier := p.Multiplier
		if multiplier <= 0 {
			multiplier = 2.0
		}
		// Prevent overflow with extremely large multipliers
		if multiplier > 1000 {
			multiplier = 1000
		}
		next := float64(p.BaseDelay)
		for i := 1; i < attempt; i++ {
			next *= multiplier
			if next > float64(time.Duration(1<<63-1)) {
				next = float64(time.Duration(1<<63 - 1))
				break
			}
		}
		delay = time.Duration(next)
	default:
		delay = p.BaseDelay
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.AddJitter && delay >= 4 {
		randMu.Lock()
		jitter := time.Duration(randSource.Int63n(int64(delay / 4)))
		randMu.Unlock()
		delay += jitter
	}
	return delay
}

// Wait sleeps for d or until ctx is done
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do executes fn once plus up to MaxAttempts retries, waiting Delay between them
func Do(ctx context.Context, p Policy, fn func() error) error {
	if p.BaseDelay < 0 {
		return errors.New("retry: BaseDelay cannot be negative")
	}
	if p.MaxDelay < 0 {
		return errors.New("retry: MaxDelay cannot be negative")
	}
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsNonRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt+1, ctx.Err())
		}
		if p.Exhausted(attempt) {
			break
		}

		if err := Wait(ctx, p.Delay(attempt+1)); err != nil {
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+2, err)
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", p.MaxAttempts+1, lastErr)
}

// DoWithResult executes fn with retry and returns both result and error
func DoWithResult[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, p, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}

// Quick returns a policy for fast retries (useful during startup)
func Quick() Policy {
	return Policy{
		MaxAttempts: 10,
		Strategy:    Exponential,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    1 * time.Second,
		Multiplier:  1.5,
		AddJitter:   true,
	}
}
