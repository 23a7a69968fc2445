// Package retry provides reconnect delay policies and a small retry loop.
//
// # Policies
//
// A Policy bounds the number of attempts and maps an attempt number to a
// delay:
//
//   - FixedPolicy: the same delay before every attempt
//   - LinearPolicy: attempt n waits n * step
//   - ExponentialPolicy: delay doubles up to a ceiling, with optional jitter
//
// Attempts are 1-based. Exhausted(n) reports whether attempt n exceeds
// MaxAttempts; a MaxAttempts of zero allows no retries.
//
//	p := retry.LinearPolicy(10, 5*time.Second)
//	p.Delay(1) // 5s
//	p.Delay(3) // 15s
//
// # Retry loop
//
// Do and DoWithResult run an operation until it succeeds, the policy is
// exhausted, the context is cancelled, or the operation returns an error
// wrapped with NonRetryable:
//
//	err := retry.Do(ctx, retry.Quick(), func() error {
//	    return client.Connect(ctx)
//	})
//
// Wait sleeps for a delay and returns early with the context error on
// cancellation. All functions are safe for concurrent use.
package retry
