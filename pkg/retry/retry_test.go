package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_FixedDelay(t *testing.T) {
	p := FixedPolicy(10, 5*time.Second)

	for attempt := 1; attempt <= 10; attempt++ {
		assert.Equal(t, 5*time.Second, p.Delay(attempt))
	}
}

func TestPolicy_LinearDelay(t *testing.T) {
	p := LinearPolicy(10, 5*time.Second)

	assert.Equal(t, 5*time.Second, p.Delay(1))
	assert.Equal(t, 10*time.Second, p.Delay(2))
	assert.Equal(t, 50*time.Second, p.Delay(10))
	// Attempt numbers below 1 are clamped
	assert.Equal(t, 5*time.Second, p.Delay(0))
}

func TestPolicy_LinearDelayWithCap(t *testing.T) {
	p := LinearPolicy(10, 5*time.Second)
	p.MaxDelay = 20 * time.Second

	assert.Equal(t, 15*time.Second, p.Delay(3))
	assert.Equal(t, 20*time.Second, p.Delay(9))
}

func TestPolicy_ExponentialDelay(t *testing.T) {
	p := ExponentialPolicy(10, 100*time.Millisecond, time.Second)

	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
	assert.Equal(t, time.Second, p.Delay(8))
}

func TestPolicy_Jitter(t *testing.T) {
	p := FixedPolicy(3, 100*time.Millisecond)
	p.AddJitter = true

	for i := 0; i < 20; i++ {
		d := p.Delay(1)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.Less(t, d, 125*time.Millisecond)
	}
}

func TestPolicy_Exhausted(t *testing.T) {
	p := FixedPolicy(10, time.Second)

	assert.False(t, p.Exhausted(0))
	assert.False(t, p.Exhausted(9))
	assert.True(t, p.Exhausted(10))
	assert.True(t, p.Exhausted(11))
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		name     string
		expected Strategy
		wantErr  bool
	}{
		{"", Fixed, false},
		{"fixed", Fixed, false},
		{"linear", Linear, false},
		{"exponential", Exponential, false},
		{"quadratic", Fixed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseStrategy(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, s)
			assert.NotEqual(t, "unknown", s.String())
		})
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Wait(ctx, time.Hour)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetry_Success(t *testing.T) {
	p := FixedPolicy(3, 10*time.Millisecond)

	attempts := 0
	err := Do(context.Background(), p, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_AllAttemptsFail(t *testing.T) {
	p := FixedPolicy(2, 10*time.Millisecond)

	attempts := 0
	err := Do(context.Background(), p, func() error {
		attempts++
		return errors.New("persistent error")
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestRetry_NonRetryable(t *testing.T) {
	p := FixedPolicy(5, 10*time.Millisecond)
	sentinel := errors.New("bad config")

	attempts := 0
	err := Do(context.Background(), p, func() error {
		attempts++
		return NonRetryable(sentinel)
	})

	assert.True(t, IsNonRetryable(err))
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, attempts)
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := FixedPolicy(5, 100*time.Millisecond)

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	attempts := 0
	err := Do(ctx, p, func() error {
		attempts++
		return errors.New("error")
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.Less(t, attempts, 5)
}

func TestDoWithResult(t *testing.T) {
	p := FixedPolicy(3, time.Millisecond)

	calls := 0
	result, err := DoWithResult(context.Background(), p, func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("first")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}
