package retry

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.BaseDelay = time.Millisecond
	return cfg
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastConfig(5), func(int) error {
		calls++
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.Equal(t, 5, attempts)
	assert.Equal(t, 5, calls)
}

func TestDo_StopsOnSuccess(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastConfig(5), func(attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	cfg := fastConfig(5)
	cfg.BaseDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan struct{})
	var attempts int
	var err error
	go func() {
		defer close(done)
		attempts, err = Do(ctx, cfg, func(int) error {
			calls++
			return errors.New("fail")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDo_CanceledErrorIsNotRetried(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastConfig(5), func(int) error {
		calls++
		return context.Canceled
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestBackoff_Fixed(t *testing.T) {
	cfg := Config{Policy: PolicyFixed, BaseDelay: 200 * time.Millisecond}
	for attempt := 1; attempt <= 4; attempt++ {
		assert.Equal(t, 200*time.Millisecond, cfg.Backoff(attempt))
	}
}

func TestBackoff_ExponentialCapped(t *testing.T) {
	cfg := Config{
		Policy:     PolicyExponential,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   500 * time.Millisecond,
		Multiplier: 2,
	}
	assert.Equal(t, 100*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, cfg.Backoff(2))
	assert.Equal(t, 400*time.Millisecond, cfg.Backoff(3))
	assert.Equal(t, 500*time.Millisecond, cfg.Backoff(4))
}

func TestBackoff_UncappedExponentialSaturates(t *testing.T) {
	cfg := Config{Policy: PolicyExponential, BaseDelay: 500 * time.Millisecond}

	for _, attempt := range []int{40, 64, 2000} {
		d := cfg.Backoff(attempt)
		assert.Equal(t, time.Duration(math.MaxInt64), d, "attempt %d", attempt)
	}

	cfg.Jitter = true
	assert.Positive(t, cfg.Backoff(40))
}

func TestBackoff_JitterStaysInRange(t *testing.T) {
	cfg := Config{Policy: PolicyFixed, BaseDelay: 100 * time.Millisecond, Jitter: true}
	for i := 0; i < 50; i++ {
		d := cfg.Backoff(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.Less(t, d, 100*time.Millisecond)
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("Exponential")
	require.NoError(t, err)
	assert.Equal(t, PolicyExponential, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyFixed, p)

	_, err = ParsePolicy("linear")
	assert.Error(t, err)
}
