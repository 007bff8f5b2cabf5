package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Policy selects how the wait between attempts grows
type Policy string

const (
	// PolicyFixed waits BaseDelay between every attempt
	PolicyFixed Policy = "fixed"
	// PolicyExponential waits BaseDelay * Multiplier^attempt, capped at MaxDelay
	PolicyExponential Policy = "exponential"
)

// ParsePolicy converts a config string into a Policy
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyFixed, "":
		return PolicyFixed, nil
	case PolicyExponential, "exp":
		return PolicyExponential, nil
	default:
		return "", fmt.Errorf("unknown backoff policy %q (must be fixed or exponential)", s)
	}
}

// Config defines retry behavior for one unit of work
type Config struct {
	MaxAttempts int           // Total attempts including the first one
	Policy      Policy        // fixed or exponential
	BaseDelay   time.Duration // Delay after the first failed attempt
	MaxDelay    time.Duration // Cap for exponential growth
	Multiplier  float64       // Growth factor for exponential policy
	Jitter      bool          // Randomize each delay within [delay/2, delay)
}

// DefaultConfig mirrors the original scraper: five attempts with a short fixed pause
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		Policy:      PolicyFixed,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// Backoff returns the wait before attempt+1, where attempt counts from 1
func (c Config) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(c.BaseDelay)
	if c.Policy == PolicyExponential {
		mult := c.Multiplier
		if mult <= 1 {
			mult = 2
		}
		delay = float64(c.BaseDelay) * math.Pow(mult, float64(attempt-1))
	}

	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}

	// An uncapped exponential delay outgrows time.Duration; a zero base
	// times an infinite factor is NaN
	switch {
	case math.IsNaN(delay):
		delay = 0
	case delay > float64(math.MaxInt64):
		delay = float64(math.MaxInt64)
	}

	if c.Jitter && delay > 0 {
		half := delay / 2
		delay = half + rand.Float64()*half
	}

	if delay >= float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// Do calls fn until it succeeds, MaxAttempts is reached or ctx ends.
// fn receives the 1-based attempt number. The returned attempts value is the
// number of times fn actually ran; err is the last error fn returned, or the
// context error if the wait between attempts was interrupted.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return attempt - 1, lastErr
		}

		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				log.Debug().
					Int("attempts", attempt).
					Msg("Retry succeeded")
			}
			return attempt, nil
		}
		lastErr = err

		if isCanceled(err) {
			return attempt, err
		}

		// Don't sleep after the last attempt
		if attempt == maxAttempts {
			break
		}

		backoff := cfg.Backoff(attempt)
		log.Debug().
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("backoff", backoff).
			Err(err).
			Msg("Retrying after backoff")

		if err := sleep(ctx, backoff); err != nil {
			return attempt, lastErr
		}
	}

	log.Debug().
		Int("attempts", maxAttempts).
		Err(lastErr).
		Msg("Max retry attempts exceeded")

	return maxAttempts, lastErr
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isCanceled reports caller-side cancellation, which is never worth retrying.
// Per-request deadlines surface from the fetch layer as their own error type
// and stay retryable.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
