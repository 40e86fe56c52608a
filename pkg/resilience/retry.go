// Package resilience provides retry with exponential backoff for delivery
// paths that talk to flaky remote systems.
package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Policy controls retry behavior.
type Policy struct {
	// MaxAttempts includes the first try.
	MaxAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Multiplier grows the backoff after each failed attempt.
	Multiplier float64

	// Jitter randomizes each delay by up to this fraction in either
	// direction, so retries from many components do not synchronize.
	Jitter float64
}

// DefaultPolicy suits short network operations: 4 attempts over roughly two
// seconds.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    4,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.2,
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as not retryable. Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds, returns a permanent error, exhausts the
// policy's attempts, or ctx is cancelled. The last error is returned.
func Do(ctx context.Context, policy Policy, fn func() error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 1
	}

	backoff := policy.InitialBackoff
	var err error

	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt >= policy.MaxAttempts {
			return err
		}

		delay := jittered(backoff, policy.Jitter)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff = time.Duration(float64(backoff) * policy.Multiplier)
		if policy.MaxBackoff > 0 && backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}
}

func jittered(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 || d <= 0 {
		return d
	}
	spread := float64(d) * jitter
	return time.Duration(float64(d) + (rand.Float64()*2-1)*spread)
}
