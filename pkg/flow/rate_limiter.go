package flow

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a token-bucket rate limiter. Sources acquire one token per
// emitted event to cap steady-state throughput while allowing bursts up to
// the bucket capacity.
type TokenBucket struct {
	mu sync.Mutex

	capacity   int64
	tokens     int64
	refillRate int64 // tokens per second
	lastRefill time.Time
}

// NewTokenBucket creates a full bucket.
func NewTokenBucket(capacity, refillRate int64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Acquire blocks until the requested tokens are available.
func (tb *TokenBucket) Acquire(ctx context.Context, tokens int64) error {
	for {
		tb.mu.Lock()
		tb.refill()

		if tb.tokens >= tokens {
			tb.tokens -= tokens
			tb.mu.Unlock()
			return nil
		}

		needed := tokens - tb.tokens
		waitDuration := time.Duration(needed*int64(time.Second)) / time.Duration(tb.refillRate)
		tb.mu.Unlock()

		select {
		case <-time.After(waitDuration):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TryAcquire acquires tokens without blocking.
func (tb *TokenBucket) TryAcquire(tokens int64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens >= tokens {
		tb.tokens -= tokens
		return true
	}
	return false
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)
	tb.lastRefill = now

	newTokens := int64(elapsed.Seconds() * float64(tb.refillRate))
	tb.tokens += newTokens
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
}
