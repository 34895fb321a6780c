package link

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Backoff tracks consecutive connection failures and yields exponential
// reconnect delays with jitter.
type Backoff struct {
	mu        sync.Mutex
	failures  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewBackoff creates a backoff with the given bounds.
func NewBackoff(baseDelay, maxDelay time.Duration) *Backoff {
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	return &Backoff{baseDelay: baseDelay, maxDelay: maxDelay}
}

// RecordFailure counts a failed attempt and returns the delay before the next one.
func (b *Backoff) RecordFailure() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	return b.calculateDelay(b.failures)
}

// Reset clears the failure count after a successful connection.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// Failures returns the number of consecutive failures.
func (b *Backoff) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// calculateDelay returns exponential delay with jitter.
func (b *Backoff) calculateDelay(failures int) time.Duration {
	// Exponential: baseDelay * 2^(failures-1), exponent capped to avoid overflow
	exp := math.Min(float64(failures-1), 30)
	delay := time.Duration(float64(b.baseDelay) * math.Pow(2, exp))

	if delay > b.maxDelay {
		delay = b.maxDelay
	}

	// Add 10% jitter
	jitter := time.Duration(rand.Float64() * 0.1 * float64(delay))
	return delay + jitter
}
