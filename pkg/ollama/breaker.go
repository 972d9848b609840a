package ollama

import (
	"sync"
	"time"
)

// breaker opens after threshold consecutive failures and lets one probe
// through once reset has elapsed.
type breaker struct {
	mu        sync.Mutex
	threshold int
	reset     time.Duration
	failures  int
	openUntil time.Time
	now       func() time.Time
}

func newBreaker(threshold int, reset time.Duration) *breaker {
	return &breaker{threshold: threshold, reset: reset, now: time.Now}
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return true
	}
	if b.now().Before(b.openUntil) {
		return false
	}
	// half-open: one more failure reopens immediately
	b.failures = b.threshold - 1

	return true
}

func (b *breaker) success() {
	b.mu.Lock()
	b.failures = 0
	b.mu.Unlock()
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.failures >= b.threshold {
		b.openUntil = b.now().Add(b.reset)
	}
}
