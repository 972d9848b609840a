package ollama

import (
	"testing"
	"time"
)

func TestBreaker(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newBreaker(2, time.Minute)
	b.now = func() time.Time { return clock }

	b.failure()
	if !b.allow() {
		t.Fatalf("one failure must not open the circuit")
	}
	b.failure()
	if b.allow() {
		t.Fatalf("threshold reached, circuit should be open")
	}

	clock = clock.Add(time.Minute)
	if !b.allow() {
		t.Fatalf("reset elapsed, expected a half-open probe")
	}
	b.failure()
	if b.allow() {
		t.Fatalf("failed probe should reopen the circuit")
	}

	clock = clock.Add(time.Minute)
	b.allow()
	b.success()
	b.failure()
	if !b.allow() {
		t.Fatalf("success should reset the failure count")
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{Retries: -1}.withDefaults()
	d := DefaultConfig()
	if c.Timeout != d.Timeout || c.Backoff != d.Backoff || c.CircuitFailureThreshold != d.CircuitFailureThreshold ||
		c.CircuitReset != d.CircuitReset || c.Retries != 0 {
		t.Fatalf("unexpected defaults %+v", c)
	}
}
