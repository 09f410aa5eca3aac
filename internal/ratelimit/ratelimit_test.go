package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestAllowConsumesAndRefills(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := newLimiter(3, time.Minute, clock.now)

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d should pass", i)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("fourth request should be limited")
	}
	if l.RetryAfter("10.0.0.1") <= 0 {
		t.Error("RetryAfter should be positive while limited")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("keys are independent")
	}

	clock.advance(20 * time.Second)
	if !l.Allow("10.0.0.1") {
		t.Error("one token should refill after a third of the window")
	}
	if l.Allow("10.0.0.1") {
		t.Error("only one token should have refilled")
	}
}

func TestSweepDropsIdleKeys(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := newLimiter(1, time.Minute, clock.now)
	l.Allow("a")
	clock.advance(3 * time.Minute)
	l.Allow("b")
	l.sweep()

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries["a"]; ok {
		t.Error("idle key should be swept")
	}
	if _, ok := l.entries["b"]; !ok {
		t.Error("active key should survive")
	}
}

func TestResetAndClose(t *testing.T) {
	l := New(1, time.Minute)
	defer l.Close()
	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("second request should be limited")
	}
	l.Reset("k")
	if !l.Allow("k") {
		t.Error("reset key should pass again")
	}
	l.Close()
}
