package ratelimit

import (
	"testing"
	"time"

	"grimm.is/rulegate/internal/clock"
)

func TestLimiter_Allow_Basic(t *testing.T) {
	l := NewLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("test-key") {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	if l.Allow("test-key") {
		t.Error("4th request should be denied (over limit)")
	}
}

func TestLimiter_Allow_DifferentKeys(t *testing.T) {
	l := NewLimiter(1, time.Minute)

	if !l.Allow("key1") || !l.Allow("key2") {
		t.Fatal("first request per key should be allowed")
	}
	if l.Allow("key1") {
		t.Error("key1 should be rate limited")
	}
}

func TestLimiter_WindowExpiry(t *testing.T) {
	mock := clock.NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	defer clock.Use(mock)()

	l := NewLimiter(1, time.Minute)
	if !l.Allow("ip") {
		t.Fatal("first attempt should pass")
	}
	if l.Allow("ip") {
		t.Fatal("second attempt inside window should fail")
	}

	mock.Advance(time.Minute)
	if !l.Allow("ip") {
		t.Error("attempt after window should pass")
	}
}

func TestLimiter_ResetAndCleanup(t *testing.T) {
	mock := clock.NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	defer clock.Use(mock)()

	l := NewLimiter(1, time.Minute)
	l.Allow("a")
	l.Allow("b")

	l.Reset("a")
	if !l.Allow("a") {
		t.Error("Reset should restore the budget")
	}

	mock.Advance(2 * time.Minute)
	l.CleanupExpired()
	if n := l.size(); n != 0 {
		t.Errorf("expected all buckets cleaned, %d left", n)
	}
}
