package rate

import (
	"testing"
	"time"
)

// TestWindowLimiter verifies window limiter behavior.
func TestWindowLimiter(t *testing.T) {
	t.Parallel()

	limiter := NewWindowLimiter(3, time.Hour)
	for i := 0; i < 3; i++ {
		if !limiter.Allow("user-1") {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}
	if limiter.Allow("user-1") {
		t.Fatal("call over the limit should be denied")
	}
	if !limiter.Allow("user-2") {
		t.Fatal("a different key must not share the bucket")
	}
}

// TestWindowLimiterReset verifies window limiter reset behavior.
func TestWindowLimiterReset(t *testing.T) {
	t.Parallel()

	limiter := NewWindowLimiter(1, 10*time.Millisecond)
	if !limiter.Allow("user-1") {
		t.Fatal("first call should be allowed")
	}
	if limiter.Allow("user-1") {
		t.Fatal("second call inside the window should be denied")
	}
	time.Sleep(20 * time.Millisecond)
	if !limiter.Allow("user-1") {
		t.Fatal("call after the window should open a fresh bucket")
	}
}
