package ratelimit

import (
	"testing"
	"time"
)

func TestWindowedAllowsUpToLimit(t *testing.T) {
	limiter := NewWindowed(time.Minute)
	for i := 0; i < 3; i++ {
		if !limiter.Allow("pass", 3) {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if limiter.Allow("pass", 3) {
		t.Fatal("fourth attempt within the window should be denied")
	}

	// Other keys are independent.
	if !limiter.Allow("other", 3) {
		t.Fatal("a fresh key should be allowed")
	}
}

func TestWindowedResetsAfterWindow(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	limiter := NewWindowed(time.Minute)
	limiter.now = func() time.Time { return current }

	if !limiter.Allow("pass", 1) {
		t.Fatal("first attempt should be allowed")
	}
	if limiter.Allow("pass", 1) {
		t.Fatal("second attempt in the same window should be denied")
	}

	current = current.Add(time.Minute)
	if !limiter.Allow("pass", 1) {
		t.Fatal("attempt in the next window should be allowed")
	}
}

func TestWindowedZeroLimitDisables(t *testing.T) {
	limiter := NewWindowed(time.Minute)
	for i := 0; i < 10; i++ {
		if !limiter.Allow("pass", 0) {
			t.Fatal("non-positive limit should disable limiting")
		}
	}
}
