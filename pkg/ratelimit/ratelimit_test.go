package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterBurst(t *testing.T) {
	limiter, err := New(&Config{Burst: 3, Period: 30 * time.Second})
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	for i := 0; i < 3; i++ {
		if !limiter.Check("SQL Injection") {
			t.Fatalf("request %d within burst was denied", i+1)
		}
	}
	if limiter.Check("SQL Injection") {
		t.Error("request beyond burst was allowed")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	limiter, err := New(&Config{Burst: 1, Period: time.Minute})
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	if !limiter.Check("XSS") {
		t.Fatal("first request for key was denied")
	}
	if limiter.Check("XSS") {
		t.Error("exhausted key was allowed")
	}
	// A different key owns its own bucket.
	if !limiter.Check("Path Traversal") {
		t.Error("fresh key was denied")
	}
}

func TestLimiterRefill(t *testing.T) {
	limiter, err := New(&Config{Burst: 1, Period: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	if !limiter.Check("k") {
		t.Fatal("first request was denied")
	}
	if limiter.Check("k") {
		t.Fatal("bucket did not empty")
	}

	time.Sleep(80 * time.Millisecond)
	if !limiter.Check("k") {
		t.Error("bucket did not refill after the period elapsed")
	}
}

func TestLimiterInvalidConfig(t *testing.T) {
	if _, err := New(&Config{Burst: 0, Period: time.Second}); err == nil {
		t.Error("expected an error for zero burst")
	}
	if _, err := New(&Config{Burst: 3, Period: 0}); err == nil {
		t.Error("expected an error for zero period")
	}
}
