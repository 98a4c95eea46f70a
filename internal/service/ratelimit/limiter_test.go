package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterConsumesAndRefills(t *testing.T) {
	now := time.Date(2025, 3, 4, 13, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !l.Allow("client-a", 3, 1) {
			t.Fatalf("token %d should be available", i+1)
		}
	}
	if l.Allow("client-a", 3, 1) {
		t.Fatal("bucket should be empty")
	}

	now = now.Add(2 * time.Second)
	if !l.Allow("client-a", 3, 1) {
		t.Fatal("refill should have restored a token")
	}
	if !l.Allow("client-a", 3, 1) {
		t.Fatal("two seconds at 1/s refill gives two tokens")
	}
	if l.Allow("client-a", 3, 1) {
		t.Fatal("only two tokens were refilled")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	now := time.Date(2025, 3, 4, 13, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return now }

	if !l.Allow("a", 1, 0) {
		t.Fatal("first token for a")
	}
	if l.Allow("a", 1, 0) {
		t.Fatal("a is exhausted")
	}
	if !l.Allow("b", 1, 0) {
		t.Fatal("b has its own bucket")
	}
}

func TestLimiterCapsRefillAtCapacity(t *testing.T) {
	now := time.Date(2025, 3, 4, 13, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return now }

	if !l.Allow("k", 2, 10) {
		t.Fatal("initial token")
	}
	now = now.Add(time.Hour)
	for i := 0; i < 2; i++ {
		if !l.Allow("k", 2, 10) {
			t.Fatalf("token %d within capacity", i+1)
		}
	}
	if l.Allow("k", 2, 10) {
		t.Fatal("refill must not exceed capacity")
	}
}
