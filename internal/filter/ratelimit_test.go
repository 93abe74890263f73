package filter

import (
	"testing"
	"time"
)

func TestRateLimiterBurstThenDeny(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	now := time.Now()

	for i := 0; i < 5; i++ {
		if ok, _ := rl.Check("!alice", now.Add(time.Duration(i)*time.Second)); !ok {
			t.Fatalf("send %d denied within limit", i+1)
		}
	}
	ok, retryAfter := rl.Check("!alice", now.Add(5*time.Second))
	if ok {
		t.Fatal("6th send allowed, want deny")
	}
	// Oldest send was at now; the slot frees a minute later.
	if want := 55 * time.Second; retryAfter != want {
		t.Errorf("retryAfter = %v, want %v", retryAfter, want)
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Now()

	rl.Check("!alice", now)
	rl.Check("!alice", now.Add(30*time.Second))
	if ok, _ := rl.Check("!alice", now.Add(40*time.Second)); ok {
		t.Fatal("third send inside window allowed")
	}
	// 61s after the first send, its slot has expired.
	if ok, _ := rl.Check("!alice", now.Add(61*time.Second)); !ok {
		t.Error("send after window slide denied")
	}
}

func TestRateLimiterPerSender(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Now()

	if ok, _ := rl.Check("!alice", now); !ok {
		t.Fatal("first sender denied")
	}
	if ok, _ := rl.Check("!bob", now); !ok {
		t.Error("second sender shares the first sender's window")
	}
	if ok, _ := rl.Check("!alice", now.Add(time.Second)); ok {
		t.Error("first sender not limited")
	}
}

func TestRateLimiterDenialDoesNotConsume(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Now()

	rl.Check("!alice", now)
	rl.Check("!alice", now.Add(time.Second))
	rl.Check("!alice", now.Add(2*time.Second))

	// Denied attempts must not extend the window: one minute after the
	// single accepted send, the sender is clear again.
	if ok, _ := rl.Check("!alice", now.Add(61*time.Second)); !ok {
		t.Error("denied attempts extended the window")
	}
}

func TestRateLimiterReset(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Now()

	rl.Check("!alice", now)
	rl.Reset("!alice")
	if ok, _ := rl.Check("!alice", now.Add(time.Second)); !ok {
		t.Error("send denied after reset")
	}
}
