package filter

import (
	"sync"
	"time"
)

// RateLimiter enforces a per-sender sliding window of accepted sends. The
// window lives in process memory only; each process enforces its own limit
// independently.
type RateLimiter struct {
	max    int
	window time.Duration

	mu    sync.Mutex
	sends map[string][]time.Time
}

// NewRateLimiter allows at most max accepted sends per sender within the
// window.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		max:    max,
		window: window,
		sends:  make(map[string][]time.Time),
	}
}

// Check reports whether the sender may send at the given instant. An
// allowed call records the timestamp; a denied call reports how long until
// the window frees a slot.
func (r *RateLimiter) Check(senderID string, now time.Time) (allowed bool, retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.window)
	kept := r.sends[senderID][:0]
	for _, t := range r.sends[senderID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.sends[senderID] = kept

	if len(kept) >= r.max {
		oldest := kept[0]
		return false, oldest.Add(r.window).Sub(now)
	}

	r.sends[senderID] = append(kept, now)
	return true, 0
}

// Reset clears the window for one sender, or all senders when id is empty.
func (r *RateLimiter) Reset(senderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if senderID == "" {
		r.sends = make(map[string][]time.Time)
		return
	}
	delete(r.sends, senderID)
}
