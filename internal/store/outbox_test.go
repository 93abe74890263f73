package store

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestEnqueueOutboxIdempotency(t *testing.T) {
	s := openTestStore(t)

	first, err := s.EnqueueOutbox("pong", "!node1", 0, "reply-42")
	if err != nil {
		t.Fatalf("EnqueueOutbox: %v", err)
	}

	_, err = s.EnqueueOutbox("pong again", "!node1", 0, "reply-42")
	if !errors.Is(err, ErrDuplicateWork) {
		t.Fatalf("duplicate enqueue: err = %v, want ErrDuplicateWork", err)
	}

	items, err := s.ListOutbox("", 10)
	if err != nil {
		t.Fatalf("ListOutbox: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("outbox rows = %d, want 1", len(items))
	}
	if items[0].ID != first.ID || items[0].Text != "pong" {
		t.Errorf("surviving row = %+v, want the first enqueue", items[0])
	}
}

func TestEnqueueOutboxKeyReusableAfterTerminal(t *testing.T) {
	s := openTestStore(t)

	item, err := s.EnqueueOutbox("hello", "", 0, "key-1")
	if err != nil {
		t.Fatalf("EnqueueOutbox: %v", err)
	}
	claimed, err := s.ClaimNextOutbox()
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNextOutbox: %v, %v", claimed, err)
	}
	if err := s.CompleteOutbox(item.ID, OutboxSent, ""); err != nil {
		t.Fatalf("CompleteOutbox: %v", err)
	}

	// The unique constraint only covers live rows; a finished key can be
	// queued again.
	if _, err := s.EnqueueOutbox("hello again", "", 0, "key-1"); err != nil {
		t.Errorf("re-enqueue after sent: %v", err)
	}
}

func TestClaimCompleteLifecycle(t *testing.T) {
	s := openTestStore(t)

	if item, err := s.ClaimNextOutbox(); err != nil || item != nil {
		t.Fatalf("claim on empty queue = (%v, %v), want (nil, nil)", item, err)
	}

	queued, err := s.EnqueueOutbox("msg", "!dest", 3, "")
	if err != nil {
		t.Fatalf("EnqueueOutbox: %v", err)
	}

	item, err := s.ClaimNextOutbox()
	if err != nil {
		t.Fatalf("ClaimNextOutbox: %v", err)
	}
	if item.ID != queued.ID || item.Status != OutboxInFlight {
		t.Errorf("claimed = %+v, want id %d in_flight", item, queued.ID)
	}
	if item.Dest != "!dest" || item.Channel != 3 {
		t.Errorf("claimed dest/channel = %s/%d", item.Dest, item.Channel)
	}

	// Nothing else pending.
	if again, _ := s.ClaimNextOutbox(); again != nil {
		t.Errorf("second claim returned %+v, want nil", again)
	}

	if err := s.CompleteOutbox(item.ID, OutboxSent, ""); err != nil {
		t.Fatalf("CompleteOutbox: %v", err)
	}
	got, err := s.GetOutboxItem(item.ID)
	if err != nil {
		t.Fatalf("GetOutboxItem: %v", err)
	}
	if got.Status != OutboxSent || got.CompletedAt.IsZero() {
		t.Errorf("completed item = %+v", got)
	}

	// Completing twice must fail: the transition is monotonic.
	if err := s.CompleteOutbox(item.ID, OutboxFailed, "x"); err == nil {
		t.Error("second CompleteOutbox succeeded, want error")
	}
}

func TestClaimOrderIsFIFO(t *testing.T) {
	s := openTestStore(t)

	a, _ := s.EnqueueOutbox("first", "", 0, "")
	b, _ := s.EnqueueOutbox("second", "", 0, "")

	got1, err := s.ClaimNextOutbox()
	if err != nil {
		t.Fatalf("claim 1: %v", err)
	}
	_ = s.CompleteOutbox(got1.ID, OutboxSent, "")
	got2, err := s.ClaimNextOutbox()
	if err != nil {
		t.Fatalf("claim 2: %v", err)
	}

	if got1.ID != a.ID || got2.ID != b.ID {
		t.Errorf("claim order = %d, %d; want %d, %d", got1.ID, got2.ID, a.ID, b.ID)
	}
}

func TestReleaseOutboxCountsAttempts(t *testing.T) {
	s := openTestStore(t)

	queued, _ := s.EnqueueOutbox("retry me", "", 0, "")
	for want := 1; want <= 2; want++ {
		item, err := s.ClaimNextOutbox()
		if err != nil || item == nil {
			t.Fatalf("claim: (%v, %v)", item, err)
		}
		if err := s.ReleaseOutbox(item.ID, "radio timeout"); err != nil {
			t.Fatalf("ReleaseOutbox: %v", err)
		}
		got, _ := s.GetOutboxItem(queued.ID)
		if got.Status != OutboxPending || got.Attempts != want {
			t.Errorf("after release %d: status=%s attempts=%d", want, got.Status, got.Attempts)
		}
		if got.Error != "radio timeout" {
			t.Errorf("error = %q", got.Error)
		}
	}
}

func TestReclaimStaleOutbox(t *testing.T) {
	s := openTestStore(t)

	queued, _ := s.EnqueueOutbox("orphaned", "", 0, "")
	if _, err := s.ClaimNextOutbox(); err != nil {
		t.Fatalf("claim: %v", err)
	}

	// A fresh claim is not stale.
	n, err := s.ReclaimStaleOutbox(time.Minute)
	if err != nil {
		t.Fatalf("ReclaimStaleOutbox: %v", err)
	}
	if n != 0 {
		t.Errorf("reclaimed %d fresh claims", n)
	}

	// Backdate the claim as if the process died an hour ago.
	if _, err := s.db.Exec(`UPDATE outbox SET claimed_at = ? WHERE id = ?`,
		time.Now().Add(-time.Hour).UTC(), queued.ID); err != nil {
		t.Fatalf("backdate: %v", err)
	}
	n, err = s.ReclaimStaleOutbox(time.Minute)
	if err != nil {
		t.Fatalf("ReclaimStaleOutbox: %v", err)
	}
	if n != 1 {
		t.Errorf("reclaimed = %d, want 1", n)
	}
	got, _ := s.GetOutboxItem(queued.ID)
	if got.Status != OutboxPending {
		t.Errorf("status after reclaim = %s", got.Status)
	}
}

// TestConcurrentClaimers drives several pollers against one queue; every
// item must be delivered exactly once.
func TestConcurrentClaimers(t *testing.T) {
	s := openTestStore(t)

	const items = 20
	const claimers = 4
	for i := 0; i < items; i++ {
		if _, err := s.EnqueueOutbox("msg", "", 0, ""); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	var mu sync.Mutex
	seen := make(map[int64]int)
	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, err := s.ClaimNextOutbox()
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				if item == nil {
					return
				}
				mu.Lock()
				seen[item.ID]++
				mu.Unlock()
				if err := s.CompleteOutbox(item.ID, OutboxSent, ""); err != nil {
					t.Errorf("complete %d: %v", item.ID, err)
				}
			}
		}()
	}
	wg.Wait()

	if len(seen) != items {
		t.Errorf("distinct items claimed = %d, want %d", len(seen), items)
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("item %d claimed %d times", id, n)
		}
	}
}
