package cli

import (
	"path/filepath"
	"testing"

	"github.com/meshlora/meshlora/internal/mesh"
	"github.com/meshlora/meshlora/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "mesh.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConsoleSendDefaultsToBroadcast(t *testing.T) {
	st := testStore(t)

	consoleSend(st, "hello everyone")

	items, err := st.ListOutbox(store.OutboxPending, 10)
	if err != nil {
		t.Fatalf("ListOutbox: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("queued = %d, want 1", len(items))
	}
	if items[0].Dest != mesh.Broadcast || items[0].Channel != 0 || items[0].Text != "hello everyone" {
		t.Errorf("item = %+v", items[0])
	}
}

func TestConsoleSendTargetAndChannel(t *testing.T) {
	st := testStore(t)

	consoleSend(st, "@!node1 #3 meet at the trailhead")

	items, _ := st.ListOutbox(store.OutboxPending, 10)
	if len(items) != 1 {
		t.Fatalf("queued = %d, want 1", len(items))
	}
	if items[0].Dest != "!node1" || items[0].Channel != 3 {
		t.Errorf("item = %+v", items[0])
	}
	if items[0].Text != "meet at the trailhead" {
		t.Errorf("text = %q", items[0].Text)
	}
}

func TestConsoleSendRejectsBadInput(t *testing.T) {
	st := testStore(t)

	// No text at all.
	consoleSend(st, "")
	consoleSend(st, "@!node1")
	// Channel out of range.
	consoleSend(st, "#9 hello")

	if items, _ := st.ListOutbox("", 10); len(items) != 0 {
		t.Errorf("queued = %+v, want none", items)
	}
}
