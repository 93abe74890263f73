package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/meshlora/meshlora/internal/filter"
	"github.com/meshlora/meshlora/internal/mesh"
	"github.com/meshlora/meshlora/internal/provider"
	"github.com/meshlora/meshlora/internal/store"
)

// echoProvider replies "re: <last user message>", optionally after a delay
// to surface ordering races.
type echoProvider struct {
	delay time.Duration
}

func (p *echoProvider) DefaultModel() string { return "echo" }

func (p *echoProvider) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	last := req.Messages[len(req.Messages)-1]
	return &provider.ChatResponse{Content: "re: " + last.Content}, nil
}

func newTestLoop(t *testing.T, st *store.Store, llm provider.LLMProvider, opts LoopOptions) (*Loop, *mesh.FakeTransport) {
	t.Helper()
	tr := mesh.NewFakeTransport()
	composer := NewComposer(st, llm, nil, ComposerOptions{})
	gate := filter.New(true)
	limiter := filter.NewRateLimiter(100, time.Minute)
	return NewLoop(st, tr, gate, limiter, composer, opts), tr
}

// waitFor polls until cond returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func textEvent(from, text string) mesh.Event {
	return mesh.Event{
		Kind:   mesh.KindTextMessage,
		From:   from,
		To:     "!bridge",
		RxTime: time.Now(),
		Text:   text,
	}
}

func TestLoopPersistsDerivedEntities(t *testing.T) {
	st := testStore(t)
	loop, tr := newTestLoop(t, st, &echoProvider{}, LoopOptions{AutoRespond: false})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	waitFor(t, time.Second, func() bool { return loop.State() == StateRunning })

	tr.Inject(mesh.Event{
		Kind: mesh.KindNodeUpdate, From: "!node1", RxTime: time.Now(),
		Node: &mesh.NodeInfo{ID: "!node1", LongName: "Ridge Repeater", HwModel: "HELTEC"},
	})
	tr.Inject(mesh.Event{
		Kind: mesh.KindTelemetry, From: "!node1", RxTime: time.Now(),
		Telemetry: &mesh.Telemetry{BatteryLevel: 77, Voltage: 3.9},
	})
	tr.Inject(mesh.Event{
		Kind: mesh.KindPosition, From: "!node1", RxTime: time.Now(),
		Position: &mesh.Position{Latitude: 45.5, Longitude: -122.6},
	})
	tr.Inject(textEvent("!node1", "hello bridge"))

	waitFor(t, 2*time.Second, func() bool {
		n, _ := st.RawEventCount()
		return n == 4
	})

	node, err := st.GetNode("!node1")
	if err != nil || node == nil {
		t.Fatalf("GetNode: %v, %v", node, err)
	}
	if node.LongName != "Ridge Repeater" || node.BatteryLevel != 77 || node.Latitude != 45.5 {
		t.Errorf("node snapshot = %+v", node)
	}
	if rows, _ := st.RecentTelemetry("!node1", 5); len(rows) != 1 {
		t.Errorf("telemetry rows = %d, want 1", len(rows))
	}
	if rows, _ := st.RecentPositions("!node1", 5); len(rows) != 1 {
		t.Errorf("position rows = %d, want 1", len(rows))
	}
	msgs, _ := st.ConversationHistory("!node1", 5)
	if len(msgs) != 1 || msgs[0].Text != "hello bridge" {
		t.Errorf("messages = %+v", msgs)
	}

	// AutoRespond off: nothing queued.
	if items, _ := st.ListOutbox("", 10); len(items) != 0 {
		t.Errorf("outbox rows = %d, want 0", len(items))
	}

	cancel()
	<-done
}

func TestLoopRepliesThroughOutbox(t *testing.T) {
	st := testStore(t)
	loop, tr := newTestLoop(t, st, &echoProvider{}, LoopOptions{AutoRespond: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)
	waitFor(t, time.Second, func() bool { return loop.State() == StateRunning })

	tr.Inject(textEvent("!alice", "ping"))

	var items []store.OutboxItem
	waitFor(t, 2*time.Second, func() bool {
		items, _ = st.ListOutbox(store.OutboxPending, 10)
		return len(items) == 1
	})
	if items[0].Text != "re: ping" || items[0].Dest != "!alice" {
		t.Errorf("queued reply = %+v", items[0])
	}
	// Replies never touch the transport directly.
	if sent := tr.Sent(); len(sent) != 0 {
		t.Errorf("loop sent %d messages directly", len(sent))
	}
}

func TestLoopBroadcastRepliesStayOnChannel(t *testing.T) {
	st := testStore(t)
	loop, tr := newTestLoop(t, st, &echoProvider{}, LoopOptions{AutoRespond: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)
	waitFor(t, time.Second, func() bool { return loop.State() == StateRunning })

	ev := textEvent("!alice", "anyone?")
	ev.To = mesh.Broadcast
	ev.Channel = 3
	tr.Inject(ev)

	var items []store.OutboxItem
	waitFor(t, 2*time.Second, func() bool {
		items, _ = st.ListOutbox(store.OutboxPending, 10)
		return len(items) == 1
	})
	if items[0].Dest != mesh.Broadcast || items[0].Channel != 3 {
		t.Errorf("broadcast reply = %+v, want ^all on channel 3", items[0])
	}
}

func TestLoopBlocksFilteredContent(t *testing.T) {
	st := testStore(t)
	loop, tr := newTestLoop(t, st, &echoProvider{}, LoopOptions{AutoRespond: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)
	waitFor(t, time.Second, func() bool { return loop.State() == StateRunning })

	tr.Inject(textEvent("!scammer", "free money wire transfer now"))

	var rows []store.FilteredEvent
	waitFor(t, 2*time.Second, func() bool {
		rows, _ = st.ListFiltered(10)
		return len(rows) == 1
	})
	if rows[0].Rule != filter.RuleScam || rows[0].SenderID != "!scammer" {
		t.Errorf("filtered row = %+v", rows[0])
	}
	if items, _ := st.ListOutbox("", 10); len(items) != 0 {
		t.Error("blocked message produced a reply")
	}
	// The inbound message is still persisted; only the reply is suppressed.
	if msgs, _ := st.ConversationHistory("!scammer", 5); len(msgs) != 1 {
		t.Errorf("inbound message rows = %d, want 1", len(msgs))
	}
}

func TestLoopRateLimitsSenders(t *testing.T) {
	st := testStore(t)
	tr := mesh.NewFakeTransport()
	composer := NewComposer(st, &echoProvider{}, nil, ComposerOptions{})
	limiter := filter.NewRateLimiter(2, time.Minute)
	loop := NewLoop(st, tr, filter.New(true), limiter, composer, LoopOptions{AutoRespond: true, Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)
	waitFor(t, time.Second, func() bool { return loop.State() == StateRunning })

	for i := 0; i < 4; i++ {
		tr.Inject(textEvent("!chatty", fmt.Sprintf("msg %d", i)))
	}

	var rows []store.FilteredEvent
	waitFor(t, 3*time.Second, func() bool {
		rows, _ = st.ListFiltered(10)
		return len(rows) == 2
	})
	for _, row := range rows {
		if row.Rule != rateLimitRule {
			t.Errorf("rule = %s, want %s", row.Rule, rateLimitRule)
		}
	}
	if items, _ := st.ListOutbox("", 10); len(items) != 2 {
		t.Errorf("replies queued = %d, want 2", len(items))
	}
}

// TestPerSenderOrdering floods two senders concurrently and checks that
// each sender's replies follow that sender's arrival order, even with slow
// generations running in parallel.
func TestPerSenderOrdering(t *testing.T) {
	st := testStore(t)
	loop, tr := newTestLoop(t, st, &echoProvider{delay: 20 * time.Millisecond}, LoopOptions{AutoRespond: true, Workers: 4})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)
	waitFor(t, time.Second, func() bool { return loop.State() == StateRunning })

	const perSender = 3
	senders := []string{"!alice", "!bob"}
	var wg sync.WaitGroup
	for _, sender := range senders {
		wg.Add(1)
		go func(sender string) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				tr.Inject(textEvent(sender, fmt.Sprintf("%s msg %d", sender, i)))
			}
		}(sender)
	}
	wg.Wait()

	var items []store.OutboxItem
	waitFor(t, 5*time.Second, func() bool {
		items, _ = st.ListOutbox("", 20)
		return len(items) == perSender*len(senders)
	})

	// ListOutbox returns newest first; walk oldest first and check each
	// sender's replies carry increasing sequence numbers.
	next := map[string]int{}
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		for _, sender := range senders {
			if !strings.Contains(item.Text, sender) {
				continue
			}
			want := fmt.Sprintf("re: %s msg %d", sender, next[sender])
			if item.Text != want {
				t.Fatalf("reply out of order for %s: got %q, want %q", sender, item.Text, want)
			}
			next[sender]++
		}
	}
	for _, sender := range senders {
		if next[sender] != perSender {
			t.Errorf("replies for %s = %d, want %d", sender, next[sender], perSender)
		}
	}
}
