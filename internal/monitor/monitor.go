// Package monitor renders a live view of the mesh from the shared
// database. It runs in its own process: reads are direct, and its only
// write path is enqueueing outbox items for the bridge to transmit.
package monitor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/meshlora/meshlora/internal/store"
)

const (
	nodeListLimit    = 20
	messageListLimit = 10
	activeWindow     = 24 * time.Hour
)

// Monitor polls the store's liveness marker and re-renders when the
// database has changed.
type Monitor struct {
	store    *store.Store
	out      io.Writer
	interval time.Duration
}

// New creates a monitor writing to out.
func New(st *store.Store, out io.Writer, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Monitor{store: st, out: out, interval: interval}
}

// Run polls until the context is cancelled, rendering once immediately
// and again whenever the liveness token moves.
func (m *Monitor) Run(ctx context.Context) error {
	token, err := m.store.LivenessToken()
	if err != nil {
		return fmt.Errorf("read liveness: %w", err)
	}
	if err := m.Render(); err != nil {
		return err
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			changed, next, err := m.store.ChangedSince(token)
			if err != nil {
				return fmt.Errorf("poll liveness: %w", err)
			}
			if !changed {
				continue
			}
			token = next
			if err := m.Render(); err != nil {
				return err
			}
		}
	}
}

// Send queues a message for the bridge process to transmit.
func (m *Monitor) Send(text, dest string, channel int) error {
	_, err := m.store.EnqueueOutbox(text, dest, channel, "")
	return err
}

// Render writes the current snapshot: stats, node table, recent traffic.
func (m *Monitor) Render() error {
	header := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)
	warn := color.New(color.FgYellow)

	stats, err := m.store.Stats()
	if err != nil {
		return err
	}

	fmt.Fprintln(m.out)
	header.Fprintln(m.out, "── mesh status ──────────────────────────────")
	fmt.Fprintf(m.out, "nodes %d  messages %d  events %d  filtered %d\n",
		stats.Nodes, stats.Messages, stats.RawEvents, stats.FilteredEvents)
	fmt.Fprintf(m.out, "outbox: %d pending, %d in flight, %d sent, %d failed\n",
		stats.OutboxPending, stats.OutboxInFlight, stats.OutboxSent, stats.OutboxFailed)

	nodes, err := m.store.ActiveNodes(time.Now().Add(-activeWindow))
	if err != nil {
		return err
	}
	header.Fprintln(m.out, "── active nodes (24h) ───────────────────────")
	if len(nodes) == 0 {
		dim.Fprintln(m.out, "  none heard")
	}
	for i, n := range nodes {
		if i >= nodeListLimit {
			dim.Fprintf(m.out, "  … and %d more\n", len(nodes)-nodeListLimit)
			break
		}
		name := n.LongName
		if name == "" {
			name = n.ID
		}
		line := fmt.Sprintf("  %-24s snr %5.1f  heard %s ago  x%d",
			truncName(name, 24), n.SNR, shortAgo(time.Since(n.LastHeard)), n.TimesHeard)
		if n.BatteryLevel > 0 && n.BatteryLevel < 20 {
			warn.Fprintf(m.out, "%s  batt %d%%\n", line, n.BatteryLevel)
		} else {
			fmt.Fprintln(m.out, line)
		}
	}

	msgs, err := m.store.RecentMessages(messageListLimit)
	if err != nil {
		return err
	}
	header.Fprintln(m.out, "── recent messages ──────────────────────────")
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		arrow := "→"
		if msg.Direction == store.DirectionIn {
			arrow = "←"
		}
		dim.Fprintf(m.out, "  %s %s ", msg.CreatedAt.Format("15:04:05"), arrow)
		fmt.Fprintf(m.out, "%s: %s\n", msg.SenderID, msg.Text)
	}
	return nil
}

func truncName(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func shortAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%.0fh", d.Hours())
	}
}
