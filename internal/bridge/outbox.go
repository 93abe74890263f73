package bridge

import (
	"context"
	"log/slog"
	"time"

	"github.com/meshlora/meshlora/internal/mesh"
	"github.com/meshlora/meshlora/internal/store"
)

// OutboxPoller drains queued sends onto the radio. It is the only writer
// that moves outbox items past pending, so every queued message is
// transmitted exactly once even with monitor or CLI processes enqueueing
// concurrently.
type OutboxPoller struct {
	store       *store.Store
	transport   mesh.Transport
	interval    time.Duration
	maxAttempts int
	staleAfter  time.Duration
}

// OutboxOptions configures the poller.
type OutboxOptions struct {
	Interval    time.Duration
	MaxAttempts int
	StaleAfter  time.Duration
}

// NewOutboxPoller creates an outbox poller with sensible defaults.
func NewOutboxPoller(st *store.Store, tr mesh.Transport, opts OutboxOptions) *OutboxPoller {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 2 * time.Minute
	}
	return &OutboxPoller{
		store:       st,
		transport:   tr,
		interval:    opts.Interval,
		maxAttempts: opts.MaxAttempts,
		staleAfter:  opts.StaleAfter,
	}
}

// Run starts the polling loop. Blocks until the context is cancelled; an
// item already claimed is finished before returning.
func (p *OutboxPoller) Run(ctx context.Context) error {
	// Claims left in_flight by an unclean shutdown go back to pending.
	if n, err := p.store.ReclaimStaleOutbox(p.staleAfter); err != nil {
		slog.Warn("Outbox reclaim failed", "error", err)
	} else if n > 0 {
		slog.Info("Reclaimed stale outbox claims", "count", n)
	}

	slog.Info("Outbox poller started", "interval", p.interval, "max_attempts", p.maxAttempts)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Outbox poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

// drain claims and sends until the queue is empty or the context ends.
func (p *OutboxPoller) drain(ctx context.Context) {
	for {
		item, err := p.store.ClaimNextOutbox()
		if err != nil {
			slog.Error("Outbox claim failed", "error", err)
			return
		}
		if item == nil {
			return
		}
		p.deliver(ctx, item)
		if ctx.Err() != nil {
			return
		}
	}
}

func (p *OutboxPoller) deliver(ctx context.Context, item *store.OutboxItem) {
	err := p.transport.Send(ctx, item.Text, item.Channel, item.Dest)
	if err == nil {
		if err := p.store.CompleteOutbox(item.ID, store.OutboxSent, ""); err != nil {
			slog.Error("Outbox complete failed", "id", item.ID, "error", err)
			return
		}
		if _, err := p.store.RecordMessage(&store.Message{
			Direction: store.DirectionOut,
			SenderID:  item.Dest,
			Channel:   item.Channel,
			Text:      item.Text,
		}); err != nil {
			slog.Warn("Failed to record outbound message", "error", err)
		}
		slog.Info("Message sent", "id", item.ID, "dest", item.Dest, "channel", item.Channel)
		return
	}

	// Attempts counts completed tries; this failure is attempt Attempts+1.
	if item.Attempts+1 >= p.maxAttempts {
		slog.Error("Outbox item failed permanently", "id", item.ID, "attempts", item.Attempts+1, "error", err)
		if cerr := p.store.CompleteOutbox(item.ID, store.OutboxFailed, err.Error()); cerr != nil {
			slog.Error("Outbox complete failed", "id", item.ID, "error", cerr)
		}
		return
	}
	slog.Warn("Outbox send failed, will retry", "id", item.ID, "attempts", item.Attempts+1, "error", err)
	if rerr := p.store.ReleaseOutbox(item.ID, err.Error()); rerr != nil {
		slog.Error("Outbox release failed", "id", item.ID, "error", rerr)
	}
}
