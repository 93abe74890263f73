package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/meshlora/meshlora/internal/filter"
	"github.com/meshlora/meshlora/internal/mesh"
	"github.com/meshlora/meshlora/internal/store"
)

// State names the phases of the ingestion loop lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateConnected    State = "connected"
	StateRunning      State = "running"
	StateReconnecting State = "reconnecting"
	StateStopped      State = "stopped"
)

// rateLimitRule is the audit rule name for rate-limited drops, alongside
// the content rule names the classifier emits.
const rateLimitRule = "rate_limit"

// Loop consumes the transport event feed, persists every event in arrival
// order and hands text messages through the safety gate to the composer.
// Replies leave through the outbox, never directly.
type Loop struct {
	store      *store.Store
	transport  mesh.Transport
	gate       *filter.Filter
	limiter    *filter.RateLimiter
	composer   *Composer
	dispatcher *Dispatcher

	reconnectAttempts int
	autoRespond       atomic.Bool

	mu    sync.Mutex
	state State
}

// LoopOptions configures the ingestion loop.
type LoopOptions struct {
	Workers           int
	ReconnectAttempts int
	AutoRespond       bool
}

// NewLoop wires the ingestion loop. The composer may be nil only when
// AutoRespond is false.
func NewLoop(st *store.Store, tr mesh.Transport, gate *filter.Filter, limiter *filter.RateLimiter, composer *Composer, opts LoopOptions) *Loop {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = 10
	}
	l := &Loop{
		store:             st,
		transport:         tr,
		gate:              gate,
		limiter:           limiter,
		composer:          composer,
		reconnectAttempts: opts.ReconnectAttempts,
		state:             StateIdle,
	}
	l.autoRespond.Store(opts.AutoRespond)
	l.dispatcher = NewDispatcher(opts.Workers, l.respond)
	return l
}

// State returns the current lifecycle phase.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// SetAutoRespond toggles reply generation at runtime. Ingestion and
// persistence continue either way.
func (l *Loop) SetAutoRespond(on bool) {
	l.autoRespond.Store(on)
	slog.Info("Auto-respond toggled", "enabled", on)
}

// AutoRespond reports whether replies are currently generated.
func (l *Loop) AutoRespond() bool {
	return l.autoRespond.Load()
}

// Run connects the transport and processes events until the context is
// cancelled or reconnection is exhausted. Events arriving while
// disconnected are lost; the loop never replays.
func (l *Loop) Run(ctx context.Context) error {
	defer l.setState(StateStopped)
	l.dispatcher.Start(ctx)
	defer l.dispatcher.Wait()

	if err := l.connect(ctx); err != nil {
		return err
	}

	for {
		l.setState(StateRunning)
		if err := l.consume(ctx); err != nil {
			return err
		}
		// Event channel closed: connection lost.
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		l.setState(StateReconnecting)
		slog.Warn("Transport disconnected, reconnecting", "transport", l.transport.Name())
		if err := l.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reconnect: %w", err)
		}
	}
}

func (l *Loop) connect(ctx context.Context) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(l.reconnectAttempts)),
		ctx)
	err := backoff.RetryNotify(func() error {
		return l.transport.Connect(ctx)
	}, policy, func(err error, next time.Duration) {
		slog.Warn("Transport connect failed", "error", err, "retry_in", next)
	})
	if err != nil {
		return err
	}
	l.setState(StateConnected)
	slog.Info("Transport connected", "transport", l.transport.Name())
	return nil
}

// consume drains the current connection's event feed. Returns nil when
// the feed closes (disconnect) so Run can reconnect, and only returns an
// error for unrecoverable conditions.
func (l *Loop) consume(ctx context.Context) error {
	events := l.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			l.ingest(ev)
		}
	}
}

// ingest persists one event and its derived entities, in arrival order,
// then queues text messages for response. Persistence failures are logged
// and the event dropped; the loop keeps running.
func (l *Loop) ingest(ev mesh.Event) {
	rawID, err := l.appendRaw(ev)
	if err != nil {
		slog.Error("Failed to persist event", "kind", ev.Kind, "from", ev.From, "error", err)
		return
	}

	if ev.From != "" && ev.Kind != mesh.KindNodeUpdate {
		if err := l.store.TouchNodeLastHeard(ev.From, ev.RxTime); err != nil {
			slog.Warn("Failed to touch node", "node", ev.From, "error", err)
		}
	}

	switch ev.Kind {
	case mesh.KindTextMessage:
		l.ingestText(ev, rawID)
	case mesh.KindNodeUpdate:
		l.ingestNode(ev)
	case mesh.KindTelemetry:
		l.ingestTelemetry(ev)
	case mesh.KindPosition:
		l.ingestPosition(ev)
	case mesh.KindRouting:
		if ev.Routing != nil {
			if err := l.store.SaveRouting(ev.From, ev.Routing.Dest, ev.Routing.RequestID, ev.Routing.Result); err != nil {
				slog.Warn("Failed to save routing", "error", err)
			}
		}
	case mesh.KindNeighborInfo:
		for _, n := range ev.Neighbors {
			if err := l.store.SaveNeighbor(ev.From, n.NodeID, n.SNR); err != nil {
				slog.Warn("Failed to save neighbor", "error", err)
			}
		}
	case mesh.KindAck:
		// Raw row is the record; nothing derived.
	}
}

func (l *Loop) appendRaw(ev mesh.Event) (int64, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return 0, err
	}
	return l.store.AppendRawEvent(&store.RawEvent{
		Kind:     string(ev.Kind),
		FromID:   ev.From,
		ToID:     ev.To,
		Channel:  ev.Channel,
		RxTime:   ev.RxTime,
		SNR:      ev.SNR,
		RSSI:     ev.RSSI,
		HopLimit: ev.HopLimit,
		HopStart: ev.HopStart,
		Payload:  string(payload),
	})
}

func (l *Loop) ingestText(ev mesh.Event, rawID int64) {
	if _, err := l.store.RecordMessage(&store.Message{
		Direction:  store.DirectionIn,
		SenderID:   ev.From,
		Channel:    ev.Channel,
		Text:       ev.Text,
		RawEventID: rawID,
		CreatedAt:  ev.RxTime,
	}); err != nil {
		slog.Error("Failed to record message", "from", ev.From, "error", err)
		return
	}
	slog.Info("Message received", "from", ev.From, "channel", ev.Channel, "bytes", len(ev.Text))

	l.dispatcher.Submit(inboundText{Event: ev, RawEventID: rawID})
}

func (l *Loop) ingestNode(ev mesh.Event) {
	if ev.Node == nil {
		return
	}
	err := l.store.UpsertNode(&store.Node{
		ID:        ev.Node.ID,
		LongName:  ev.Node.LongName,
		ShortName: ev.Node.ShortName,
		HwModel:   ev.Node.HwModel,
		LastHeard: ev.RxTime,
		HopsAway:  ev.Hops(),
		SNR:       ev.SNR,
	})
	if err != nil {
		slog.Warn("Failed to upsert node", "node", ev.Node.ID, "error", err)
	}
}

func (l *Loop) ingestTelemetry(ev mesh.Event) {
	if ev.Telemetry == nil {
		return
	}
	t := ev.Telemetry
	err := l.store.SaveTelemetry(&store.TelemetryRow{
		NodeID:       ev.From,
		BatteryLevel: t.BatteryLevel,
		Voltage:      t.Voltage,
		ChannelUtil:  t.ChannelUtil,
		AirUtilTX:    t.AirUtilTX,
		Temperature:  t.Temperature,
		Humidity:     t.Humidity,
		Pressure:     t.Pressure,
	})
	if err != nil {
		slog.Warn("Failed to save telemetry", "node", ev.From, "error", err)
	}
	if t.BatteryLevel > 0 {
		_ = l.store.UpsertNode(&store.Node{ID: ev.From, LastHeard: ev.RxTime, BatteryLevel: t.BatteryLevel})
	}
}

func (l *Loop) ingestPosition(ev mesh.Event) {
	if ev.Position == nil {
		return
	}
	p := ev.Position
	err := l.store.SavePosition(&store.PositionRow{
		NodeID:    ev.From,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Altitude:  p.Altitude,
		Speed:     p.Speed,
	})
	if err != nil {
		slog.Warn("Failed to save position", "node", ev.From, "error", err)
	}
	if p.Latitude != 0 || p.Longitude != 0 {
		_ = l.store.UpsertNode(&store.Node{ID: ev.From, LastHeard: ev.RxTime, Latitude: p.Latitude, Longitude: p.Longitude})
	}
}

// respond runs on a dispatcher worker: safety gate, then composition,
// then the reply goes into the outbox for the poller to transmit.
func (l *Loop) respond(ctx context.Context, item inboundText) {
	ev := item.Event
	if !l.autoRespond.Load() {
		return
	}

	verdict := l.gate.Classify(ev.Text)
	if !verdict.Allowed {
		slog.Warn("Message blocked", "from", ev.From, "rule", verdict.Rule)
		if err := l.store.RecordFiltered(ev.From, l.gate.Redact(ev.Text), verdict.Rule); err != nil {
			slog.Warn("Failed to record filtered message", "error", err)
		}
		return
	}

	if allowed, retryAfter := l.limiter.Check(ev.From, time.Now()); !allowed {
		slog.Info("Sender rate limited", "from", ev.From, "retry_after", retryAfter)
		if err := l.store.RecordFiltered(ev.From, ev.Text, rateLimitRule); err != nil {
			slog.Warn("Failed to record filtered message", "error", err)
		}
		return
	}

	reply, err := l.composer.Respond(ctx, ev)
	if err != nil {
		slog.Error("Response generation failed", "from", ev.From, "error", err)
		return
	}
	if reply == "" {
		return
	}

	dest := ev.From
	if ev.To == mesh.Broadcast {
		dest = mesh.Broadcast
	}
	key := fmt.Sprintf("reply-%d", item.RawEventID)
	if _, err := l.store.EnqueueOutbox(reply, dest, ev.Channel, key); err != nil {
		if errors.Is(err, store.ErrDuplicateWork) {
			slog.Debug("Reply already enqueued", "key", key)
			return
		}
		slog.Error("Failed to enqueue reply", "from", ev.From, "error", err)
	}
}
