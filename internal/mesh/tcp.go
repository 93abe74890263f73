package mesh

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// TCPTransport talks to a radio daemon over a TCP socket. Framing is one
// JSON object per line in both directions; the daemon handles pairing,
// discovery, and link-layer work.
type TCPTransport struct {
	address string

	mu     sync.Mutex
	conn   net.Conn
	events chan Event
}

// NewTCPTransport creates a transport for the given host:port.
func NewTCPTransport(address string) *TCPTransport {
	return &TCPTransport{address: address}
}

func (t *TCPTransport) Name() string { return "tcp" }

// Connect dials the daemon and starts the reader goroutine. A fresh event
// channel is created per connection; the previous one is already closed by
// the time Connect is called again.
func (t *TCPTransport) Connect(ctx context.Context) error {
	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", t.address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.address, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.events = make(chan Event, 64)
	events := t.events
	t.mu.Unlock()

	go t.readLoop(conn, events)
	slog.Info("Mesh transport connected", "transport", "tcp", "address", t.address)
	return nil
}

func (t *TCPTransport) readLoop(conn net.Conn, events chan Event) {
	defer close(events)
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 512*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			slog.Debug("Mesh transport dropped undecodable frame", "error", err)
			continue
		}
		if ev.RxTime.IsZero() {
			ev.RxTime = time.Now()
		}
		events <- ev
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("Mesh transport read failed", "error", err)
	}
	slog.Info("Mesh transport disconnected", "address", t.address)
}

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *TCPTransport) Events() <-chan Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.events
}

// sendFrame is the outbound line format.
type sendFrame struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Channel int    `json:"channel"`
	To      string `json:"to"`
}

func (t *TCPTransport) Send(ctx context.Context, text string, channel int, dest string) error {
	if err := ValidateSend(text, channel); err != nil {
		return err
	}
	if dest == "" {
		dest = Broadcast
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	frame, err := json.Marshal(sendFrame{Type: "send", Text: text, Channel: channel, To: dest})
	if err != nil {
		return err
	}
	frame = append(frame, '\n')

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}
