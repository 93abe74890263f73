package mesh

import (
	"context"
	"sync"
)

// SentMessage records one Send call on the fake transport.
type SentMessage struct {
	Text    string
	Channel int
	Dest    string
}

// FakeTransport is an in-memory transport for tests and dry runs. Events
// are injected by the caller; sends are recorded.
type FakeTransport struct {
	mu        sync.Mutex
	events    chan Event
	sent      []SentMessage
	connected bool
	// SendErr, when set, is returned by Send to simulate radio failures.
	SendErr error
}

// NewFakeTransport creates a disconnected fake.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{}
}

func (f *FakeTransport) Name() string { return "fake" }

func (f *FakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = make(chan Event, 64)
	f.connected = true
	return nil
}

func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connected {
		close(f.events)
		f.connected = false
	}
	return nil
}

func (f *FakeTransport) Events() <-chan Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events
}

func (f *FakeTransport) Send(ctx context.Context, text string, channel int, dest string) error {
	if err := ValidateSend(text, channel); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return ErrNotConnected
	}
	if f.SendErr != nil {
		return f.SendErr
	}
	f.sent = append(f.sent, SentMessage{Text: text, Channel: channel, Dest: dest})
	return nil
}

// Inject delivers an event as if received from the radio.
func (f *FakeTransport) Inject(ev Event) {
	f.mu.Lock()
	ch := f.events
	f.mu.Unlock()
	ch <- ev
}

// Sent returns a snapshot of recorded sends.
func (f *FakeTransport) Sent() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}
