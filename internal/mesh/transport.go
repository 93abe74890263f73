package mesh

import (
	"context"
	"errors"
	"fmt"
)

// Transport errors.
var (
	// ErrNotConnected is returned by Send when no daemon connection is up.
	ErrNotConnected = errors.New("mesh: not connected")
	// ErrPayloadTooLarge is returned by Send when the encoded text exceeds
	// MaxPayloadBytes.
	ErrPayloadTooLarge = errors.New("mesh: payload exceeds radio limit")
)

// Transport is the narrow interface the bridge uses to talk to the radio.
// Connect must be called before Events; after the event channel closes
// (connection lost), Connect may be called again to re-establish.
type Transport interface {
	// Name returns the transport kind (e.g. "tcp").
	Name() string
	// Connect establishes the daemon connection and starts the event feed.
	Connect(ctx context.Context) error
	// Close tears down the connection. Safe to call when not connected.
	Close() error
	// Events returns the feed for the current connection. The channel is
	// closed when the connection drops.
	Events() <-chan Event
	// Send transmits one text message on the given channel, to a node id
	// or Broadcast.
	Send(ctx context.Context, text string, channel int, dest string) error
}

// New constructs a transport by kind.
func New(kind, address string) (Transport, error) {
	switch kind {
	case "tcp":
		return NewTCPTransport(address), nil
	case "fake":
		return NewFakeTransport(), nil
	default:
		return nil, fmt.Errorf("mesh: unknown transport kind %q", kind)
	}
}

// ValidateSend checks payload and channel constraints shared by all
// transport implementations.
func ValidateSend(text string, channel int) error {
	if len(text) > MaxPayloadBytes {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(text))
	}
	if channel < 0 || channel >= NumChannels {
		return fmt.Errorf("mesh: channel %d out of range", channel)
	}
	return nil
}
