// Package mesh defines the transport collaborator for the radio network:
// a typed event stream plus a narrow send operation. The radio's own wire
// protocol lives behind the daemon connection and is not interpreted here.
package mesh

import (
	"encoding/json"
	"time"
)

// Broadcast is the destination for channel-wide messages.
const Broadcast = "^all"

// MaxPayloadBytes is the radio's hard payload limit for one text message.
const MaxPayloadBytes = 237

// NumChannels is the number of logical message scopes; channel 0 is the
// default broadcast channel.
const NumChannels = 8

// EventKind identifies one variant of the closed event set.
type EventKind string

const (
	KindTextMessage  EventKind = "text"
	KindTelemetry    EventKind = "telemetry"
	KindPosition     EventKind = "position"
	KindRouting      EventKind = "routing"
	KindNeighborInfo EventKind = "neighbors"
	KindNodeUpdate   EventKind = "node"
	KindAck          EventKind = "ack"
)

// Event is one transport-level occurrence. Kind selects which of the
// optional payload fields is populated.
type Event struct {
	Kind     EventKind `json:"type"`
	From     string    `json:"from"`
	To       string    `json:"to,omitempty"`
	Channel  int       `json:"channel"`
	RxTime   time.Time `json:"rx_time"`
	SNR      float64   `json:"snr,omitempty"`
	RSSI     int       `json:"rssi,omitempty"`
	HopLimit int       `json:"hop_limit,omitempty"`
	HopStart int       `json:"hop_start,omitempty"`

	Text      string          `json:"text,omitempty"`
	Telemetry *Telemetry      `json:"telemetry,omitempty"`
	Position  *Position       `json:"position,omitempty"`
	Routing   *Routing        `json:"routing,omitempty"`
	Neighbors []Neighbor      `json:"neighbors,omitempty"`
	Node      *NodeInfo       `json:"node,omitempty"`
	AckID     uint32          `json:"ack_id,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// Hops returns the number of hops the packet travelled, when derivable.
func (e *Event) Hops() int {
	if e.HopStart > 0 && e.HopStart >= e.HopLimit {
		return e.HopStart - e.HopLimit
	}
	return 0
}

// Telemetry carries device metrics from a node.
type Telemetry struct {
	BatteryLevel int     `json:"battery_level,omitempty"`
	Voltage      float64 `json:"voltage,omitempty"`
	ChannelUtil  float64 `json:"channel_utilization,omitempty"`
	AirUtilTX    float64 `json:"air_util_tx,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	Humidity     float64 `json:"relative_humidity,omitempty"`
	Pressure     float64 `json:"barometric_pressure,omitempty"`
}

// Position carries a node location fix.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  int     `json:"altitude,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
}

// Routing carries route discovery results.
type Routing struct {
	Dest      string `json:"dest,omitempty"`
	RequestID uint32 `json:"request_id,omitempty"`
	Result    string `json:"result,omitempty"`
}

// Neighbor is one entry of a neighbor-info report.
type Neighbor struct {
	NodeID string  `json:"node_id"`
	SNR    float64 `json:"snr,omitempty"`
}

// NodeInfo carries node identity updates.
type NodeInfo struct {
	ID        string `json:"id"`
	LongName  string `json:"long_name,omitempty"`
	ShortName string `json:"short_name,omitempty"`
	HwModel   string `json:"hw_model,omitempty"`
}
