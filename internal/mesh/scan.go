package mesh

import (
	"fmt"
	"net"
	"path/filepath"
	"time"
)

// Endpoint is one discoverable transport target.
type Endpoint struct {
	Kind    string
	Address string
	Note    string
}

// Scan lists transport endpoints reachable from this machine: serial device
// nodes that look like a radio, and the daemon's default TCP port on
// localhost. Serial endpoints are reported for visibility even though only
// the tcp transport is wired here.
func Scan() []Endpoint {
	var out []Endpoint

	for _, pattern := range []string{"/dev/ttyUSB*", "/dev/ttyACM*"} {
		matches, _ := filepath.Glob(pattern)
		for _, dev := range matches {
			out = append(out, Endpoint{Kind: "serial", Address: dev, Note: "serial device (connect via daemon)"})
		}
	}

	for _, addr := range []string{"localhost:4403"} {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err != nil {
			continue
		}
		_ = conn.Close()
		out = append(out, Endpoint{Kind: "tcp", Address: addr, Note: "radio daemon"})
	}

	return out
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%-6s %-20s %s", e.Kind, e.Address, e.Note)
}
