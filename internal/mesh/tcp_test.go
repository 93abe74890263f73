package mesh

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"
)

// startDaemonStub listens on a loopback port and hands the accepted
// connection to the test.
func startDaemonStub(t *testing.T) (addr string, connCh <-chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	ch := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		ch <- conn
	}()
	return ln.Addr().String(), ch
}

func TestTCPTransportReceivesFrames(t *testing.T) {
	addr, connCh := startDaemonStub(t)

	tr := NewTCPTransport(addr)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Close()

	daemon := <-connCh
	defer daemon.Close()

	frames := []string{
		`{"type":"text","from":"!a1b2","channel":2,"text":"hello","snr":6.5}`,
		`not json at all`, // must be skipped, not kill the feed
		`{"type":"telemetry","from":"!a1b2","telemetry":{"battery_level":55}}`,
	}
	for _, f := range frames {
		if _, err := daemon.Write([]byte(f + "\n")); err != nil {
			t.Fatalf("write frame: %v", err)
		}
	}

	ev := recvEvent(t, tr)
	if ev.Kind != KindTextMessage || ev.Text != "hello" || ev.Channel != 2 || ev.SNR != 6.5 {
		t.Errorf("first event = %+v", ev)
	}
	if ev.RxTime.IsZero() {
		t.Error("rx_time not defaulted")
	}

	ev = recvEvent(t, tr)
	if ev.Kind != KindTelemetry || ev.Telemetry == nil || ev.Telemetry.BatteryLevel != 55 {
		t.Errorf("second event = %+v", ev)
	}
}

func TestTCPTransportSendFraming(t *testing.T) {
	addr, connCh := startDaemonStub(t)

	tr := NewTCPTransport(addr)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Close()
	daemon := <-connCh
	defer daemon.Close()

	if err := tr.Send(context.Background(), "on my way", 1, "!dest"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	line, err := bufio.NewReader(daemon).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame struct {
		Type    string `json:"type"`
		Text    string `json:"text"`
		Channel int    `json:"channel"`
		To      string `json:"to"`
	}
	if err := json.Unmarshal(line, &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if frame.Type != "send" || frame.Text != "on my way" || frame.Channel != 1 || frame.To != "!dest" {
		t.Errorf("frame = %+v", frame)
	}
}

func TestTCPTransportFeedClosesOnDisconnect(t *testing.T) {
	addr, connCh := startDaemonStub(t)

	tr := NewTCPTransport(addr)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Close()

	daemon := <-connCh
	daemon.Close()

	select {
	case _, ok := <-tr.Events():
		if ok {
			t.Error("got an event from a dead connection")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after disconnect")
	}
}

func recvEvent(t *testing.T, tr *TCPTransport) Event {
	t.Helper()
	select {
	case ev, ok := <-tr.Events():
		if !ok {
			t.Fatal("events channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}
