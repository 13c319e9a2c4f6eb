// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/poolbus/internal/gateway"
	"github.com/Thermoquad/poolbus/pkg/panel"
	"github.com/Thermoquad/poolbus/pkg/programmer"
	"github.com/Thermoquad/poolbus/pkg/rsbus"
	"github.com/gorilla/websocket"
)

// ============================================================
// Request Parsing Tests
// ============================================================

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    programmer.Request
		wantErr bool
	}{
		{"heater", []string{"pool_heater", "82"}, programmer.Request{Kind: programmer.KindPoolHeater, Value: 82}, false},
		{"dashes", []string{"swg-percent", "40"}, programmer.Request{Kind: programmer.KindSWGPercent, Value: 40}, false},
		{"no value", []string{"aux_labels"}, programmer.Request{Kind: programmer.KindAuxLabels}, false},
		{"unknown", []string{"sauna"}, programmer.Request{}, true},
		{"not a number", []string{"pool_heater", "hot"}, programmer.Request{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRequest(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr {
				return
			}
			if got.Kind != tt.want.Kind || got.Value != tt.want.Value {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestParseRequest_Time(t *testing.T) {
	setTime = "2025-06-01 14:30"
	defer func() { setTime = "" }()

	req, err := parseRequest([]string{"time"})
	if err != nil {
		t.Fatalf("parseRequest: %v", err)
	}
	want := time.Date(2025, 6, 1, 14, 30, 0, 0, time.Local)
	if !req.Time.Equal(want) {
		t.Errorf("Expected %v, got %v", want, req.Time)
	}
}

func TestMonitorRequest(t *testing.T) {
	req, err := monitorRequest([]string{"color_light", "3", "4"})
	if err != nil {
		t.Fatalf("monitorRequest: %v", err)
	}
	if req.Kind != programmer.KindColorLight || req.Value != 3 || req.Button != 4 {
		t.Errorf("Unexpected request %+v", req)
	}

	for _, args := range [][]string{nil, {"dimmer", "1", "2", "3"}, {"nope"}} {
		if _, err := monitorRequest(args); err == nil {
			t.Errorf("Expected error for %v", args)
		}
	}
}

// ============================================================
// Formatting Tests
// ============================================================

func TestFormatTemp(t *testing.T) {
	tests := []struct {
		v    int
		u    panel.TempUnits
		want string
	}{
		{78, panel.Fahrenheit, "78°F"},
		{26, panel.Celsius, "26°C"},
		{panel.TempUnknown, panel.Fahrenheit, "--"},
	}
	for _, tt := range tests {
		if got := formatTemp(tt.v, tt.u); got != tt.want {
			t.Errorf("formatTemp(%d): expected %q, got %q", tt.v, tt.want, got)
		}
	}
	if got := formatPercent(-1); got != "--" {
		t.Errorf("Expected --, got %q", got)
	}
	if got := formatPercent(40); got != "40%" {
		t.Errorf("Expected 40%%, got %q", got)
	}
}

func TestBusEnded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want bool
	}{
		{"nil", context.Background(), nil, true},
		{"cancelled", ctx, context.Canceled, true},
		{"capture end", context.Background(), &rsbus.FrameError{Code: rsbus.ErrRead, Err: io.EOF}, true},
		{"port gone", context.Background(), errors.New("device removed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := busEnded(tt.ctx, tt.err); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

// ============================================================
// WebSocket Bridge Tests
// ============================================================

func TestWebSocketConnection(t *testing.T) {
	upgrader := websocket.Upgrader{}
	echoed := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "pool" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		c.WriteMessage(websocket.TextMessage, []byte("bridge ready"))
		c.WriteMessage(websocket.BinaryMessage, []byte{0x10, 0x02, 0x0A, 0x00})
		c.WriteMessage(websocket.BinaryMessage, []byte{0x1C, 0x10, 0x03})
		if _, data, err := c.ReadMessage(); err == nil {
			echoed <- data
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := OpenWebSocketConnection(url, "pool", "secret", false)
	if err != nil {
		t.Fatalf("OpenWebSocketConnection: %v", err)
	}
	defer conn.Close()

	// Small reads split the first message, the text message is skipped
	var got []byte
	buf := make([]byte, 3)
	for len(got) < 7 {
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, buf[:n]...)
	}
	want := []byte{0x10, 0x02, 0x0A, 0x00, 0x1C, 0x10, 0x03}
	if string(got) != string(want) {
		t.Errorf("Expected % x, got % x", want, got)
	}

	if _, err := conn.Write([]byte{0x10, 0x02, 0x00, 0x01}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	select {
	case data := <-echoed:
		if len(data) != 4 || data[3] != 0x01 {
			t.Errorf("Server got % x", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Server got nothing")
	}

	// Server closed after reading, reads now fail for good
	if _, err := conn.Read(buf); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Expected ErrConnectionClosed, got %v", err)
	}
	if _, err := conn.Read(buf); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Expected ErrConnectionClosed again, got %v", err)
	}
}

func TestOpenWebSocketConnection_BadScheme(t *testing.T) {
	if _, err := OpenWebSocketConnection("http://example.com/bus", "", "", false); err == nil {
		t.Error("Expected an error for http://")
	}
}

// ============================================================
// Monitor Tests
// ============================================================

type idleBus struct{}

func (idleBus) ReadFrame(ctx context.Context) (*rsbus.Frame, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (idleBus) SendAck(ctx context.Context, ackType, command byte) error { return nil }

func newTestMonitor() monitorModel {
	g := gateway.New(idleBus{}, gateway.Options{DeviceID: 0x0A, PanelSize: 8, Combo: true})
	return initialMonitorModel(context.Background(), g, "test", 0x0A)
}

func TestMonitor_Submit(t *testing.T) {
	m := newTestMonitor()

	m.submit("MENU Aux_1")
	if len(m.eventLog) != 2 || m.eventLog[1].message != "Pressed Aux_1" {
		t.Errorf("Unexpected log %+v", m.eventLog)
	}

	m.submit("sideways")
	last := m.eventLog[len(m.eventLog)-1]
	if !last.isError {
		t.Errorf("Expected an error entry, got %+v", last)
	}

	m.submit("set")
	last = m.eventLog[len(m.eventLog)-1]
	if !last.isError {
		t.Errorf("Expected set without a session to fail, got %+v", last)
	}
}

func TestMonitor_Lines(t *testing.T) {
	m := newTestMonitor()
	for _, line := range []string{"POOL TEMP 80`F", "POOL TEMP 80`F", "", "AIR TEMP 70`F"} {
		next, _ := m.Update(lineMsg(line))
		m = next.(monitorModel)
	}
	if len(m.lines) != 2 {
		t.Errorf("Expected 2 lines, got %v", m.lines)
	}

	for i := 0; i < maxDisplayLines+3; i++ {
		next, _ := m.Update(lineMsg(strings.Repeat("x", i+1)))
		m = next.(monitorModel)
	}
	if len(m.lines) != maxDisplayLines {
		t.Errorf("Expected %d lines kept, got %d", maxDisplayLines, len(m.lines))
	}
	if !strings.Contains(m.View(), "POOLBUS") {
		t.Error("Expected the title in the view")
	}
}
