// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/poolbus/pkg/panel"
	"github.com/Thermoquad/poolbus/pkg/programmer"
	"github.com/Thermoquad/poolbus/pkg/rsbus"
)

// ============================================================
// Test Helpers
// ============================================================

const ourID = 0x0A

func jandyFrame(dest, cmd byte, payload ...byte) *rsbus.Frame {
	raw := []byte{rsbus.DLE, rsbus.STX, dest, cmd}
	raw = append(raw, payload...)
	raw = append(raw, 0x00, rsbus.DLE, rsbus.ETX)
	raw[len(raw)-3] = rsbus.JandyChecksum(raw)
	return rsbus.NewFrame(rsbus.ProtocolJandy, raw)
}

func status(leds ...byte) *rsbus.Frame {
	return jandyFrame(ourID, rsbus.CmdStatus, leds...)
}

func message(text string) *rsbus.Frame {
	return jandyFrame(ourID, rsbus.CmdMsg, append([]byte{0x00}, text...)...)
}

type read struct {
	frame *rsbus.Frame
	err   error
}

// fakeBus serves scripted reads. With idle set it then offers a status
// frame every couple of milliseconds until ctx is done, otherwise it
// returns io.EOF.
type fakeBus struct {
	reads []read
	idle  bool

	mu   sync.Mutex
	acks []byte
}

func (b *fakeBus) ReadFrame(ctx context.Context) (*rsbus.Frame, error) {
	b.mu.Lock()
	if len(b.reads) > 0 {
		r := b.reads[0]
		b.reads = b.reads[1:]
		b.mu.Unlock()
		return r.frame, r.err
	}
	b.mu.Unlock()

	if !b.idle {
		return nil, io.EOF
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(2 * time.Millisecond):
		return status(), nil
	}
}

func (b *fakeBus) SendAck(ctx context.Context, ackType, command byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acks = append(b.acks, command)
	return nil
}

func (b *fakeBus) sent() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.acks)
}

// waitForKey polls the acks until k has been sent
func (b *fakeBus) waitForKey(k panel.Key, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if slices.Contains(b.sent(), byte(k)) {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func testOptions() Options {
	return Options{
		DeviceID:  ourID,
		PanelSize: 8,
		Combo:     true,
		Programmer: programmer.Options{
			KeyTimeout:  200 * time.Millisecond,
			LineTimeout: 50 * time.Millisecond,
		},
	}
}

// ============================================================
// Bus Loop Tests
// ============================================================

func TestRun_AcksOwnFrames(t *testing.T) {
	bus := &fakeBus{reads: []read{
		{frame: jandyFrame(ourID, rsbus.CmdProbe)},
		{frame: jandyFrame(0x09, rsbus.CmdProbe)},
		{err: &rsbus.FrameError{Code: rsbus.ErrChecksum}},
		{frame: nil},
		{frame: status(0x00, 0x10, 0x00, 0x00, 0x00)},
	}}
	g := New(bus, testOptions())
	if err := g.SendKey(panel.KeyAux1); err != nil {
		t.Fatalf("SendKey: %v", err)
	}

	if err := g.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Expected io.EOF, got %v", err)
	}

	// probe acked empty, the key goes out with the status frame
	want := []byte{0x00, byte(panel.KeyAux1)}
	if got := bus.sent(); !slices.Equal(got, want) {
		t.Errorf("Expected acks % x, got % x", want, got)
	}
	if _, led, _ := g.State().Button(panel.PumpIndex); led != panel.LEDOn {
		t.Errorf("Expected pump LED on, got %v", led)
	}

	st := g.Statistics()
	if st.TotalFrames != 4 || st.ChecksumErrors != 1 || st.JandyFrames != 3 {
		t.Errorf("Unexpected statistics %+v", st)
	}
}

func TestRun_OnFrame(t *testing.T) {
	bus := &fakeBus{reads: []read{
		{frame: jandyFrame(0x09, rsbus.CmdProbe)},
		{frame: jandyFrame(ourID, rsbus.CmdProbe)},
	}}
	opts := testOptions()
	var seen []byte
	opts.OnFrame = func(f *rsbus.Frame) { seen = append(seen, f.Dest()) }
	g := New(bus, opts)
	_ = g.Run(context.Background())

	if !slices.Equal(seen, []byte{0x09, ourID}) {
		t.Errorf("Expected every frame seen, got % x", seen)
	}
}

func TestRun_PublishesLines(t *testing.T) {
	bus := &fakeBus{reads: []read{
		{frame: message("AIR TEMP 72`F")},
	}}
	g := New(bus, testOptions())
	_ = g.Run(context.Background())

	if got := g.Lines().Current(); got != "AIR TEMP 72`F" {
		t.Errorf("Expected line published, got %q", got)
	}
	if got := g.State().Snapshot().AirTemp; got != 72 {
		t.Errorf("Expected air temp 72, got %d", got)
	}
}

func TestRun_Cancelled(t *testing.T) {
	bus := &fakeBus{idle: true}
	g := New(bus, testOptions())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

// ============================================================
// Startup Tests
// ============================================================

// runUntil runs the gateway on bus until key is acked or d passes
func runUntil(t *testing.T, g *Gateway, bus *fakeBus, key panel.Key, d time.Duration) bool {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()
	found := bus.waitForKey(key, d)
	cancel()
	<-done
	return found
}

func TestFirstRevision_ReadsOnStartup(t *testing.T) {
	bus := &fakeBus{idle: true, reads: []read{
		{frame: message("B0029221 REV T.2")},
	}}
	opts := testOptions()
	opts.ReadOnStartup = true
	g := New(bus, opts)

	if !runUntil(t, g, bus, panel.KeyMenu, 2*time.Second) {
		t.Error("Expected a startup session to press MENU")
	}
	if g.State().Snapshot().Revision != "T.2" {
		t.Errorf("Expected revision T.2, got %q", g.State().Snapshot().Revision)
	}
}

func TestFirstRevision_NothingToRead(t *testing.T) {
	bus := &fakeBus{idle: true, reads: []read{
		{frame: message("B0029221 REV T.2")},
	}}
	g := New(bus, testOptions())

	if runUntil(t, g, bus, panel.KeyMenu, 100*time.Millisecond) {
		t.Error("Expected no session without startup reads")
	}
}

func TestPanelTime_Sync(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"drifted", time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), true},
		{"close enough", time.Date(2025, 1, 1, 9, 45, 30, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &fakeBus{idle: true, reads: []read{
				{frame: message("B0029221 REV T.2")},
				{frame: message("01/01/25 WED")},
				{frame: message("9:45 AM")},
			}}
			opts := testOptions()
			opts.SyncPanelTime = true
			opts.Now = func() time.Time { return tt.now }
			g := New(bus, opts)

			wait := 2 * time.Second
			if !tt.want {
				wait = 100 * time.Millisecond
			}
			if got := runUntil(t, g, bus, panel.KeyMenu, wait); got != tt.want {
				t.Errorf("Expected time sync %v, got %v", tt.want, got)
			}
		})
	}
}

// ============================================================
// Panel Time Tests
// ============================================================

func TestParsePanelTime(t *testing.T) {
	tests := []struct {
		date, tm string
		want     time.Time
		wantErr  bool
	}{
		{"08/29/16 MON", "9:45 AM", time.Date(2016, 8, 29, 9, 45, 0, 0, time.UTC), false},
		{"12/31/24 TUE", "11:59 PM", time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC), false},
		{"01/01/25 WED", "12:05 AM", time.Date(2025, 1, 1, 0, 5, 0, 0, time.UTC), false},
		{"01/01", "9:45 AM", time.Time{}, true},
		{"01/01/25 WED", "NOON", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := ParsePanelTime(tt.date, tt.tm, time.UTC)
		if (err != nil) != tt.wantErr || !got.Equal(tt.want) {
			t.Errorf("ParsePanelTime(%q, %q): expected %v/%v, got %v/%v", tt.date, tt.tm, tt.want, tt.wantErr, got, err)
		}
	}
}
