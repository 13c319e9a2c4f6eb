// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rsbus

import (
	"bytes"
	"testing"
)

// ============================================================
// Jandy Encoder Tests
// ============================================================

func TestEncodeJandy_Probe(t *testing.T) {
	wire, err := EncodeJandy([]byte{0x08, CmdProbe}, NulLeading)
	if err != nil {
		t.Fatalf("EncodeJandy failed: %v", err)
	}
	want := append([]byte{0x00}, probeFrame...)
	if !bytes.Equal(wire, want) {
		t.Errorf("Expected %x, got %x", want, wire)
	}
}

func TestEncodeJandy_TrailingNul(t *testing.T) {
	wire, err := EncodeJandy([]byte{0x08, CmdProbe}, NulTrailing)
	if err != nil {
		t.Fatalf("EncodeJandy failed: %v", err)
	}
	want := append(append([]byte{}, probeFrame...), 0x00)
	if !bytes.Equal(wire, want) {
		t.Errorf("Expected %x, got %x", want, wire)
	}
}

func TestEncodeJandy_EscapesDLE(t *testing.T) {
	wire, err := EncodeJandy([]byte{0x08, CmdMsg, 0x10, 0x41}, NulLeading)
	if err != nil {
		t.Fatalf("EncodeJandy failed: %v", err)
	}
	want := []byte{0x00, 0x10, 0x02, 0x08, 0x03, 0x10, 0x00, 0x41, 0x6E, 0x10, 0x03}
	if !bytes.Equal(wire, want) {
		t.Errorf("Expected %x, got %x", want, wire)
	}
}

func TestEncodeJandy_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"probe", []byte{0x08, CmdProbe}},
		{"status", []byte{0x08, CmdStatus, 0x00, 0x41, 0x10, 0x00, 0x04}},
		{"message with DLE", []byte{0x0A, CmdMsg, 0x00, 0x10, 0x10, 0x20}},
		{"checksum is DLE", []byte{0x00, 0x00, 0xFE}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, err := EncodeJandy(tt.body, NulLeading)
			if err != nil {
				t.Fatalf("EncodeJandy failed: %v", err)
			}
			frames, errs := decodeAll(wire)
			if len(errs) != 0 || len(frames) != 1 {
				t.Fatalf("Expected 1 frame, got %d frames %v", len(frames), errs)
			}
			f := frames[0]
			if f.Dest() != tt.body[0] || f.Command() != tt.body[1] {
				t.Errorf("Header mismatch: %x", f.Raw())
			}
			if !bytes.Equal(f.Payload(), tt.body[2:]) && !(len(f.Payload()) == 0 && len(tt.body) == 2) {
				t.Errorf("Payload mismatch: expected %x, got %x", tt.body[2:], f.Payload())
			}
		})
	}
}

func TestEncodeJandy_Limits(t *testing.T) {
	if _, err := EncodeJandy([]byte{0x08}, NulLeading); err == nil {
		t.Error("Expected error for body without command")
	}
	if _, err := EncodeJandy(make([]byte, MaxFrameSize), NulLeading); err == nil {
		t.Error("Expected error for oversize body")
	}
}

// ============================================================
// Ack Encoder Tests
// ============================================================

func TestEncodeAck(t *testing.T) {
	tests := []struct {
		name    string
		ackType byte
		command byte
		mode    NulMode
		want    []byte
	}{
		{
			name:    "plain ack leading nul",
			ackType: AckNormal,
			command: 0x00,
			mode:    NulLeading,
			want:    []byte{0x00, 0x10, 0x02, 0x00, 0x01, 0x80, 0x00, 0x93, 0x10, 0x03},
		},
		{
			name:    "plain ack trailing mode",
			ackType: AckNormal,
			command: 0x00,
			mode:    NulTrailing,
			want:    []byte{0x10, 0x02, 0x00, 0x01, 0x80, 0x00, 0x93, 0x10, 0x03},
		},
		{
			name:    "zero template",
			ackType: 0x00,
			command: 0x00,
			mode:    NulTrailing,
			want:    []byte{0x10, 0x02, 0x00, 0x01, 0x00, 0x00, 0x13, 0x10, 0x03},
		},
		{
			name:    "key press",
			ackType: AckNormal,
			command: 0x09,
			mode:    NulLeading,
			want:    []byte{0x00, 0x10, 0x02, 0x00, 0x01, 0x80, 0x09, 0x9C, 0x10, 0x03},
		},
		{
			name:    "command equal to DLE is escaped",
			ackType: AckNormal,
			command: 0x10,
			mode:    NulLeading,
			want:    []byte{0x00, 0x10, 0x02, 0x00, 0x01, 0x80, 0x10, 0x00, 0xA3, 0x10, 0x03},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeAck(tt.ackType, tt.command, tt.mode)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Expected %x, got %x", tt.want, got)
			}
		})
	}
}

func TestEncodeAck_DecodesAsAck(t *testing.T) {
	frames, errs := decodeAll(EncodeAck(AckNormal, 0x10, NulLeading))
	if len(errs) != 0 || len(frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d frames %v", len(frames), errs)
	}
	f := frames[0]
	if f.Dest() != DevMaster || f.Command() != CmdAck {
		t.Errorf("Expected ack to master, got %x", f.Raw())
	}
	if !bytes.Equal(f.Payload(), []byte{AckNormal, 0x10}) {
		t.Errorf("Expected payload 80 10, got %x", f.Payload())
	}
}

// ============================================================
// Pentair Encoder Tests
// ============================================================

func TestEncodePentair(t *testing.T) {
	wire, err := EncodePentair([]byte{0x00, 0x60, 0x10, PenCmdStatus, 0x00})
	if err != nil {
		t.Fatalf("EncodePentair failed: %v", err)
	}
	if !bytes.Equal(wire, pumpStatusWire) {
		t.Errorf("Expected %x, got %x", pumpStatusWire, wire)
	}
}

func TestEncodePentair_FixesLength(t *testing.T) {
	// declared length is wrong on purpose
	wire, err := EncodePentair([]byte{0x00, 0x60, 0x10, PenCmdPower, 0x09, 0xFF})
	if err != nil {
		t.Fatalf("EncodePentair failed: %v", err)
	}
	frames, errs := decodeAll(wire)
	if len(errs) != 0 || len(frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d frames %v", len(frames), errs)
	}
	if frames[0].Raw()[PentairLength] != 1 {
		t.Errorf("Expected length 1, got %d", frames[0].Raw()[PentairLength])
	}
	if !bytes.Equal(frames[0].Payload(), []byte{0xFF}) {
		t.Errorf("Expected payload ff, got %x", frames[0].Payload())
	}
}

// ============================================================
// Byte Stuffing Tests
// ============================================================

func TestUnstuffBytes(t *testing.T) {
	data := []byte{0x01, 0x10, 0x10, 0x02}
	stuffed := stuffBytes(data)
	if !bytes.Equal(stuffed, []byte{0x01, 0x10, 0x00, 0x10, 0x00, 0x02}) {
		t.Errorf("Unexpected stuffing: %x", stuffed)
	}
	if !bytes.Equal(UnstuffBytes(stuffed), data) {
		t.Errorf("Unstuff did not invert stuff: %x", UnstuffBytes(stuffed))
	}
}

// ============================================================
// NUL Mode Tests
// ============================================================

func TestParseNulMode(t *testing.T) {
	tests := []struct {
		in   string
		want NulMode
		ok   bool
	}{
		{"", NulLeading, true},
		{"leading", NulLeading, true},
		{"trailing", NulTrailing, true},
		{"both", NulLeading, false},
	}
	for _, tt := range tests {
		got, ok := ParseNulMode(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ParseNulMode(%q) = (%v, %v), expected (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
