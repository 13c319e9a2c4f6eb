// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rsbus

import "time"

// Frame is one validated unit of bus traffic. The raw bytes are unescaped
// and start at the leading DLE (Jandy) or the first preamble byte
// (Pentair).
type Frame struct {
	protocol       Protocol
	raw            []byte
	timestamp      time.Time
	firmwareBug    bool
	lengthMismatch bool
}

// NewFrame wraps already validated frame bytes. The slice is copied.
func NewFrame(protocol Protocol, raw []byte) *Frame {
	b := make([]byte, len(raw))
	copy(b, raw)
	return &Frame{
		protocol:  protocol,
		raw:       b,
		timestamp: time.Now(),
	}
}

// Protocol returns the wire framing the frame arrived in
func (f *Frame) Protocol() Protocol {
	return f.protocol
}

// IsJandy returns true for DLE/STX framed traffic
func (f *Frame) IsJandy() bool {
	return f.protocol == ProtocolJandy
}

// IsPentair returns true for preamble framed traffic
func (f *Frame) IsPentair() bool {
	return f.protocol == ProtocolPentair
}

// Raw returns the unescaped frame bytes
func (f *Frame) Raw() []byte {
	return f.raw
}

// Len returns the unescaped frame length
func (f *Frame) Len() int {
	return len(f.raw)
}

// Dest returns the destination address
func (f *Frame) Dest() byte {
	if f.protocol == ProtocolPentair {
		return f.raw[PentairDest]
	}
	return f.raw[JandyDest]
}

// Source returns the source address. Jandy frames carry no source and
// report 0.
func (f *Frame) Source() byte {
	if f.protocol == ProtocolPentair {
		return f.raw[PentairSource]
	}
	return 0
}

// Command returns the command byte
func (f *Frame) Command() byte {
	if f.protocol == ProtocolPentair {
		return f.raw[PentairCmd]
	}
	return f.raw[JandyCmd]
}

// Payload returns the bytes between the command and the checksum
func (f *Frame) Payload() []byte {
	if f.protocol == ProtocolPentair {
		end := pentairEnd(f.raw)
		if end > len(f.raw)-2 {
			end = len(f.raw) - 2
		}
		return f.raw[PentairData:end]
	}
	if len(f.raw) < JandyData+3 {
		return nil
	}
	return f.raw[JandyData : len(f.raw)-3]
}

// Checksum returns the stored checksum
func (f *Frame) Checksum() uint16 {
	if f.protocol == ProtocolPentair {
		return uint16(f.raw[len(f.raw)-2])<<8 | uint16(f.raw[len(f.raw)-1])
	}
	return uint16(f.raw[len(f.raw)-3])
}

// Timestamp returns the time the frame finished decoding
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// FirmwareBug reports a Jandy frame accepted despite a bad checksum
func (f *Frame) FirmwareBug() bool {
	return f.firmwareBug
}

// LengthMismatch reports a Pentair frame whose checksum only matched at the
// declared-length position
func (f *Frame) LengthMismatch() bool {
	return f.lengthMismatch
}
