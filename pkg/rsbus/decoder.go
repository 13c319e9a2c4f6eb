// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rsbus

// Decoder states
const (
	stateScanning = iota
	stateJandyBody
	statePentairPreamble
	statePentairBody
)

// Decoder implements the receive state machine for both bus framings
type Decoder struct {
	state     int
	buffer    []byte
	index     int
	lastDLE   bool
	preCount  int // matched Pentair preamble bytes, -1 right after a DLE
	dataCount int // Pentair declared length, -1 until read
	rawBuffer []byte
}

// NewDecoder creates a new bus decoder
func NewDecoder() *Decoder {
	d := &Decoder{
		buffer:    make([]byte, MaxFrameSize),
		rawBuffer: make([]byte, 0, MaxFrameSize*2),
	}
	d.Reset()
	return d
}

// Reset drops any partial frame and returns to scanning
func (d *Decoder) Reset() {
	d.state = stateScanning
	d.index = 0
	d.lastDLE = false
	d.preCount = 0
	d.dataCount = -1
	d.rawBuffer = d.rawBuffer[:0]
	clear(d.buffer)
}

// GetRawBytes returns the wire bytes seen since the last frame, including
// escapes and padding
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// InFrame reports whether a frame has been opened, or a DLE is pending that
// may open one
func (d *Decoder) InFrame() bool {
	return d.state == stateJandyBody || d.state == statePentairBody || d.lastDLE
}

// State returns the current receive state name, for diagnostics
func (d *Decoder) State() string {
	switch d.state {
	case stateJandyBody:
		return "PROTO_A_BODY"
	case statePentairPreamble:
		return "PROTO_B_PREAMBLE"
	case statePentairBody:
		return "PROTO_B_BODY"
	default:
		return "SCANNING"
	}
}

func (d *Decoder) protocol() Protocol {
	switch d.state {
	case stateJandyBody:
		return ProtocolJandy
	case statePentairBody:
		return ProtocolPentair
	}
	return ProtocolUnknown
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed frame, or nil if the frame is incomplete.
// Returns a *FrameError if the frame in progress was rejected.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	if len(d.rawBuffer) >= MaxFrameSize*4 {
		d.rawBuffer = append(d.rawBuffer[:0], d.rawBuffer[MaxFrameSize*2:]...)
	}
	d.rawBuffer = append(d.rawBuffer, b)

	started := d.state == stateJandyBody || d.state == statePentairBody
	end := false

	switch {
	case d.lastDLE && b == NUL:
		// DLE NUL is an escaped DLE, the NUL is dropped
		d.lastDLE = false

	case d.lastDLE:
		if d.index == 0 {
			d.index++
		}
		d.buffer[d.index] = b
		d.index++
		if b == STX && d.state != stateJandyBody {
			d.state = stateJandyBody
		} else if b == ETX && d.state == stateJandyBody {
			end = true
		}

	case started:
		d.buffer[d.index] = b
		d.index++
		if d.state == statePentairBody {
			if d.index == PentairData {
				d.dataCount = int(b)
			}
			if d.dataCount >= 0 && d.index-11 >= d.dataCount {
				end = true
			}
		}

	case b == DLE:
		d.buffer[d.index] = b
	}

	if d.state != stateJandyBody && d.state != statePentairBody {
		d.index = 0
	}

	if b == DLE && d.state != statePentairBody {
		d.lastDLE = true
		d.preCount = -1
	} else {
		d.lastDLE = false
		switch {
		case b == PP1 && d.preCount == 0:
			d.preCount = 1
		case b == PP2 && d.preCount == 1:
			d.preCount = 2
		case b == PP3 && d.preCount == 2:
			d.preCount = 3
		case b == PP4 && d.preCount == 3:
			d.state = statePentairBody
			d.dataCount = -1
			d.buffer[0] = PP1
			d.buffer[1] = PP2
			d.buffer[2] = PP3
			d.buffer[3] = PP4
			d.index = 4
		case b != PP1:
			// repeated PP1 bytes keep the count
			d.preCount = 0
		}
	}

	if d.state == stateScanning || d.state == statePentairPreamble {
		if d.preCount > 0 {
			d.state = statePentairPreamble
		} else {
			d.state = stateScanning
		}
	}

	if d.index >= MaxFrameSize {
		err := newFrameError(ErrTooLarge, d.protocol(), d.buffer[:d.index])
		d.Reset()
		return nil, err
	}

	if end {
		return d.finish()
	}
	return nil, nil
}

// finish validates the completed frame and resets for the next one
func (d *Decoder) finish() (*Frame, error) {
	protocol := d.protocol()
	raw := d.buffer[:d.index]

	if d.index < MinFrameSize {
		err := newFrameError(ErrTooSmall, protocol, raw)
		d.Reset()
		return nil, err
	}

	var firmwareBug, lengthMismatch, ok bool
	if protocol == ProtocolJandy {
		ok, firmwareBug = CheckJandyChecksum(raw)
	} else {
		ok, lengthMismatch = CheckPentairChecksum(raw)
	}
	if !ok {
		err := newFrameError(ErrChecksum, protocol, raw)
		d.Reset()
		return nil, err
	}

	frame := NewFrame(protocol, raw)
	frame.firmwareBug = firmwareBug
	frame.lengthMismatch = lengthMismatch

	d.Reset()
	return frame, nil
}
