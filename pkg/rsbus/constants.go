// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package rsbus implements the byte-stream transport for the pool panel
// RS-485 bus.
//
// Two incompatible framings share the bus. Jandy frames are DLE/STX
// delimited with an 8-bit additive checksum and DLE escaping. Pentair frames
// start with a fixed four byte preamble, carry an explicit length byte and
// end with a 16-bit big endian additive checksum. This package decodes both
// from a raw byte stream, encodes outgoing frames and acknowledgements, and
// paces transmissions on the half-duplex bus.
package rsbus

import "time"

// Jandy framing bytes
const (
	NUL = 0x00
	DLE = 0x10
	STX = 0x02
	ETX = 0x03
)

// Pentair preamble bytes
const (
	PP1 = 0xFF
	PP2 = 0x00
	PP3 = 0xFF
	PP4 = 0xA5
)

// Frame size limits
const (
	MaxFrameSize        = 128
	MinFrameSize        = 5
	LargeFrameThreshold = 64
)

// Jandy frame offsets (unescaped, starting at the leading DLE)
const (
	JandyDest = 2
	JandyCmd  = 3
	JandyData = 4
)

// Pentair frame offsets (starting at the first preamble byte)
const (
	PentairVersion = 4
	PentairDest    = 5
	PentairSource  = 6
	PentairCmd     = 7
	PentairLength  = 8
	PentairData    = 9
)

// Jandy command bytes
const (
	CmdProbe        = 0x00
	CmdAck          = 0x01
	CmdStatus       = 0x02
	CmdMsg          = 0x03
	CmdMsgLong      = 0x04
	CmdMsgLoopStart = 0x08
	CmdPercent      = 0x11
	CmdGetID        = 0x14
	CmdPPM          = 0x16
	CmdEPumpStatus  = 0x1F
	CmdIAQPageBtn   = 0x24
	CmdIAQPoll      = 0x30
	CmdEPumpRPM     = 0x44
	CmdEPumpWatts   = 0x45
	CmdIAQMain      = 0x70
	CmdIAQOneTouch  = 0x71
	CmdIAQAux       = 0x72
)

// Pentair command bytes
const (
	PenCmdSpeed     = 0x01
	PenCmdRemoteCtl = 0x04
	PenCmdPower     = 0x06
	PenCmdStatus    = 0x07
	PenDevMaster    = 0x10
)

// Acknowledgement types
const (
	AckNormal           = 0x80
	AckScreenBusyScroll = 0x81
	AckScreenBusyBlock  = 0x83
	AckPDA              = 0x40
)

// DevMaster is the bus address of the control panel.
const DevMaster = 0x00

// Default transport timing
const (
	DefaultReadTimeout = time.Second
	DefaultReadRetries = 10
	DefaultFrameDelay  = 10 * time.Millisecond
)

// Protocol identifies the wire framing of a frame.
type Protocol uint8

const (
	ProtocolUnknown Protocol = iota
	ProtocolJandy
	ProtocolPentair
)

func (p Protocol) String() string {
	switch p {
	case ProtocolJandy:
		return "Jandy"
	case ProtocolPentair:
		return "Pentair"
	default:
		return "Unknown"
	}
}

// NulMode selects where the padding NUL goes on transmitted Jandy frames.
type NulMode uint8

const (
	// NulLeading sends a NUL before DLE STX and nothing after DLE ETX.
	NulLeading NulMode = iota
	// NulTrailing sends no leading NUL and a NUL after DLE ETX.
	NulTrailing
)

// ParseNulMode converts a configuration string into a NulMode.
func ParseNulMode(s string) (NulMode, bool) {
	switch s {
	case "", "leading":
		return NulLeading, true
	case "trailing":
		return NulTrailing, true
	}
	return NulLeading, false
}

func (m NulMode) String() string {
	if m == NulTrailing {
		return "trailing"
	}
	return "leading"
}
