// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rsbus

import "fmt"

// EncodeJandy creates a complete wire-formatted Jandy frame from a command
// buffer of destination, command and data bytes. The checksum is computed
// over the unescaped frame, then every DLE between STX and the closing DLE
// is escaped with a following NUL.
func EncodeJandy(body []byte, mode NulMode) ([]byte, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("jandy command too short: %d bytes (need destination and command)", len(body))
	}
	if len(body)+5 > MaxFrameSize {
		return nil, fmt.Errorf("jandy command too large: %d bytes (max %d)", len(body), MaxFrameSize-5)
	}

	// Unescaped frame: DLE STX body chk DLE ETX
	frame := make([]byte, 0, len(body)+5)
	frame = append(frame, DLE, STX)
	frame = append(frame, body...)
	frame = append(frame, 0, DLE, ETX)
	frame[len(frame)-3] = JandyChecksum(frame)

	wire := make([]byte, 0, len(frame)*2+1)
	if mode == NulLeading {
		wire = append(wire, NUL)
	}
	wire = append(wire, DLE, STX)
	wire = append(wire, stuffBytes(frame[2:len(frame)-2])...)
	wire = append(wire, DLE, ETX)
	if mode == NulTrailing {
		wire = append(wire, NUL)
	}
	return wire, nil
}

// EncodePentair creates a complete wire-formatted Pentair frame from a
// command buffer of version, destination, source, command, length and data
// bytes. The length byte is overwritten with the actual data length.
func EncodePentair(body []byte) ([]byte, error) {
	if len(body) < 5 {
		return nil, fmt.Errorf("pentair command too short: %d bytes (need header)", len(body))
	}
	if len(body)+6 > MaxFrameSize {
		return nil, fmt.Errorf("pentair command too large: %d bytes (max %d)", len(body), MaxFrameSize-6)
	}

	frame := make([]byte, 0, len(body)+6)
	frame = append(frame, PP1, PP2, PP3, PP4)
	frame = append(frame, body...)
	frame[PentairLength] = byte(len(body) - 5)
	frame = append(frame, 0, 0)
	putPentairChecksum(frame)

	wire := make([]byte, 0, len(frame)+1)
	wire = append(wire, NUL)
	wire = append(wire, frame...)
	return wire, nil
}

// EncodeAck creates an acknowledgement frame for the master. The template
// DLE STX 0x00 CMD_ACK <ackType> <command> <chk> DLE ETX is always rebuilt
// with a fresh checksum. A command equal to DLE is escaped with a NUL
// placed before the checksum, making the frame one byte longer.
func EncodeAck(ackType, command byte, mode NulMode) []byte {
	ack := []byte{DLE, STX, DevMaster, CmdAck, ackType, command, 0, DLE, ETX}
	ack[6] = JandyChecksum(ack)

	if command == DLE {
		ack = []byte{DLE, STX, DevMaster, CmdAck, ackType, DLE, NUL, ack[6], DLE, ETX}
	}

	if mode == NulLeading {
		return append([]byte{NUL}, ack...)
	}
	return ack
}

// stuffBytes escapes every DLE with a following NUL
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)
	for _, b := range data {
		result = append(result, b)
		if b == DLE {
			result = append(result, NUL)
		}
	}
	return result
}

// UnstuffBytes removes DLE NUL escapes. This is the inverse of the body
// escaping applied by EncodeJandy.
func UnstuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		result = append(result, data[i])
		if data[i] == DLE && i+1 < len(data) && data[i+1] == NUL {
			i++
		}
	}
	return result
}
