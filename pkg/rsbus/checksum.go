// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rsbus

// JandyChecksum returns the 8-bit sum of every byte of an unescaped Jandy
// frame that precedes the trailing checksum, DLE, ETX triplet.
func JandyChecksum(frame []byte) byte {
	n := len(frame) - 3
	var sum int
	for i := 0; i < n; i++ {
		sum += int(frame[i])
	}
	return byte(sum & 0xFF)
}

// CheckJandyChecksum validates an unescaped Jandy frame. The second result
// reports that the frame failed the checksum but matched the known panel
// firmware bug on long OneTouch messages, and was accepted anyway.
func CheckJandyChecksum(frame []byte) (ok bool, firmwareBug bool) {
	if len(frame) < 3 {
		return false, false
	}
	if JandyChecksum(frame) == frame[len(frame)-3] {
		return true, false
	}
	// 0x10|0x02|0x43|0x04|0x03|...|0x0a|0x10|0x03
	if len(frame) > JandyData && frame[3] == 0x04 && frame[4] == 0x03 && frame[len(frame)-3] == 0x0a {
		return true, true
	}
	return false, false
}

// pentairEnd returns the index one past the last byte covered by the
// Pentair checksum, as declared by the frame's length byte.
func pentairEnd(frame []byte) int {
	return int(frame[PentairLength]) + PentairData
}

// PentairChecksum returns the 16-bit sum of the frame bytes from the last
// preamble byte through the end of the declared payload.
func PentairChecksum(frame []byte) uint16 {
	if len(frame) <= PentairLength {
		return 0
	}
	n := pentairEnd(frame)
	if n > len(frame) {
		n = len(frame)
	}
	var sum int
	for i := 3; i < n; i++ {
		sum += int(frame[i])
	}
	return uint16(sum)
}

// CheckPentairChecksum validates a Pentair frame. The stored checksum is
// first read from the last two bytes; when that fails it is read from the
// position implied by the declared length. A match on the second reading
// is accepted and reported through lengthMismatch.
func CheckPentairChecksum(frame []byte) (ok bool, lengthMismatch bool) {
	if len(frame) < PentairData+2 {
		return false, false
	}
	sum := PentairChecksum(frame)
	if sum == uint16(frame[len(frame)-2])<<8|uint16(frame[len(frame)-1]) {
		return true, false
	}
	n := pentairEnd(frame)
	if n+1 < len(frame) && sum == uint16(frame[n])<<8|uint16(frame[n+1]) {
		return true, true
	}
	return false, false
}

// putPentairChecksum stores the checksum high byte then low byte directly
// after the declared payload.
func putPentairChecksum(frame []byte) {
	sum := PentairChecksum(frame)
	n := pentairEnd(frame)
	frame[n] = byte(sum >> 8)
	frame[n+1] = byte(sum & 0xFF)
}
