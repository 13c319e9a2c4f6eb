// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package panel turns AllButton keypad traffic into panel state: the LED
// bank carried by status frames and the text line carried by message
// frames.
package panel

// LEDState is the decoded state of one keypad LED
type LEDState int

const (
	LEDOn LEDState = iota
	LEDOff
	LEDFlash
	LEDEnable
	LEDUnknown
)

func (s LEDState) String() string {
	switch s {
	case LEDOn:
		return "on"
	case LEDOff:
		return "off"
	case LEDFlash:
		return "flash"
	case LEDEnable:
		return "enabled"
	default:
		return "unknown"
	}
}

const (
	// StatusLen is the size of the LED bitmap in a status frame
	StatusLen = 5
	// NumLEDs is the number of LEDs encoded in the bitmap
	NumLEDs = StatusLen * 4
	// NumVirtualLEDs are the RS-16 keys that have no LED on the panel and
	// are tracked from text lines instead
	NumVirtualLEDs = 4
)

// Heater LEDs use two positions: the heater's own LED and the one after it.
// OFF followed by ON means the heater is enabled but not heating.
const (
	PoolHeaterLED  = 14
	SpaHeaterLED   = 16
	SolarHeaterLED = 18
)

var heaterLEDs = []int{PoolHeaterLED, SpaHeaterLED, SolarHeaterLED}

// LEDBank is the ordered set of keypad LEDs followed by the virtual LEDs
type LEDBank [NumLEDs + NumVirtualLEDs]LEDState

// DecodeLEDs decodes a status bitmap. Each byte carries four LEDs in bit
// pairs from the low end; the high bit of a pair means flashing, the low
// bit means on. Virtual LEDs are left unknown.
func DecodeLEDs(raw []byte) LEDBank {
	var bank LEDBank
	for i := range bank {
		bank[i] = LEDUnknown
	}

	i := 0
	for n := 0; n < StatusLen && n < len(raw); n++ {
		for bit := 0; bit < 8; bit += 2 {
			switch {
			case (raw[n]>>(bit+1))&1 == 1:
				bank[i] = LEDFlash
			case (raw[n]>>bit)&1 == 1:
				bank[i] = LEDOn
			default:
				bank[i] = LEDOff
			}
			i++
		}
	}

	for _, h := range heaterLEDs {
		if bank[h] == LEDOff && bank[h+1] == LEDOn {
			bank[h] = LEDEnable
		}
	}
	return bank
}
