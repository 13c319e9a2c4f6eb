// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panel

import (
	"fmt"
	"strings"
)

// Key is a keypad key code sent to the master inside an ack
type Key byte

// KeyNone means no key is pending
const KeyNone Key = 0x00

const (
	KeySpa        Key = 0x01
	KeyPump       Key = 0x02
	KeyAux1       Key = 0x05
	KeyAux2       Key = 0x0a
	KeyAux3       Key = 0x0f
	KeyAux4       Key = 0x06
	KeyAux5       Key = 0x0b
	KeyAux6       Key = 0x10
	KeyAux7       Key = 0x15
	KeyPoolHeater Key = 0x12
	KeySpaHeater  Key = 0x17
	KeySolarHeat  Key = 0x1c
	KeyMenu       Key = 0x09
	KeyCancel     Key = 0x0e
	KeyLeft       Key = 0x13
	KeyRight      Key = 0x18
	KeyHold       Key = 0x19
	KeyOverride   Key = 0x1e
	KeyEnter      Key = 0x1d

	// RS-12 and RS-16 second bank
	KeyAuxB1 Key = 0x04
	KeyAuxB2 Key = 0x0c
	KeyAuxB3 Key = 0x11
	KeyAuxB4 Key = 0x16
	KeyAuxB5 Key = 0x1b
	KeyAuxB6 Key = 0x20
	KeyAuxB7 Key = 0x21
	KeyAuxB8 Key = 0x22
)

var keyNames = map[Key]string{
	KeyMenu:     "MENU",
	KeyCancel:   "CANCEL",
	KeyLeft:     "LEFT",
	KeyRight:    "RIGHT",
	KeyHold:     "HOLD",
	KeyOverride: "OVERRIDE",
	KeyEnter:    "ENTER",
}

func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	for _, b := range defaultButtons {
		if b.Code == k {
			return b.Name
		}
	}
	if k == KeyNone {
		return "NONE"
	}
	return fmt.Sprintf("0x%02x", byte(k))
}

// IsNavigation reports keys the panel answers with a new text line
func (k Key) IsNavigation() bool {
	return k == KeyEnter || k == KeyRight || k == KeyLeft || k == KeyMenu
}

// ParseKey resolves a key by name ("MENU", "Aux3", "Filter_Pump") or by
// hex code ("0x09")
func ParseKey(s string) (Key, error) {
	for k, name := range keyNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	for _, b := range defaultButtons {
		if strings.EqualFold(b.Name, s) || strings.EqualFold(b.Label, s) {
			return b.Code, nil
		}
	}
	var code byte
	if _, err := fmt.Sscanf(s, "0x%x", &code); err == nil && code != 0 {
		return Key(code), nil
	}
	return KeyNone, fmt.Errorf("unknown key %q", s)
}

// Button is one logical keypad key
type Button struct {
	Name  string
	Label string
	Code  Key
	// LED indexes the LED bank. Virtual keys index past NumLEDs.
	LED int
}

// Virtual RS-16 keys that report state through text lines only
const (
	VirtualButtonStart = 13
	VirtualButtonEnd   = 16
)

// Button indexes used by the decoder
const (
	PumpIndex = 0
	SpaIndex  = 1
)

var defaultButtons = []Button{
	{Name: "Filter_Pump", Label: "Filter Pump", Code: KeyPump, LED: 6},
	{Name: "Spa", Label: "Spa", Code: KeySpa, LED: 5},
	{Name: "Aux_1", Label: "Aux 1", Code: KeyAux1, LED: 4},
	{Name: "Aux_2", Label: "Aux 2", Code: KeyAux2, LED: 3},
	{Name: "Aux_3", Label: "Aux 3", Code: KeyAux3, LED: 2},
	{Name: "Aux_4", Label: "Aux 4", Code: KeyAux4, LED: 8},
	{Name: "Aux_5", Label: "Aux 5", Code: KeyAux5, LED: 7},
	{Name: "Aux_6", Label: "Aux 6", Code: KeyAux6, LED: 11},
	{Name: "Aux_7", Label: "Aux 7", Code: KeyAux7, LED: 0},
	{Name: "Aux_B1", Label: "Aux B1", Code: KeyAuxB1, LED: 1},
	{Name: "Aux_B2", Label: "Aux B2", Code: KeyAuxB2, LED: 10},
	{Name: "Aux_B3", Label: "Aux B3", Code: KeyAuxB3, LED: 9},
	{Name: "Aux_B4", Label: "Aux B4", Code: KeyAuxB4, LED: 13},
	{Name: "Aux_B5", Label: "Aux B5", Code: KeyAuxB5, LED: NumLEDs},
	{Name: "Aux_B6", Label: "Aux B6", Code: KeyAuxB6, LED: NumLEDs + 1},
	{Name: "Aux_B7", Label: "Aux B7", Code: KeyAuxB7, LED: NumLEDs + 2},
	{Name: "Aux_B8", Label: "Aux B8", Code: KeyAuxB8, LED: NumLEDs + 3},
	{Name: "Pool_Heater", Label: "Heater", Code: KeyPoolHeater, LED: PoolHeaterLED},
	{Name: "Spa_Heater", Label: "Heater", Code: KeySpaHeater, LED: SpaHeaterLED},
	{Name: "Solar_Heater", Label: "Solar Heater", Code: KeySolarHeat, LED: SolarHeaterLED},
}

// DefaultButtons returns a fresh copy of the full RS-16 key layout
func DefaultButtons() []Button {
	b := make([]Button, len(defaultButtons))
	copy(b, defaultButtons)
	return b
}

// auxCount is the number of aux keys each panel size exposes
func auxCount(panelSize int) int {
	switch {
	case panelSize <= 4:
		return 3
	case panelSize <= 6:
		return 5
	case panelSize <= 8:
		return 7
	case panelSize <= 12:
		return 11
	default:
		return 15
	}
}

// PanelButtons returns the keys present on a panel of the given size
// (4, 6, 8, 12 or 16). Single device panels have no spa key.
func PanelButtons(all []Button, panelSize int, combo bool) []Button {
	var out []Button
	aux := auxCount(panelSize)
	for i, b := range all {
		switch {
		case i == SpaIndex && !combo:
			continue
		case i >= 2 && i < 2+15 && i-2 >= aux:
			continue
		}
		out = append(out, b)
	}
	return out
}
