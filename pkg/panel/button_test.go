// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panel

import "testing"

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{"MENU", KeyMenu, false},
		{"enter", KeyEnter, false},
		{"Filter_Pump", KeyPump, false},
		{"Aux 3", KeyAux3, false},
		{"aux_b2", KeyAuxB2, false},
		{"0x1d", KeyEnter, false},
		{"0x00", KeyNone, true},
		{"nonsense", KeyNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKey(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestKey_IsNavigation(t *testing.T) {
	for _, k := range []Key{KeyEnter, KeyRight, KeyLeft, KeyMenu} {
		if !k.IsNavigation() {
			t.Errorf("Expected %s to be a navigation key", k)
		}
	}
	for _, k := range []Key{KeyCancel, KeyPump, KeyAux1} {
		if k.IsNavigation() {
			t.Errorf("Expected %s not to be a navigation key", k)
		}
	}
}

func TestPanelButtons(t *testing.T) {
	tests := []struct {
		size  int
		combo bool
		want  int
	}{
		// pump, spa, aux keys, three heaters
		{4, true, 1 + 1 + 3 + 3},
		{8, true, 1 + 1 + 7 + 3},
		{8, false, 1 + 7 + 3},
		{12, true, 1 + 1 + 11 + 3},
		{16, true, 1 + 1 + 15 + 3},
	}
	for _, tt := range tests {
		got := PanelButtons(DefaultButtons(), tt.size, tt.combo)
		if len(got) != tt.want {
			t.Errorf("RS-%d combo=%v: expected %d keys, got %d", tt.size, tt.combo, tt.want, len(got))
		}
	}
}

func TestDecodeLEDs_HeaterFixup(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		led  int
		want LEDState
	}{
		{"pool heater enabled", []byte{0, 0, 0, 0x40, 0}, PoolHeaterLED, LEDEnable},
		{"pool heater on", []byte{0, 0, 0, 0x10, 0}, PoolHeaterLED, LEDOn},
		{"spa heater enabled", []byte{0, 0, 0, 0, 0x04}, SpaHeaterLED, LEDEnable},
		{"solar heater enabled", []byte{0, 0, 0, 0, 0x40}, SolarHeaterLED, LEDEnable},
		{"solar heater flashing", []byte{0, 0, 0, 0, 0x20 | 0x40}, SolarHeaterLED, LEDFlash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bank := DecodeLEDs(tt.raw)
			if bank[tt.led] != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, bank[tt.led])
			}
		})
	}
}
