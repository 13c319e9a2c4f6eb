// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package programmer

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/poolbus/pkg/panel"
)

// Kind selects a programming session
type Kind int

const (
	KindPoolHeater Kind = iota
	KindSpaHeater
	KindFreezeProtect
	KindSWGPercent
	KindSetTime
	KindBoost
	KindAuxLabels
	KindDiagnostics
	KindReadHeaterSetPoints
	KindReadFreezeProtect
	KindReadPrograms
	KindColorLight
	KindDimmer
	KindLightProgram
)

var kindNames = map[Kind]string{
	KindPoolHeater:          "pool_heater",
	KindSpaHeater:           "spa_heater",
	KindFreezeProtect:       "freeze_protect",
	KindSWGPercent:          "swg_percent",
	KindSetTime:             "time",
	KindBoost:               "boost",
	KindAuxLabels:           "aux_labels",
	KindDiagnostics:         "diagnostics",
	KindReadHeaterSetPoints: "read_heater",
	KindReadFreezeProtect:   "read_freeze",
	KindReadPrograms:        "read_programs",
	KindColorLight:          "color_light",
	KindDimmer:              "dimmer",
	KindLightProgram:        "light_program",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind resolves a session name as printed by Kind.String
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown session %q", ErrInvalidRequest, s)
}

// light reports sessions that watch key LEDs and wake on status frames
func (k Kind) light() bool {
	return k == KindColorLight || k == KindDimmer || k == KindLightProgram
}

// Request describes one programming session
type Request struct {
	Kind Kind
	// Value is the set point, percent, boost on (1) / off (0), dimmer
	// step (1-4) or number of power pulses
	Value int
	// Button is the key index of the light for light sessions
	Button int
	// Mode is the color mode name shown by the panel. Empty keeps the
	// mode the light comes up in.
	Mode string
	// Time is the clock to program, zero means now
	Time time.Time
}

// DimmerLevels are the dimmer steps in panel order
var DimmerLevels = []string{"25%", "50%", "75%", "100%"}

// Set point limits by unit
type limits struct{ min, max int }

var (
	heaterF = limits{36, 104}
	heaterC = limits{2, 40}
	freezeF = limits{34, 42}
	freezeC = limits{1, 5}
	swg     = limits{0, 100}
)

func (l limits) clamp(v int) int {
	return min(max(v, l.min), l.max)
}

// validate checks a request against the panel and clamps set points to
// what the panel accepts
func (r Request) validate(snap panel.Snapshot) (Request, error) {
	if _, ok := kindNames[r.Kind]; !ok {
		return r, fmt.Errorf("%w: unknown session %d", ErrInvalidRequest, int(r.Kind))
	}
	celsius := snap.Units == panel.Celsius
	switch r.Kind {
	case KindPoolHeater, KindSpaHeater:
		if celsius {
			r.Value = heaterC.clamp(r.Value)
		} else {
			r.Value = heaterF.clamp(r.Value)
		}
	case KindFreezeProtect:
		if celsius {
			r.Value = freezeC.clamp(r.Value)
		} else {
			r.Value = freezeF.clamp(r.Value)
		}
	case KindSWGPercent:
		r.Value = swg.clamp(r.Value)
	case KindDimmer:
		if r.Value < 0 || r.Value > len(DimmerLevels) {
			return r, fmt.Errorf("%w: dimmer level %d", ErrInvalidRequest, r.Value)
		}
	}
	if r.Kind.light() {
		if r.Button < 0 || r.Button >= len(panel.DefaultButtons()) {
			return r, fmt.Errorf("%w: no key %d", ErrInvalidRequest, r.Button)
		}
	}
	return r, nil
}
