// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panel

import "sync"

// TempUnknown marks a temperature or set point that has not been read
const TempUnknown = -999

// TempUnits is the temperature scale reported by the panel
type TempUnits int

const (
	Fahrenheit TempUnits = iota
	Celsius
	UnitsUnknown
)

func (u TempUnits) String() string {
	switch u {
	case Fahrenheit:
		return "F"
	case Celsius:
		return "C"
	default:
		return "?"
	}
}

// BatteryState is the panel's backup battery condition
type BatteryState int

const (
	BatteryOK BatteryState = iota
	BatteryLow
)

// SWGStatus is the salt water generator condition reported by the panel
type SWGStatus int

const (
	SWGStatusUnknown SWGStatus = iota
	SWGStatusOn
	SWGStatusOff
	SWGStatusNoFlow
	SWGStatusLowSalt
	SWGStatusHighSalt
	SWGStatusFault
)

func (s SWGStatus) String() string {
	switch s {
	case SWGStatusOn:
		return "on"
	case SWGStatusOff:
		return "off"
	case SWGStatusNoFlow:
		return "no flow"
	case SWGStatusLowSalt:
		return "low salt"
	case SWGStatusHighSalt:
		return "high salt"
	case SWGStatusFault:
		return "general fault"
	default:
		return "unknown"
	}
}

// ProgrammingMode describes the session currently driving the keypad
type ProgrammingMode int

const (
	NotProgramming ProgrammingMode = iota
	Programming
	// LightProgramming sessions also wake on status frames
	LightProgramming
)

// ButtonState is a key with its current LED state
type ButtonState struct {
	Button
	State LEDState
}

// Snapshot is a consistent copy of the panel state
type Snapshot struct {
	LEDs      LEDBank
	RawStatus [StatusLen]byte
	Buttons   []ButtonState

	LastMessage    string
	DisplayMessage string

	Version  string
	Revision string
	CPU      string
	Date     string
	Time     string

	Units          TempUnits
	AirTemp        int
	PoolTemp       int
	SpaTemp        int
	PoolSetPoint   int
	SpaSetPoint    int
	FreezeSetPoint int

	FreezeProtect LEDState
	ServiceMode   LEDState
	Battery       BatteryState

	SWGPercent int
	SWGPPM     int
	SWGStatus  SWGStatus
	SWGLED     LEDState

	Boost        bool
	BoostMsg     string
	BoostMinutes int

	SingleDevice bool
	PanelSize    int
}

// State is the shared panel state. The bus goroutine writes it, any
// goroutine may read it. Every write marks the state dirty only when a
// value actually changes.
type State struct {
	mu      sync.RWMutex
	snap    Snapshot
	buttons []Button
	dirty   bool
	mode    ProgrammingMode
}

// NewState creates the state for a panel of the given size
func NewState(panelSize int, combo bool) *State {
	s := &State{buttons: DefaultButtons()}
	for i := range s.snap.LEDs {
		s.snap.LEDs[i] = LEDUnknown
	}
	s.snap.Units = UnitsUnknown
	s.snap.AirTemp = TempUnknown
	s.snap.PoolTemp = TempUnknown
	s.snap.SpaTemp = TempUnknown
	s.snap.PoolSetPoint = TempUnknown
	s.snap.SpaSetPoint = TempUnknown
	s.snap.FreezeSetPoint = TempUnknown
	s.snap.FreezeProtect = LEDOff
	s.snap.ServiceMode = LEDOff
	s.snap.SWGPercent = TempUnknown
	s.snap.SWGPPM = TempUnknown
	s.snap.SWGLED = LEDUnknown
	s.snap.SingleDevice = !combo
	s.snap.PanelSize = panelSize
	return s
}

// setIfChanged assigns v to *dst and reports whether it changed
func setIfChanged[T comparable](dst *T, v T, dirty *bool) bool {
	if *dst == v {
		return false
	}
	*dst = v
	*dirty = true
	return true
}

// Snapshot returns a copy of the whole state
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	snap.Buttons = make([]ButtonState, 0, len(s.buttons))
	for _, b := range PanelButtons(s.buttons, s.snap.PanelSize, !s.snap.SingleDevice) {
		snap.Buttons = append(snap.Buttons, ButtonState{Button: b, State: s.snap.LEDs[b.LED]})
	}
	return snap
}

// Dirty reports whether anything changed since the last ClearDirty
func (s *State) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// ClearDirty clears the dirty flag and reports whether it was set
func (s *State) ClearDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.dirty
	s.dirty = false
	return was
}

// LastMessage returns the most recent text line from the panel
func (s *State) LastMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.LastMessage
}

// Button returns the key at index i of the full layout
func (s *State) Button(i int) (Button, LEDState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.buttons) {
		return Button{}, LEDUnknown, false
	}
	b := s.buttons[i]
	return b, s.snap.LEDs[b.LED], true
}

// ButtonByCode finds a key by its code
func (s *State) ButtonByCode(code Key) (int, Button, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, b := range s.buttons {
		if b.Code == code {
			return i, b, true
		}
	}
	return -1, Button{}, false
}

// SetLabel overrides a key label
func (s *State) SetLabel(i int, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= 0 && i < len(s.buttons) {
		setIfChanged(&s.buttons[i].Label, label, &s.dirty)
	}
}

// ProgrammingMode returns the active programming mode
func (s *State) ProgrammingMode() ProgrammingMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetProgrammingMode is called by the session runner on start and end
func (s *State) SetProgrammingMode(m ProgrammingMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

// SetSWGPercent records a percent set by a finished programming session
func (s *State) SetSWGPercent(p int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setSWGPercent(p)
}

// SetBoost records a boost change made by a programming session
func (s *State) SetBoost(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setIfChanged(&s.snap.Boost, on, &s.dirty)
	if !on {
		setIfChanged(&s.snap.BoostMinutes, 0, &s.dirty)
		s.snap.BoostMsg = ""
	}
}

// The helpers below expect s.mu held for writing.

func (s *State) setSWGPercent(p int) {
	setIfChanged(&s.snap.SWGPercent, p, &s.dirty)
	switch {
	case p > 0:
		if s.snap.SWGLED == LEDOff || s.snap.SWGLED == LEDUnknown || (s.snap.SWGLED == LEDEnable && !s.swgError()) {
			setIfChanged(&s.snap.SWGLED, LEDOn, &s.dirty)
		}
	case p == 0:
		if s.snap.SWGLED == LEDOn || s.snap.SWGLED == LEDUnknown {
			setIfChanged(&s.snap.SWGLED, LEDEnable, &s.dirty)
		}
	}
	if s.snap.SWGStatus == SWGStatusUnknown {
		setIfChanged(&s.snap.SWGStatus, SWGStatusOn, &s.dirty)
	}
}

func (s *State) swgError() bool {
	switch s.snap.SWGStatus {
	case SWGStatusNoFlow, SWGStatusLowSalt, SWGStatusHighSalt, SWGStatusFault:
		return true
	}
	return false
}

func (s *State) setSWGStatus(st SWGStatus) {
	if !setIfChanged(&s.snap.SWGStatus, st, &s.dirty) {
		return
	}
	switch st {
	case SWGStatusOff:
		setIfChanged(&s.snap.SWGLED, LEDOff, &s.dirty)
	case SWGStatusNoFlow:
		setIfChanged(&s.snap.SWGLED, LEDEnable, &s.dirty)
	case SWGStatusFault:
		setIfChanged(&s.snap.SWGLED, LEDFlash, &s.dirty)
	default:
		if s.snap.SWGPercent > 0 {
			setIfChanged(&s.snap.SWGLED, LEDOn, &s.dirty)
		} else {
			setIfChanged(&s.snap.SWGLED, LEDEnable, &s.dirty)
		}
	}
}

func (s *State) setSWGOff() {
	setIfChanged(&s.snap.SWGStatus, SWGStatusOff, &s.dirty)
	setIfChanged(&s.snap.SWGLED, LEDOff, &s.dirty)
}

func (s *State) setSWGEnabled() {
	setIfChanged(&s.snap.SWGLED, LEDEnable, &s.dirty)
}

func (s *State) setDisplay(msg string) {
	setIfChanged(&s.snap.DisplayMessage, msg, &s.dirty)
}

func (s *State) ledOf(i int) LEDState {
	return s.snap.LEDs[s.buttons[i].LED]
}

func (s *State) setButtonLED(i int, st LEDState) {
	setIfChanged(&s.snap.LEDs[s.buttons[i].LED], st, &s.dirty)
}
