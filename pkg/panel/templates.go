// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panel

import "strings"

// Panel text lines
const (
	MsgBatteryLow           = "BATTERY LOW"
	MsgPoolTempSet          = "POOL TEMP IS SET TO"
	MsgSpaTempSet           = "SPA TEMP IS SET TO"
	MsgFreezeSet            = "FREEZE PROTECTION IS SET TO"
	MsgAirTemp              = "AIR TEMP"
	MsgPoolTemp             = "POOL TEMP"
	MsgSpaTemp              = "SPA TEMP"
	MsgWaterTemp            = "WATER TEMP"
	MsgTemp1Set             = "TEMP1 (HIGH TEMP) IS SET TO"
	MsgTemp2Set             = "TEMP2 (LOW TEMP) IS SET TO"
	MsgServiceActive        = "SERVICE MODE IS ACTIVE"
	MsgTimeoutActive        = "TIMEOUT MODE IS ACTIVE"
	MsgFreezeActivated      = "FREEZE PROTECTION ACTIVATED"
	MsgSWGPercent           = "AQUAPURE"
	MsgSWGHours             = "AQUAPURE HRS"
	MsgSWGSet               = "SET AQUAPURE"
	MsgSWGNoFlow            = "NO FLOW"
	MsgSWGLowSalt           = "LOW SALT"
	MsgSWGHighSalt          = "HIGH SALT"
	MsgSWGFault             = "GENERAL FAULT"
	MsgSWGPPM               = "SALT"
	MsgTurnsOn              = " TURNS ON"
	MsgOverrideFreeze       = "Press Enter* to override Freeze Protection with"
	MsgBoostPool            = "BOOST POOL"
	MsgBoostRemaining       = "REMAINING"
	MsgNoLabel              = "No Label"
	msgSetPointPoolOffset   = 20
	msgSetPointSpaOffset    = 19
	msgSetPointFreezeOffset = 28
	msgTemp1Offset          = 28
	msgTemp2Offset          = 27
)

// displayFilter lists lines that are never shown as the display message
var displayFilter = []string{"JANDY AquaLinkRS", "MAINTAIN", "Heat Pump", "0 PSI"}

// template is one entry of the ordered classification table. Handlers run
// with the state lock held.
type template struct {
	name    string
	service bool
	match   func(d *Decoder, m *message) bool
	apply   func(d *Decoder, m *message)
}

func contains(sub string) func(*Decoder, *message) bool {
	return func(_ *Decoder, m *message) bool { return containsFold(m.msg, sub) }
}

func prefix(p string) func(*Decoder, *message) bool {
	return func(_ *Decoder, m *message) bool { return hasPrefixFold(m.msg, p) }
}

// The first match wins, so longer lines come before the prefixes that
// would shadow them.
var templates = []template{
	{
		name:  "battery low",
		match: contains(MsgBatteryLow),
		apply: func(d *Decoder, m *message) {
			s := d.state
			setIfChanged(&s.snap.Battery, BatteryLow, &s.dirty)
			d.loop |= CatBatteryLow
			s.setDisplay(m.msg)
		},
	},
	{
		name:  "pool set point",
		match: contains(MsgPoolTempSet),
		apply: func(d *Decoder, m *message) {
			s := d.state
			setIfChanged(&s.snap.PoolSetPoint, intAt(m.raw, msgSetPointPoolOffset), &s.dirty)
			d.setUnits(m.msg)
		},
	},
	{
		name:  "spa set point",
		match: contains(MsgSpaTempSet),
		apply: func(d *Decoder, m *message) {
			s := d.state
			setIfChanged(&s.snap.SpaSetPoint, intAt(m.raw, msgSetPointSpaOffset), &s.dirty)
			d.setUnits(m.msg)
		},
	},
	{
		name:  "freeze set point",
		match: contains(MsgFreezeSet),
		apply: func(d *Decoder, m *message) {
			s := d.state
			setIfChanged(&s.snap.FreezeSetPoint, intAt(m.raw, msgSetPointFreezeOffset), &s.dirty)
			setIfChanged(&s.snap.FreezeProtect, LEDEnable, &s.dirty)
			d.defaultFreeze = LEDEnable
			d.setUnits(m.msg)
		},
	},
	{
		name:  "air temp",
		match: prefix(MsgAirTemp),
		apply: func(d *Decoder, m *message) {
			s := d.state
			setIfChanged(&s.snap.AirTemp, intAt(m.msg, len(MsgAirTemp)), &s.dirty)
			d.setUnits(m.msg)
		},
	},
	{
		name:  "pool temp",
		match: prefix(MsgPoolTemp),
		apply: func(d *Decoder, m *message) {
			s := d.state
			d.loop |= CatPoolTemp
			setIfChanged(&s.snap.PoolTemp, intAt(m.msg, len(MsgPoolTemp)), &s.dirty)
			d.setUnits(m.msg)
		},
	},
	{
		name:  "spa temp",
		match: prefix(MsgSpaTemp),
		apply: func(d *Decoder, m *message) {
			s := d.state
			d.loop |= CatSpaTemp
			setIfChanged(&s.snap.SpaTemp, intAt(m.msg, len(MsgSpaTemp)), &s.dirty)
			d.setUnits(m.msg)
		},
	},
	{
		name:  "water temp",
		match: prefix(MsgWaterTemp),
		apply: func(d *Decoder, m *message) {
			s := d.state
			t := intAt(m.msg, len(MsgWaterTemp))
			d.loop |= CatPoolTemp | CatSpaTemp
			setIfChanged(&s.snap.PoolTemp, t, &s.dirty)
			setIfChanged(&s.snap.SpaTemp, t, &s.dirty)
			d.setUnits(m.msg)
			d.singleDevice()
		},
	},
	{
		name:  "temp1 set point",
		match: contains(MsgTemp1Set),
		apply: func(d *Decoder, m *message) {
			s := d.state
			setIfChanged(&s.snap.PoolSetPoint, intAt(m.raw, msgTemp1Offset), &s.dirty)
			d.setUnits(m.msg)
			d.singleDevice()
		},
	},
	{
		name:  "temp2 set point",
		match: contains(MsgTemp2Set),
		apply: func(d *Decoder, m *message) {
			s := d.state
			setIfChanged(&s.snap.SpaSetPoint, intAt(m.raw, msgTemp2Offset), &s.dirty)
			d.setUnits(m.msg)
			d.singleDevice()
		},
	},
	{
		name:    "service mode",
		service: true,
		match:   contains(MsgServiceActive),
		apply: func(d *Decoder, m *message) {
			s := d.state
			if s.snap.ServiceMode == LEDOff {
				d.log.Info().Msg("panel in service mode")
			}
			setIfChanged(&s.snap.ServiceMode, LEDOn, &s.dirty)
			d.loop |= CatService
		},
	},
	{
		name:    "timeout mode",
		service: true,
		match:   contains(MsgTimeoutActive),
		apply: func(d *Decoder, m *message) {
			s := d.state
			if s.snap.ServiceMode == LEDOff {
				d.log.Info().Msg("panel in timeout mode")
			}
			setIfChanged(&s.snap.ServiceMode, LEDFlash, &s.dirty)
			d.loop |= CatTimeout
		},
	},
	{
		name:  "freeze activated",
		match: contains(MsgFreezeActivated),
		apply: func(d *Decoder, m *message) {
			s := d.state
			d.loop |= CatFreeze
			setIfChanged(&s.snap.FreezeProtect, LEDOn, &s.dirty)
			s.setDisplay(m.msg)
		},
	},
	{
		// 08/29/16 MON
		name: "date",
		match: func(_ *Decoder, m *message) bool {
			return len(m.msg) > 8 && m.msg[2] == '/' && m.msg[5] == '/' && m.msg[8] == ' '
		},
		apply: func(d *Decoder, m *message) {
			setIfChanged(&d.state.snap.Date, m.msg, &d.state.dirty)
		},
	},
	{
		name:  "swg",
		match: contains(MsgSWGPercent),
		apply: func(d *Decoder, m *message) {
			s := d.state
			hours := hasPrefixFold(m.msg, MsgSWGHours)
			switch {
			case hasPrefixFold(m.msg, MsgSWGPercent) && !hours && startsWithDigit(m.msg[len(MsgSWGPercent):]):
				s.setSWGPercent(intAt(m.msg, len(MsgSWGPercent)))
			case !hours && !hasPrefixFold(m.msg, MsgSWGSet):
				switch {
				case containsFold(m.msg, MsgSWGNoFlow):
					s.setSWGStatus(SWGStatusNoFlow)
				case containsFold(m.msg, MsgSWGLowSalt):
					s.setSWGStatus(SWGStatusLowSalt)
				case containsFold(m.msg, MsgSWGHighSalt):
					s.setSWGStatus(SWGStatusHighSalt)
				case containsFold(m.msg, MsgSWGFault):
					s.setSWGStatus(SWGStatusFault)
				}
				s.setDisplay(m.msg)
				d.loop |= CatSWGDevice
			}
			d.loop |= CatSWG
		},
	},
	{
		name:  "swg ppm",
		match: prefix(MsgSWGPPM),
		apply: func(d *Decoder, m *message) {
			setIfChanged(&d.state.snap.SWGPPM, intAt(m.msg, len(MsgSWGPPM)), &d.state.dirty)
			d.loop |= CatSWG
		},
	},
	{
		// 9:45 AM
		name: "time",
		match: func(_ *Decoder, m *message) bool {
			return len(m.msg) > 2 && (m.msg[1] == ':' || m.msg[2] == ':') && m.msg[len(m.msg)-1] == 'M'
		},
		apply: func(d *Decoder, m *message) {
			setIfChanged(&d.state.snap.Time, m.msg, &d.state.dirty)
			m.timeLine = true
		},
	},
	{
		// B0029221 REV T.2
		name: "revision",
		match: func(_ *Decoder, m *message) bool {
			return strings.Contains(m.msg, " REV ") || strings.Contains(m.msg, " REV. ")
		},
		apply: func(d *Decoder, m *message) {
			s := d.state
			setIfChanged(&s.snap.Version, m.msg, &s.dirty)
			setIfChanged(&s.snap.Revision, revisionOf(m.msg), &s.dirty)
			if f := strings.Fields(m.msg); len(f) > 0 {
				setIfChanged(&s.snap.CPU, f[0], &s.dirty)
			}
			d.log.Debug().Str("version", s.snap.Version).Str("revision", s.snap.Revision).Msg("control panel version")
			if !d.initWithRS {
				d.initWithRS = true
				m.firstRev = true
			}
		},
	},
	{
		name:  "program data",
		match: contains(MsgTurnsOn),
		apply: func(d *Decoder, m *message) {
			d.log.Info().Str("program", m.msg).Msg("program data")
		},
	},
	{
		name: "override freeze protect",
		match: func(d *Decoder, m *message) bool {
			return d.opts.OverrideFreezeProtect && hasPrefixFold(m.msg, MsgOverrideFreeze)
		},
		apply: func(_ *Decoder, m *message) {
			m.sendEnter = true
		},
	},
	{
		// Aux_B5 on, Waterfall off
		name: "virtual key",
		match: func(d *Decoder, m *message) bool {
			m.rs16 = d.virtualKeyLine(m)
			return m.rs16 != 0
		},
		apply: func(d *Decoder, m *message) {
			d.loop |= m.rs16
			d.state.setDisplay(m.msg)
		},
	},
	{
		// Aux3: No Label, Aux B1: Waterfall
		name: "aux label",
		match: func(_ *Decoder, m *message) bool {
			msg := m.msg
			return ((len(msg) > 4 && msg[4] == ':') || (len(msg) > 6 && msg[6] == ':')) && hasPrefixFold(msg, "AUX")
		},
		apply: func(d *Decoder, m *message) {
			d.auxLabel(m.msg)
		},
	},
	{
		// BOOST POOL 23:59 REMAINING
		name: "boost",
		match: func(_ *Decoder, m *message) bool {
			return hasPrefixFold(m.msg, MsgBoostPool) && containsFold(m.msg, MsgBoostRemaining)
		},
		apply: func(d *Decoder, m *message) {
			s := d.state
			if s.mode != NotProgramming {
				return
			}
			if !s.snap.Boost || !d.boostLastLoop {
				d.log.Info().Msg("boost turned on")
			}
			if len(m.msg) > 11 {
				end := min(len(m.msg), 16)
				s.snap.BoostMsg = m.msg[11:end]
			}
			setIfChanged(&s.snap.BoostMinutes, hhmmToMinutes(s.snap.BoostMsg), &s.dirty)
			setIfChanged(&s.snap.Boost, true, &s.dirty)
			d.loop |= CatBoost | CatSWG
			d.boostLastLoop = true
			if s.snap.SWGPercent != 101 {
				s.setSWGPercent(101)
			}
			s.setDisplay(m.msg)
		},
	},
	{
		name:  "display",
		match: func(*Decoder, *message) bool { return true },
		apply: func(d *Decoder, m *message) {
			d.log.Trace().Str("message", m.msg).Msg("ignoring")
			if d.state.mode != NotProgramming || hasPrefixFold(m.msg, "PUMP O") {
				return
			}
			for _, f := range displayFilter {
				if containsFold(m.msg, f) {
					return
				}
			}
			d.state.setDisplay(m.msg)
		},
	},
}

// setUnits takes the temperature units from the last character of a
// temperature line while they are still unknown
func (d *Decoder) setUnits(msg string) {
	s := d.state
	if s.snap.Units != UnitsUnknown || msg == "" {
		return
	}
	switch msg[len(msg)-1] {
	case 'F':
		setIfChanged(&s.snap.Units, Fahrenheit, &s.dirty)
	case 'C':
		setIfChanged(&s.snap.Units, Celsius, &s.dirty)
	}
}

// startsWithDigit reports whether s holds a number after leading spaces
func startsWithDigit(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

// singleDevice switches a panel configured as combo to pool or spa only
func (d *Decoder) singleDevice() {
	s := d.state
	if !s.snap.SingleDevice {
		d.log.Error().Msg("configured as combo pool and spa but the panel is pool or spa only, please change config")
		setIfChanged(&s.snap.SingleDevice, true, &s.dirty)
	}
}

// virtualKeyLine matches "<label> on|off|enabled" against the RS-16 keys
// that have no LED and sets the key state. It returns the loop bit of the
// key or 0.
func (d *Decoder) virtualKeyLine(m *message) Category {
	s := d.state
	if s.snap.PanelSize < 16 {
		return 0
	}
	sp := strings.LastIndexByte(m.msg, ' ')
	if sp < 0 {
		return 0
	}
	var st LEDState
	switch suffix := m.msg[sp:]; {
	case strings.EqualFold(suffix, " on"):
		st = LEDOn
	case strings.EqualFold(suffix, " off"):
		st = LEDOff
	case strings.EqualFold(suffix, " enabled"):
		st = LEDEnable
	default:
		return 0
	}
	for i := VirtualButtonStart; i <= VirtualButtonEnd; i++ {
		if containsFold(m.msg, s.buttons[i].Label) {
			s.setButtonLED(i, st)
			d.log.Info().Str("key", s.buttons[i].Label).Stringer("state", st).Msg("virtual key")
			return virtualButtonCategory(i)
		}
	}
	return 0
}

// auxLabel applies a label echoed while reviewing aux labels. Panel Aux1
// is key index 2 and Aux B1 is index 9.
func (d *Decoder) auxLabel(msg string) {
	ni := 3
	if msg[4] == 'B' {
		ni = 5
	}
	id := intAt(msg, ni)
	if id <= 0 || !d.opts.UsePanelAuxLabels {
		return
	}
	if ni == 5 {
		id += 8
	} else {
		id++
	}
	s := d.state
	if id >= len(s.buttons) {
		return
	}
	if len(msg) > ni+3 && hasPrefixFold(msg[ni+3:], MsgNoLabel) {
		d.log.Info().Str("key", s.buttons[id].Name).Str("label", s.buttons[id].Label).Msg("no panel label for aux key")
		return
	}
	if len(msg) <= ni+2 {
		return
	}
	label := prettyLabel(msg[ni+2:])
	setIfChanged(&s.buttons[id].Label, label, &s.dirty)
	d.log.Info().Str("key", s.buttons[id].Name).Str("label", label).Msg("aux label set")
}
