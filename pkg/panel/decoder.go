// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panel

import (
	"strings"

	"github.com/Thermoquad/poolbus/pkg/rsbus"
	"github.com/rs/zerolog"
)

const (
	// MsgLen is the number of characters in one message frame
	MsgLen = 36
	// maxMsgParts is the index of the last part of a long message
	maxMsgParts = 5
)

// Options configures a Decoder
type Options struct {
	// OverrideFreezeProtect answers the freeze protection override prompt
	// with ENTER.
	OverrideFreezeProtect bool
	// UsePanelAuxLabels replaces key labels with the ones echoed by the
	// panel while reviewing aux labels.
	UsePanelAuxLabels bool
	// SendKey queues a keypress for the panel.
	SendKey func(Key)
	// OnFirstRevision runs once, the first time the firmware revision line
	// is seen. It is the point where the panel has accepted the keypad.
	OnFirstRevision func()
	// OnTime runs for every panel time line once the revision is known.
	OnTime func(date, time string)
	// Logger receives decoder events. Nil disables logging.
	Logger *zerolog.Logger
}

// Decoder applies AllButton frames to a State and publishes each decoded
// text line on a Broadcaster. It is driven from the bus goroutine only.
type Decoder struct {
	state *State
	bcast *Broadcaster
	opts  Options
	log   zerolog.Logger

	lastChecksum byte
	message      [maxMsgParts * MsgLen]byte
	longIndex    int

	loop          Category
	defaultFreeze LEDState
	boostLastLoop bool
	initWithRS    bool
}

// NewDecoder creates a decoder writing to state and bcast
func NewDecoder(state *State, bcast *Broadcaster, opts Options) *Decoder {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Decoder{
		state:         state,
		bcast:         bcast,
		opts:          opts,
		log:           log,
		defaultFreeze: LEDOff,
	}
}

// HandleFrame applies one frame addressed to the keypad. It returns false
// for frames that carry nothing new: duplicates of the last status frame,
// probes, loop starts and unknown commands.
func (d *Decoder) HandleFrame(f *rsbus.Frame) bool {
	if !f.IsJandy() {
		return false
	}
	raw := f.Raw()
	cmd := f.Command()
	checksum := raw[len(raw)-3]

	if cmd == rsbus.CmdStatus && checksum == d.lastChecksum && d.state.ProgrammingMode() == NotProgramming {
		d.log.Trace().Msg("duplicate status, ignoring")
		return false
	}
	d.lastChecksum = checksum

	if d.longIndex > 0 && cmd != rsbus.CmdMsgLong {
		d.longIndex = 0
		d.ProcessMessage(cleanText(d.message[:]))
	}

	payload := f.Payload()
	switch cmd {
	case rsbus.CmdAck:
	case rsbus.CmdStatus:
		d.processLEDs(payload)
		if d.state.ProgrammingMode() == LightProgramming {
			d.bcast.Kick()
		}
	case rsbus.CmdMsg, rsbus.CmdMsgLong:
		d.assemble(payload)
	case rsbus.CmdProbe:
		d.log.Debug().Msg("probe")
		return false
	case rsbus.CmdMsgLoopStart:
		d.log.Debug().Msg("message loop start")
		d.LoopReset()
		return false
	default:
		d.log.Info().Msgf("unknown packet 0x%02x", cmd)
		return false
	}
	return true
}

// assemble collects message parts. Index 0 is a complete line, index 1
// starts a long message and index 5 completes it.
func (d *Decoder) assemble(payload []byte) {
	if len(payload) == 0 {
		return
	}
	index := int(payload[0])
	text := payload[1:]
	if len(text) > MsgLen {
		text = text[:MsgLen]
	}

	if index <= 1 {
		d.message = [maxMsgParts * MsgLen]byte{}
		copy(d.message[:], text)
		d.longIndex = index
	} else {
		if off := (index - 1) * MsgLen; off < len(d.message) {
			copy(d.message[off:], text)
		}
		d.longIndex++
		if d.longIndex != index {
			d.log.Debug().Msgf("long message index %d doesn't match buffer %d", index, d.longIndex)
		}
	}

	if index == 0 || index == maxMsgParts {
		d.longIndex = 0
		d.ProcessMessage(cleanText(d.message[:]))
	}
}

// processLEDs applies a status bitmap
func (d *Decoder) processLEDs(payload []byte) {
	if len(payload) < StatusLen {
		return
	}
	var raw [StatusLen]byte
	copy(raw[:], payload)
	bank := DecodeLEDs(raw[:])

	s := d.state
	s.mu.Lock()
	defer s.mu.Unlock()
	if setIfChanged(&s.snap.RawStatus, raw, &s.dirty) {
		d.log.Debug().Msg("LED status changed")
	}
	for i := 0; i < NumLEDs; i++ {
		setIfChanged(&s.snap.LEDs[i], bank[i], &s.dirty)
	}
}

// message carries one line through the template table
type message struct {
	raw string // as received, offsets of set point lines count from here
	msg string // trimmed
	rs16 Category

	sendEnter bool
	firstRev  bool
	timeLine  bool
}

// ProcessMessage classifies one complete text line, updates the state and
// wakes readers of the broadcaster
func (d *Decoder) ProcessMessage(raw string) {
	m := &message{raw: raw, msg: strings.TrimSpace(raw)}
	d.log.Info().Str("message", m.msg).Msg("panel message")

	s := d.state
	s.mu.Lock()
	setIfChanged(&s.snap.LastMessage, m.msg, &s.dirty)

	serviceSeen := false
	for _, t := range templates {
		if t.match(d, m) {
			t.apply(d, m)
			serviceSeen = t.service
			break
		}
	}
	// The panel repeats the service banner while active, any other line
	// means it is over
	if !serviceSeen {
		setIfChanged(&s.snap.ServiceMode, LEDOff, &s.dirty)
	}
	date, tm := s.snap.Date, s.snap.Time
	s.mu.Unlock()

	if m.sendEnter && d.opts.SendKey != nil {
		d.opts.SendKey(KeyEnter)
	}
	if m.firstRev && d.opts.OnFirstRevision != nil {
		d.opts.OnFirstRevision()
	}
	if m.timeLine && d.initWithRS && d.opts.OnTime != nil {
		d.opts.OnTime(date, tm)
	}

	d.bcast.Publish(m.msg)
}

// LoopReset runs at the start of every message loop. Conditions that were
// not announced during the previous loop fall back to their defaults.
func (d *Decoder) LoopReset() {
	s := d.state
	s.mu.Lock()
	defer s.mu.Unlock()
	loop := d.loop
	snap := &s.snap

	s.setDisplay("")

	if !loop.Has(CatFreeze) {
		if snap.FreezeProtect != d.defaultFreeze {
			d.log.Info().Msg("freeze protect turned off")
		}
		setIfChanged(&snap.FreezeProtect, d.defaultFreeze, &s.dirty)
	}

	if !loop.Has(CatService) && !loop.Has(CatTimeout) {
		setIfChanged(&snap.ServiceMode, LEDOff, &s.dirty)
	}

	pumpOff := s.ledOf(PumpIndex) == LEDOff
	if !loop.Has(CatSWGDevice) && snap.SWGLED != LEDUnknown {
		if !loop.Has(CatSWG) && pumpOff {
			s.setSWGStatus(SWGStatusOff)
		} else {
			s.setSWGStatus(SWGStatusOn)
		}
	}

	if !loop.Has(CatSWG) && snap.SWGLED != LEDUnknown {
		if snap.SWGPercent != 0 || snap.SWGLED == LEDOn {
			if pumpOff {
				d.log.Info().Msg("no AQUAPURE message in cycle, pump is off so setting SWG to off")
				s.setSWGOff()
			} else {
				d.log.Info().Msg("no AQUAPURE message in cycle, pump is on so setting SWG to 0%")
				s.setSWGPercent(0)
			}
		} else if s.ledOf(PumpIndex) == LEDOn {
			s.setSWGEnabled()
		}
	}

	if !loop.Has(CatPoolTemp) {
		setIfChanged(&snap.PoolTemp, TempUnknown, &s.dirty)
	}
	if !loop.Has(CatSpaTemp) {
		setIfChanged(&snap.SpaTemp, TempUnknown, &s.dirty)
	}

	if !loop.Has(CatBoost) {
		if snap.Boost || d.boostLastLoop {
			d.log.Info().Msg("boost turned off")
		}
		setIfChanged(&snap.Boost, false, &s.dirty)
		snap.BoostMsg = ""
		setIfChanged(&snap.BoostMinutes, 0, &s.dirty)
		d.boostLastLoop = false
	}

	if !loop.Has(CatBatteryLow) {
		setIfChanged(&snap.Battery, BatteryOK, &s.dirty)
	}

	if snap.PanelSize >= 16 {
		for i := VirtualButtonStart; i <= VirtualButtonEnd; i++ {
			if !loop.Has(virtualButtonCategory(i)) {
				s.setButtonLED(i, LEDOff)
			}
		}
	}

	d.loop = 0
}

// Loop returns the categories seen so far in the current loop
func (d *Decoder) Loop() Category {
	return d.loop
}
