// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package autoconfig finds free bus addresses by watching the master's
// probe cycle.
//
// The master probes every address it knows about in a fixed round robin.
// A probed address that is not answered before the next frame is free. The
// Arbiter keeps the first free address of each role it can use and, on the
// way, asks the panel for its revision and type through an AllButton
// address and the PC dock address.
package autoconfig

import (
	"context"

	"github.com/Thermoquad/poolbus/pkg/rsbus"
	"github.com/rs/zerolog"
)

// DefaultMaxFrames is how many frames are watched before giving up
const DefaultMaxFrames = 1200

// unset marks a side channel that has not picked an address
const unset = 0xFF

// pcDockID is the PC dock address asked for panel information
const pcDockID = 0x58

// PC dock requests: panel revision and panel type
var (
	pcDockRevision  = []byte{rsbus.DevMaster, rsbus.CmdGetID, 0x01}
	pcDockPanelType = []byte{rsbus.DevMaster, rsbus.CmdGetID, 0x02}
)

// ReplyKind says what to send back after a frame
type ReplyKind int

const (
	ReplyNone ReplyKind = iota
	// ReplyAck is a normal ack with a zero command byte
	ReplyAck
	// ReplyCommand is a Jandy frame built from Body
	ReplyCommand
)

// Reply is the frame to transmit in answer to the frame just fed
type Reply struct {
	Kind ReplyKind
	Body []byte
}

// Identity is the set of addresses chosen for each role and what was
// learned about the panel
type Identity struct {
	// DeviceID is the AllButton keypad address, or the PDA address after a
	// PDA fallback
	DeviceID byte
	RSSAID   byte
	// ExtendedID is a OneTouch or AqualinkTouch address
	ExtendedID          byte
	ExtendedProgramming bool
	// IAqualink is set when an AqualinkTouch address was found and no live
	// iAqualink device answered
	IAqualink     bool
	SeenIAqualink bool

	Revision  string
	CPU       string
	PanelType string
	PanelSize int
	Combo     bool
	PDAPanel  bool
}

// Result is the outcome of arbitration
type Result struct {
	Identity
	Frames int
	Loops  int
	// Degraded is set when no AllButton address was usable and the PDA
	// address was taken instead
	Degraded bool
	// Exhausted is set when the frame ceiling ended arbitration
	Exhausted bool
}

// Options configures an Arbiter
type Options struct {
	MaxFrames int
	Logger    *zerolog.Logger
}

// Arbiter is fed every bus frame until it reports done. It is not safe for
// concurrent use.
type Arbiter struct {
	opts Options
	log  zerolog.Logger

	id      Identity
	frames  int
	loops   int
	found   int
	lastID  byte
	first   byte
	pdaID   byte
	gotRev  bool
	gotSize bool
	done    bool
	result  Result

	allB   allButtonProbe
	pcDock pcDockProbe
}

// New creates an Arbiter
func New(opts Options) *Arbiter {
	if opts.MaxFrames <= 0 {
		opts.MaxFrames = DefaultMaxFrames
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Arbiter{
		opts:   opts,
		log:    log,
		allB:   allButtonProbe{pass: unset},
		pcDock: pcDockProbe{pass: unset},
	}
}

// Done reports whether arbitration has finished
func (a *Arbiter) Done() bool {
	return a.done
}

// Result returns the outcome. It is only complete once Done is true.
func (a *Arbiter) Result() Result {
	if a.done {
		return a.result
	}
	return Result{Identity: a.id, Frames: a.frames, Loops: a.loops}
}

// Feed processes one frame and returns the reply to send and whether
// arbitration is complete
func (a *Arbiter) Feed(f *rsbus.Frame) (Reply, bool) {
	if a.done {
		return Reply{}, true
	}
	if !f.IsJandy() {
		return Reply{}, false
	}

	a.frames++
	if a.frames >= a.opts.MaxFrames {
		a.log.Error().Int("frames", a.frames).Msg("no full probe cycle seen, stopping auto configure")
		a.finish(true)
		return Reply{}, true
	}

	dest, cmd := f.Dest(), f.Command()
	var reply Reply

	switch {
	case dest == a.allB.pass && !a.gotRev:
		var text string
		if text, reply = a.allB.feed(f); text != "" {
			a.panelInfo(text)
			return reply, false
		}
	case dest == a.pcDock.pass && (!a.gotRev || !a.gotSize):
		var text string
		if text, reply = a.pcDock.feed(f); text != "" {
			a.panelInfo(text)
			return reply, false
		}
	case cmd == rsbus.CmdProbe:
		switch {
		case rsbus.IsAllButtonID(dest) && !a.gotRev && a.allB.pass == unset:
			_, reply = a.allB.feed(f)
			a.allB.pass = dest
			a.log.Info().Str("id", hexID(dest)).Msg("using id to probe panel for information")
			return reply, false
		case dest == pcDockID && (!a.gotRev || !a.gotSize) && a.pcDock.pass == unset:
			_, reply = a.pcDock.feed(f)
			a.pcDock.pass = dest
			a.log.Info().Str("id", hexID(dest)).Msg("using id to probe panel for information")
			return reply, false
		}
	}

	// A PDA may be in use, keep its address either way
	if rsbus.IsPDAID(dest) && a.pdaID == 0 {
		a.log.Info().Str("id", hexID(dest)).Msg("found PDA id")
		a.pdaID = dest
	}

	if rsbus.IsIAqualinkID(a.lastID) && dest == rsbus.DevMaster && !a.id.SeenIAqualink {
		a.id.IAqualink = false
		a.id.SeenIAqualink = true
		a.log.Info().Str("id", hexID(a.lastID)).Msg("iAqualink device in use, not using that role")
	}

	switch {
	case a.lastID != 0 && dest == rsbus.DevMaster:
		// the last probe was answered
		a.lastID = 0
	case a.lastID != 0:
		a.claim(a.lastID)
		a.lastID = 0
	}

	if dest == a.first && cmd == rsbus.CmdProbe {
		a.loops++
		a.log.Debug().Int("loops", a.loops).Msg("probe loop complete")
	}

	if (a.found >= 3 && a.gotRev && a.gotSize) || a.loops >= 2 {
		a.finish(false)
		return reply, true
	}

	switch {
	case cmd == rsbus.CmdProbe && candidate(dest):
		a.lastID = dest
		if a.first == 0 {
			a.first = dest
		}
	case rsbus.IsIAqualinkID(dest):
		a.lastID = dest
	}
	return reply, false
}

// candidate reports addresses of a role this gateway can take
func candidate(id byte) bool {
	return rsbus.IsAllButtonID(id) ||
		rsbus.IsRSSerialAdapterID(id) ||
		rsbus.IsAqualinkTouchID(id) ||
		rsbus.IsOneTouchID(id)
}

// claim records a free address for the first role it fits that is still
// open
func (a *Arbiter) claim(id byte) {
	switch {
	case rsbus.IsAllButtonID(id) && a.id.DeviceID == 0:
		a.id.DeviceID = id
		a.found++
		a.log.Info().Str("id", hexID(id)).Msg("found valid unused device id")
	case rsbus.IsRSSerialAdapterID(id) && a.id.RSSAID == 0:
		a.id.RSSAID = id
		a.found++
		a.log.Info().Str("id", hexID(id)).Msg("found valid unused RSSA id")
	case rsbus.IsOneTouchID(id) && a.id.ExtendedID == 0:
		// OneTouch is a last resort and doesn't count towards the roles
		a.id.ExtendedID = id
		a.id.ExtendedProgramming = true
		a.log.Info().Str("id", hexID(id)).Msg("found valid unused extended id")
	case rsbus.IsAqualinkTouchID(id) && !rsbus.IsAqualinkTouchID(a.id.ExtendedID):
		a.id.ExtendedID = id
		a.id.ExtendedProgramming = true
		if !a.id.SeenIAqualink {
			a.id.IAqualink = true
		}
		a.found++
		a.log.Info().Str("id", hexID(id)).Msg("found valid unused extended id")
	}
}

// panelInfo applies a revision or panel type line from a side channel
func (a *Arbiter) panelInfo(text string) {
	if rev, cpu := parseRevision(text); rev != "" {
		a.id.Revision = rev
		if cpu != "" {
			a.id.CPU = cpu
		}
		a.gotRev = true
		a.log.Info().Str("revision", rev).Msg("panel revision")
	}
	if pt, ok := parsePanelType(text); ok {
		a.id.PanelType = pt.name
		a.id.PanelSize = pt.size
		a.id.Combo = pt.combo
		a.id.PDAPanel = pt.pda
		a.gotSize = true
		a.log.Info().Str("panel", pt.name).Int("size", pt.size).Msg("panel type")
	}
}

// finish settles the identity once scanning stops
func (a *Arbiter) finish(exhausted bool) {
	a.done = true
	res := Result{Identity: a.id, Frames: a.frames, Loops: a.loops, Exhausted: exhausted}

	if res.PDAPanel || (a.pdaID != 0 && res.DeviceID == 0) {
		a.log.Warn().Msg("auto configure fell back to PDA, using the most basic mode")
		res.DeviceID = a.pdaID
		res.ExtendedID = 0
		res.RSSAID = 0
		res.IAqualink = false
		res.ExtendedProgramming = false
		res.Degraded = true
	}

	if a.gotRev {
		aqualinkTouch, oneTouch := supports(res.Revision)
		if !aqualinkTouch && rsbus.IsAqualinkTouchID(res.ExtendedID) {
			a.log.Info().Msg("ignoring AqualinkTouch probes due to panel rev")
			res.ExtendedID = 0
			res.IAqualink = false
		}
		if !oneTouch && rsbus.IsOneTouchID(res.ExtendedID) {
			a.log.Info().Msg("ignoring OneTouch probes due to panel rev")
			res.ExtendedID = 0
		}
	}

	a.result = res
	a.log.Info().
		Str("device_id", hexID(res.DeviceID)).
		Str("rssa_device_id", hexID(res.RSSAID)).
		Str("extended_device_id", hexID(res.ExtendedID)).
		Bool("iaqualink", res.IAqualink).
		Int("frames", res.Frames).
		Msg("finished auto configure")
}

// Bus is the part of the transport arbitration needs
type Bus interface {
	ReadFrame(ctx context.Context) (*rsbus.Frame, error)
	SendAck(ctx context.Context, ackType, command byte) error
	SendJandy(ctx context.Context, body []byte) error
}

// Run reads frames from bus until arbitration finishes or ctx is done
func (a *Arbiter) Run(ctx context.Context, bus Bus) (Result, error) {
	for {
		f, err := bus.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return a.Result(), ctx.Err()
			}
			if rsbus.Recoverable(err) {
				continue
			}
			return a.Result(), err
		}
		if f == nil {
			continue
		}

		reply, done := a.Feed(f)
		switch reply.Kind {
		case ReplyAck:
			err = bus.SendAck(ctx, rsbus.AckNormal, 0x00)
		case ReplyCommand:
			err = bus.SendJandy(ctx, reply.Body)
		}
		if err != nil {
			return a.Result(), err
		}
		if done {
			return a.Result(), nil
		}
	}
}
