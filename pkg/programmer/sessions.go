// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package programmer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/poolbus/pkg/panel"
)

// Number of color modes a light steps through before giving up
const lightColorOptions = 19

const selectDevicePrompt = "SELECT DEVICE TO REVIEW or PRESS ENTER TO END"

// reviewKeys are the keys whose programs can be reviewed. AUX6 and AUX7
// end programming mode on the panel.
var reviewKeys = []panel.Key{panel.KeyPump, panel.KeySpa, panel.KeyAux1, panel.KeyAux2, panel.KeyAux3, panel.KeyAux4, panel.KeyAux5}

// run executes the session for req
func (s *session) run(ctx context.Context, req Request) error {
	switch req.Kind {
	case KindPoolHeater:
		return s.setHeater(ctx, req.Value, false)
	case KindSpaHeater:
		return s.setHeater(ctx, req.Value, true)
	case KindFreezeProtect:
		return s.setFreeze(ctx, req.Value)
	case KindSWGPercent:
		return s.setSWG(ctx, req.Value)
	case KindSetTime:
		return s.setTime(ctx, req.Time)
	case KindBoost:
		return s.setBoost(ctx, req.Value != 0)
	case KindAuxLabels:
		return s.review(ctx, "REVIEW", "AUX LABELS", 5)
	case KindDiagnostics:
		return s.review(ctx, "SYSTEM SETUP", "DIAGNOSTICS", 8)
	case KindReadHeaterSetPoints:
		return s.readUntil(ctx, "TEMP SET", "MAINTAIN TEMP IS", 5)
	case KindReadFreezeProtect:
		return s.readUntil(ctx, "FRZ PROTECT", panel.MsgFreezeSet, 6)
	case KindReadPrograms:
		return s.readPrograms(ctx)
	case KindColorLight:
		return s.setLightMode(ctx, req.Button, req.Mode, lightColorOptions)
	case KindDimmer:
		mode := ""
		if req.Value > 0 {
			mode = DimmerLevels[req.Value-1]
		}
		return s.setLightMode(ctx, req.Button, mode, 8)
	case KindLightProgram:
		return s.setLightProgram(ctx, req.Button, req.Value)
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, req.Kind)
}

// setHeater programs the pool or spa heater set point. Pool or spa only
// panels call the two set points TEMP1 and TEMP2 and show a warning line
// before the value.
func (s *session) setHeater(ctx context.Context, value int, spa bool) error {
	single := s.state.Snapshot().SingleDevice
	field, item, confirm := "POOL", "SET POOL TEMP", panel.MsgPoolTempSet
	switch {
	case spa && single:
		field, item, confirm = "TEMP2", "SET TEMP2", panel.MsgSpaTempSet
	case spa:
		field, item, confirm = "SPA", "SET SPA TEMP", panel.MsgSpaTempSet
	case single:
		field, item = "TEMP1", "SET TEMP1"
	}

	if err := s.selectMenuItem(ctx, "SET TEMP"); err != nil {
		return err
	}
	if err := s.selectSubMenuItem(ctx, item); err != nil {
		return err
	}
	if single {
		// TEMP1 MUST BE SET HIGHER THAN TEMP2
		if _, err := s.waitFor(ctx, 5, "MUST BE SET"); err != nil {
			return err
		}
		if err := s.sendKey(ctx, panel.KeyLeft); err != nil {
			return err
		}
	}
	if err := s.setNumericField(ctx, field, value, 1); err != nil {
		return err
	}
	_, err := s.waitFor(ctx, 1, confirm)
	return err
}

func (s *session) setFreeze(ctx context.Context, value int) error {
	if err := s.selectMenuItem(ctx, "SYSTEM SETUP"); err != nil {
		return err
	}
	if err := s.selectSubMenuItem(ctx, "FRZ PROTECT"); err != nil {
		return err
	}
	if err := s.selectSubMenuItem(ctx, "TEMP SETTING"); err != nil {
		return err
	}
	if err := s.setNumericField(ctx, "FRZ", value, 1); err != nil {
		return err
	}
	_, err := s.waitFor(ctx, 3, panel.MsgFreezeSet)
	return err
}

// setSWG programs the chlorinator output for the body that is running
func (s *session) setSWG(ctx context.Context, value int) error {
	if err := s.selectMenuItem(ctx, "SET AQUAPURE"); err != nil {
		return err
	}
	item, field := "SET POOL SP", "POOL SP"
	if _, led, _ := s.state.Button(panel.SpaIndex); led != panel.LEDOff {
		item, field = "SET SPA SP", "SPA SP"
	}
	if err := s.selectSubMenuItem(ctx, item); err != nil {
		return err
	}
	if err := s.setNumericField(ctx, field, value, 5); err != nil {
		return err
	}
	// Percent lines are ignored while programming, publish the new value now
	s.state.SetSWGPercent(value)

	// Pool set to 20%, POOL SP IS SET TO 20%
	if _, err := s.waitFor(ctx, 1, "SET TO"); err != nil {
		return err
	}
	return s.waitLines(ctx, 1)
}

// setTime programs the panel clock. Seconds can't be set so the clock is
// set half a minute ahead.
func (s *session) setTime(ctx context.Context, t time.Time) error {
	if t.IsZero() {
		t = s.opts.Now()
	}
	t = t.Add(30 * time.Second)

	if err := s.selectMenuItem(ctx, "SET TIME"); err != nil {
		return err
	}
	fields := []struct {
		label string
		value int
	}{
		{"YEAR", t.Year()},
		{"MONTH", int(t.Month())},
		{"DAY", t.Day()},
	}
	for _, f := range fields {
		if err := s.setNumericField(ctx, f.label, f.value, 1); err != nil {
			return err
		}
	}
	if err := s.selectSubMenuItem(ctx, hourLabel(t.Hour())); err != nil {
		return err
	}
	if err := s.setNumericField(ctx, "MINUTE", t.Minute(), 1); err != nil {
		return err
	}
	return s.sendKey(ctx, panel.KeyEnter)
}

// hourLabel formats an hour the way the SET TIME menu shows it
func hourLabel(h int) string {
	switch {
	case h == 0:
		return "HOUR 12 AM"
	case h < 12:
		return fmt.Sprintf("HOUR %d AM", h)
	case h == 12:
		return "HOUR 12 PM"
	default:
		return fmt.Sprintf("HOUR %d PM", h-12)
	}
}

func (s *session) setBoost(ctx context.Context, on bool) error {
	if err := s.selectMenuItem(ctx, "BOOST POOL"); err != nil {
		return err
	}
	if on {
		if _, err := s.waitFor(ctx, 5, "TO START BOOST POOL"); err != nil {
			return err
		}
		if err := s.sendKey(ctx, panel.KeyEnter); err != nil {
			return err
		}
		return s.waitLines(ctx, 1)
	}

	// The stop entry shows up out of order, press ENTER as soon as it is seen
	const stop = "STOP BOOST POOL"
	for i := 0; i < 5; i++ {
		found, err := s.waitFor(ctx, 1, stop)
		if err != nil {
			return err
		}
		if found {
			if err := s.sendKey(ctx, panel.KeyEnter); err != nil {
				return err
			}
			s.state.SetBoost(false)
			return s.waitLines(ctx, 1)
		}
		if err := s.sendKey(ctx, panel.KeyRight); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %q", ErrItemNotFound, stop)
}

// review enters a menu that lists information and lets n lines go by so
// the decoder can pick them up
func (s *session) review(ctx context.Context, menu, item string, n int) error {
	if err := s.selectMenuItem(ctx, menu); err != nil {
		return err
	}
	if err := s.selectSubMenuItem(ctx, item); err != nil {
		return err
	}
	return s.waitLines(ctx, n)
}

// readUntil enters a REVIEW item and waits for its last line
func (s *session) readUntil(ctx context.Context, item, last string, n int) error {
	if err := s.selectMenuItem(ctx, "REVIEW"); err != nil {
		return err
	}
	if err := s.selectSubMenuItem(ctx, item); err != nil {
		return err
	}
	found, err := s.waitFor(ctx, n, last)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %q", ErrNoReply, last)
	}
	return nil
}

// readPrograms walks the program review for every key. The decoder logs
// the program lines as they go by.
func (s *session) readPrograms(ctx context.Context) error {
	if err := s.selectMenuItem(ctx, "REVIEW"); err != nil {
		return err
	}
	if err := s.selectSubMenuItem(ctx, "PROGRAMS"); err != nil {
		return err
	}
	for _, k := range reviewKeys {
		found, err := s.waitFor(ctx, 7, selectDevicePrompt)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %q", ErrNoReply, selectDevicePrompt)
		}
		if err := s.sendKey(ctx, k); err != nil {
			return err
		}
		found, err = s.waitFor(ctx, 7, "NOT SET", "TURNS ON")
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: program for %s", ErrNoReply, k)
		}
	}

	found, err := s.waitFor(ctx, 6, selectDevicePrompt)
	if err != nil {
		return err
	}
	s.phase = StateConfirm
	if found {
		return s.sendKey(ctx, panel.KeyEnter)
	}
	return s.sendKey(ctx, panel.KeyCancel)
}

// setLightMode turns a light on and steps through the modes it offers
// until mode is shown, then selects it. An empty mode selects the first
// mode shown. Mode lines end in ~*.
func (s *session) setLightMode(ctx context.Context, index int, mode string, options int) error {
	b, led, _ := s.state.Button(index)

	// programming starts with the light off
	if led == panel.LEDOn {
		s.log.Info().Str("light", b.Label).Msg("light on, turning off")
		if err := s.sendKey(ctx, b.Code); err != nil {
			return err
		}
		found, err := s.waitFor(ctx, 5, "OFF")
		if err != nil {
			return err
		}
		if !found {
			s.log.Error().Str("light", b.Label).Msg("light programming didn't receive OFF message")
		}
	}

	if err := s.sendKey(ctx, b.Code); err != nil {
		return err
	}
	wait := 12
	for i := 0; i <= options; i++ {
		found, err := s.waitFor(ctx, wait, "~*")
		if err != nil {
			return err
		}
		if !found {
			s.log.Error().Str("light", b.Label).Msg("light programming didn't receive mode message")
		}
		// repeats of the previous line come first, later modes need fewer
		wait = 3

		if mode == "" || matchLine(s.line, "^"+mode) {
			s.log.Info().Str("light", b.Label).Str("mode", strings.TrimSpace(strings.TrimSuffix(s.line, "~*"))).Msg("light mode selected")
			s.phase = StateConfirm
			return s.sendKey(ctx, panel.KeyEnter)
		}
		if err := s.sendKey(ctx, panel.KeyRight); err != nil {
			return err
		}
		// both the old and the new line end in ~*, let the old one go by
		if err := s.waitLines(ctx, 1); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: light mode %q", ErrItemNotFound, mode)
}

// setLightProgram selects a program on a light that changes mode when its
// power is cycled. pulses is the program number, 0 turns the light off.
func (s *session) setLightProgram(ctx context.Context, index, pulses int) error {
	b, led, _ := s.state.Button(index)
	press := func() error { return s.sendKey(ctx, b.Code) }

	if pulses <= 0 {
		if led == panel.LEDOn {
			s.log.Info().Str("light", b.Label).Msg("light program 0, turning off")
			return press()
		}
		s.log.Info().Str("light", b.Label).Msg("light program 0 and light is off, nothing to do")
		return nil
	}

	s.log.Info().Str("light", b.Label).Int("program", pulses).Msg("light programming")

	// the sequence starts from a light that has been on for a while and
	// then off long enough to reset
	if led != panel.LEDOn && s.opts.LightInitialOn > 0 {
		if err := press(); err != nil {
			return err
		}
		if err := sleep(ctx, s.opts.LightInitialOn); err != nil {
			return err
		}
	}
	if s.opts.LightInitialOff > 0 {
		if err := press(); err != nil {
			return err
		}
		if err := sleep(ctx, s.opts.LightInitialOff); err != nil {
			return err
		}
	}

	if s.opts.LightPulse > 0 {
		for i := 1; i < pulses*2; i++ {
			if err := press(); err != nil {
				return err
			}
			if err := sleep(ctx, s.opts.LightPulse); err != nil {
				return err
			}
		}
		return nil
	}

	const settle = 500 * time.Millisecond
	for i := 1; i < pulses; i++ {
		if err := press(); err != nil {
			return err
		}
		if _, err := s.waitForButtonState(ctx, index, panel.LEDOn, 2); err != nil {
			return err
		}
		if err := sleep(ctx, settle); err != nil {
			return err
		}
		if err := press(); err != nil {
			return err
		}
		if _, err := s.waitForButtonState(ctx, index, panel.LEDOff, 2); err != nil {
			return err
		}
		if err := sleep(ctx, settle); err != nil {
			return err
		}
	}
	return press()
}
