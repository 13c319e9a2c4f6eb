// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package programmer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/poolbus/pkg/panel"
	"github.com/rs/zerolog"
)

// Menu navigation limits
const (
	menuTries        = 3
	menuPromptWait   = 5
	subMenuMaxRights = 28
	numericFieldWait = 4
	numericMaxSteps  = 100
)

// MenuPrompt is the line the panel shows once MENU has been accepted
const MenuPrompt = "PRESS ENTER* TO SELECT"

// SessionState is the phase of a programming session
type SessionState int

const (
	StateMenuSearch SessionState = iota
	StateSubMenuSearch
	StateNumericAdjust
	StateConfirm
	StateDone
	StateFailed
	StateCancelled
)

func (s SessionState) String() string {
	switch s {
	case StateMenuSearch:
		return "MENU_SEARCH"
	case StateSubMenuSearch:
		return "SUBMENU_SEARCH"
	case StateNumericAdjust:
		return "NUMERIC_ADJUST"
	case StateConfirm:
		return "CONFIRM"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// session drives the keypad through menus. It sees the panel as a stream
// of display lines: line is the current one, every later line comes from
// the broadcaster. Sending a key makes the current line stale so that
// waits only match what the panel says in reply.
type session struct {
	id    string
	q     *Queue
	state *panel.State
	bcast *panel.Broadcaster
	opts  Options
	log   zerolog.Logger

	phase SessionState
	mark  uint64
	line  string
	fresh bool
}

// sendKey puts a key in the slot and waits for the bus to take it
func (s *session) sendKey(ctx context.Context, k panel.Key) error {
	if err := s.q.Put(ctx, k, s.opts.KeyTimeout); err != nil {
		return err
	}
	mark, err := s.q.WaitSlotEmpty(ctx, s.opts.KeyTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrKeyTimeout, k)
	}
	s.log.Debug().Stringer("key", k).Str("phase", s.phase.String()).Msg("key sent")
	s.mark = mark
	s.fresh = false
	return nil
}

// next blocks for the next display line. It returns false when no line
// arrives within the line timeout.
func (s *session) next(ctx context.Context) (bool, error) {
	wctx, cancel := context.WithTimeout(ctx, s.opts.LineTimeout)
	defer cancel()
	line, seq, err := s.bcast.Next(wctx, s.mark)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	s.mark = seq
	s.line = line
	s.fresh = true
	return true, nil
}

// matchLine is a case-insensitive substring test. A leading ^ anchors the
// target to the start of the line.
func matchLine(line, target string) bool {
	if rest, ok := strings.CutPrefix(target, "^"); ok {
		return len(line) >= len(rest) && strings.EqualFold(line[:len(rest)], rest)
	}
	return strings.Contains(strings.ToUpper(line), strings.ToUpper(target))
}

// waitFor checks the current line and then up to n new lines for any of
// the targets
func (s *session) waitFor(ctx context.Context, n int, targets ...string) (bool, error) {
	match := func() bool {
		for _, t := range targets {
			if matchLine(s.line, t) {
				return true
			}
		}
		return false
	}
	if s.fresh && match() {
		return true, nil
	}
	for i := 1; i <= n; i++ {
		ok, err := s.next(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			s.log.Debug().Strs("targets", targets).Msg("no line from panel")
			return false, nil
		}
		s.log.Trace().Int("loop", i).Int("of", n).Strs("targets", targets).Str("line", s.line).Msg("waiting")
		if match() {
			return true, nil
		}
	}
	s.log.Debug().Strs("targets", targets).Str("line", s.line).Msg("did not find")
	return false, nil
}

// waitLines lets n display lines go by
func (s *session) waitLines(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		ok, err := s.next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	return nil
}

// waitForButtonState waits up to n wake-ups for a key LED to reach st
func (s *session) waitForButtonState(ctx context.Context, index int, st panel.LEDState, n int) (bool, error) {
	for i := 0; ; i++ {
		if _, led, _ := s.state.Button(index); led == st {
			return true, nil
		}
		if i >= n {
			return false, nil
		}
		ok, err := s.next(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
}

// selectMenuItem opens the menu and enters item
func (s *session) selectMenuItem(ctx context.Context, item string) error {
	s.phase = StateMenuSearch
	found := false
	for try := 0; !found && try <= menuTries; try++ {
		if err := s.sendKey(ctx, panel.KeyMenu); err != nil {
			return err
		}
		var err error
		if found, err = s.waitFor(ctx, menuPromptWait, MenuPrompt); err != nil {
			return err
		}
	}
	if !found {
		return fmt.Errorf("%w: looking for %q", ErrMenuNotFound, item)
	}
	return s.selectSubMenuItem(ctx, item)
}

// selectSubMenuItem steps RIGHT through a menu until item is displayed and
// enters it
func (s *session) selectSubMenuItem(ctx context.Context, item string) error {
	s.phase = StateSubMenuSearch
	for i := 0; !matchLine(s.line, item) && i < subMenuMaxRights; i++ {
		s.log.Debug().Int("loop", i+1).Str("item", item).Str("line", s.line).Msg("find item in menu")
		if err := s.sendKey(ctx, panel.KeyRight); err != nil {
			return err
		}
		if _, err := s.waitFor(ctx, 1, item); err != nil {
			return err
		}
	}
	if !matchLine(s.line, item) {
		return fmt.Errorf("%w: %q", ErrItemNotFound, item)
	}
	if err := s.sendKey(ctx, panel.KeyEnter); err != nil {
		return err
	}
	return s.waitLines(ctx, 1)
}

// setNumericField moves a numeric field to value in steps and confirms it
// with ENTER. Each key is followed by a wait for the line the panel should
// show next.
func (s *session) setNumericField(ctx context.Context, label string, value, step int) error {
	s.phase = StateNumericAdjust
	s.log.Debug().Str("field", label).Int("value", value).Msg("setting numeric field")
	search := "^" + label
	current := -1
	for i := 0; ; i++ {
		found, err := s.waitFor(ctx, numericFieldWait, search)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: numeric field %q", ErrItemNotFound, label)
		}
		if len(s.line) >= len(label) {
			if n, ok := firstNumber(s.line[len(label):]); ok {
				current = n
			}
		}
		s.log.Debug().Str("field", label).Int("current", current).Int("target", value).Msg("numeric field")

		if i >= numericMaxSteps {
			return fmt.Errorf("%w: %q stuck at %d, wanted %d", ErrNoConvergence, label, current, value)
		}

		var key panel.Key
		switch {
		case value > current:
			search = fmt.Sprintf("%s %d", label, current+step)
			key = panel.KeyRight
		case value < current:
			search = fmt.Sprintf("%s %d", label, current-step)
			key = panel.KeyLeft
		default:
			s.phase = StateConfirm
			return s.sendKey(ctx, panel.KeyEnter)
		}
		if err := s.sendKey(ctx, key); err != nil {
			return err
		}
	}
}

// firstNumber returns the first run of digits in s
func firstNumber(s string) (int, bool) {
	start := strings.IndexAny(s, "0123456789")
	if start < 0 {
		return 0, false
	}
	n := 0
	for i := start; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n, true
}

// cancelMenu backs out of whatever menu the panel is showing. It runs
// even when ctx is already cancelled.
func (s *session) cancelMenu(ctx context.Context) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.KeyTimeout)
	defer cancel()
	if err := s.sendKey(cctx, panel.KeyCancel); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		s.log.Warn().Err(err).Msg("could not cancel menu")
	}
}

// sleep pauses for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
