// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package programmer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/poolbus/pkg/panel"
	"github.com/Thermoquad/poolbus/pkg/rsbus"
)

// ============================================================
// Test Helpers
// ============================================================

// field is a numeric menu field of the fake panel
type field struct {
	label   string
	value   int
	step    int
	suffix  string
	confirm string
}

// fakePanel plays the master: it offers the queue a status frame every
// millisecond and answers each key with the lines a panel would show.
type fakePanel struct {
	q     *Queue
	bcast *panel.Broadcaster

	menus  map[string][]string
	fields map[string]*field
	lights []string
	// noPrompt makes MENU show something other than the menu prompt
	noPrompt bool

	mu     sync.Mutex
	keys   []panel.Key
	list   []string
	idx    int
	active *field
	light  int
}

func newFakePanel(q *Queue, bcast *panel.Broadcaster) *fakePanel {
	return &fakePanel{
		q:      q,
		bcast:  bcast,
		menus:  map[string][]string{},
		fields: map[string]*field{},
		light:  -1,
	}
}

// run offers a status frame every millisecond. The key is taken and
// recorded under f.mu so a finished session always sees its last key in
// pressed.
func (f *fakePanel) run(ctx context.Context) {
	for ctx.Err() == nil {
		f.mu.Lock()
		var lines []string
		k := f.q.Next(rsbus.CmdStatus)
		if k != panel.KeyNone {
			lines = f.press(k)
		}
		f.mu.Unlock()

		if k != panel.KeyNone {
			for _, line := range lines {
				f.bcast.Publish(line)
			}
			f.q.Next(rsbus.CmdMsg)
		}
		time.Sleep(time.Millisecond)
	}
}

func (f *fakePanel) fieldLine() string {
	return fmt.Sprintf("%s %d%s", f.active.label, f.active.value, f.active.suffix)
}

// press returns the lines the panel shows for k. Expects f.mu held.
func (f *fakePanel) press(k panel.Key) []string {
	f.keys = append(f.keys, k)

	switch k {
	case panel.KeyMenu:
		f.list, f.idx, f.active = f.menus["MENU"], -1, nil
		if f.noPrompt {
			return []string{"HELP"}
		}
		return []string{MenuPrompt}
	case panel.KeyRight, panel.KeyLeft:
		switch {
		case f.active != nil:
			if k == panel.KeyRight {
				f.active.value += f.active.step
			} else {
				f.active.value -= f.active.step
			}
			return []string{f.fieldLine()}
		case f.light >= 0 && f.light < len(f.lights)-1:
			f.light++
			return []string{f.lights[f.light] + " ~*"}
		case len(f.list) > 0:
			f.idx = (f.idx + 1) % len(f.list)
			return []string{f.list[f.idx]}
		}
		return []string{"NOTHING"}
	case panel.KeyEnter:
		if f.active != nil {
			line := fmt.Sprintf(f.active.confirm, f.active.value)
			f.active = nil
			return []string{line}
		}
		if f.light >= 0 {
			f.light = -1
			return []string{"LIGHT MODE SET"}
		}
		if f.idx < 0 || f.idx >= len(f.list) {
			return []string{"NOTHING"}
		}
		item := f.list[f.idx]
		if fld, ok := f.fields[item]; ok {
			f.active = fld
			return []string{f.fieldLine()}
		}
		f.list, f.idx = f.menus[item], 0
		if len(f.list) == 0 {
			return []string{"NOTHING"}
		}
		return []string{f.list[0]}
	case panel.KeyAux1:
		if len(f.lights) > 0 {
			f.light = 0
			return []string{f.lights[0] + " ~*"}
		}
	}
	return nil
}

func (f *fakePanel) pressed() []panel.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.keys)
}

type harness struct {
	q     *Queue
	state *panel.State
	bcast *panel.Broadcaster
	panel *fakePanel
	p     *Programmer
}

func testOptions() Options {
	return Options{
		KeyTimeout:  time.Second,
		LineTimeout: 200 * time.Millisecond,
		LightPulse:  time.Millisecond,
	}
}

func newIdleHarness(opts Options) *harness {
	bcast := panel.NewBroadcaster()
	state := panel.NewState(8, true)
	q := NewQueue(QueueOptions{Mark: bcast.Seq})
	return &harness{
		q:     q,
		state: state,
		bcast: bcast,
		panel: newFakePanel(q, bcast),
		p:     New(q, state, bcast, opts),
	}
}

// newHarness wires a programmer to a fake panel that runs until the test
// ends
func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := newIdleHarness(opts)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.panel.run(ctx)
	return h
}

func (h *harness) run(t *testing.T, req Request) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := h.p.Run(ctx, req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func count(keys []panel.Key, k panel.Key) int {
	n := 0
	for _, key := range keys {
		if key == k {
			n++
		}
	}
	return n
}

var setTempMenus = map[string][]string{
	"MENU":     {"HELP", "PROGRAM", "SET TEMP", "SET TIME"},
	"SET TEMP": {"SET POOL TEMP", "SET SPA TEMP"},
}

// ============================================================
// Session Tests
// ============================================================

func TestPoolHeater_StepsToValue(t *testing.T) {
	h := newHarness(t, testOptions())
	h.panel.menus = setTempMenus
	h.panel.fields["SET POOL TEMP"] = &field{label: "POOL", value: 75, step: 1, suffix: "F", confirm: "POOL TEMP IS SET TO %dF"}

	res := h.run(t, Request{Kind: KindPoolHeater, Value: 80})
	if res.State != StateDone || res.Err != nil {
		t.Fatalf("Expected DONE, got %s (%v)", res.State, res.Err)
	}

	want := []panel.Key{
		panel.KeyMenu,
		panel.KeyRight, panel.KeyRight, panel.KeyRight, panel.KeyEnter, // SET TEMP
		panel.KeyEnter, // SET POOL TEMP shown first
		panel.KeyRight, panel.KeyRight, panel.KeyRight, panel.KeyRight, panel.KeyRight,
		panel.KeyEnter,
	}
	if got := h.panel.pressed(); !slices.Equal(got, want) {
		t.Errorf("Expected keys %v, got %v", want, got)
	}
	if h.p.Busy() {
		t.Error("Expected programmer idle after the session")
	}
	if h.state.ProgrammingMode() != panel.NotProgramming {
		t.Error("Expected programming mode cleared")
	}
}

func TestSpaHeater_StepsDown(t *testing.T) {
	h := newHarness(t, testOptions())
	h.panel.menus = setTempMenus
	h.panel.fields["SET SPA TEMP"] = &field{label: "SPA", value: 102, step: 1, suffix: "F", confirm: "SPA TEMP IS SET TO %dF"}

	res := h.run(t, Request{Kind: KindSpaHeater, Value: 100})
	if res.State != StateDone {
		t.Fatalf("Expected DONE, got %s (%v)", res.State, res.Err)
	}
	keys := h.panel.pressed()
	if count(keys, panel.KeyLeft) != 2 {
		t.Errorf("Expected 2 LEFT, got %v", keys)
	}
}

func TestSWG_SetsPercent(t *testing.T) {
	h := newHarness(t, testOptions())
	h.panel.menus = map[string][]string{
		"MENU":         {"SET AQUAPURE"},
		"SET AQUAPURE": {"SET POOL SP", "SET SPA SP"},
	}
	// spa LED is unknown, so the spa set point is used
	h.panel.fields["SET SPA SP"] = &field{label: "SPA SP", value: 20, step: 5, suffix: "%", confirm: "SPA SP IS SET TO %d%%"}

	res := h.run(t, Request{Kind: KindSWGPercent, Value: 40})
	if res.State != StateDone {
		t.Fatalf("Expected DONE, got %s (%v)", res.State, res.Err)
	}
	if got := count(h.panel.pressed(), panel.KeyRight); got != 2+4 {
		t.Errorf("Expected 6 RIGHT (2 menu, 4 field), got %d", got)
	}
	if got := h.state.Snapshot().SWGPercent; got != 40 {
		t.Errorf("Expected SWG percent 40, got %d", got)
	}
}

func TestNumericField_NoConvergence(t *testing.T) {
	h := newHarness(t, testOptions())
	h.panel.menus = map[string][]string{
		"MENU":         {"SET AQUAPURE"},
		"SET AQUAPURE": {"SET SPA SP"},
	}
	h.panel.fields["SET SPA SP"] = &field{label: "SPA SP", value: 40, step: 5, suffix: "%", confirm: "SPA SP IS SET TO %d%%"}

	res := h.run(t, Request{Kind: KindSWGPercent, Value: 42})
	if res.State != StateFailed || !errors.Is(res.Err, ErrNoConvergence) {
		t.Fatalf("Expected FAILED with ErrNoConvergence, got %s (%v)", res.State, res.Err)
	}
	keys := h.panel.pressed()
	if n := count(keys, panel.KeyRight) + count(keys, panel.KeyLeft); n != 1+numericMaxSteps {
		t.Errorf("Expected %d steps, got %d", 1+numericMaxSteps, n)
	}
	if keys[len(keys)-1] != panel.KeyCancel {
		t.Errorf("Expected CANCEL last, got %s", keys[len(keys)-1])
	}
}

func TestSubMenu_Ceiling(t *testing.T) {
	h := newHarness(t, testOptions())
	var items []string
	for i := 0; i < 40; i++ {
		items = append(items, fmt.Sprintf("ITEM %d", i))
	}
	h.panel.menus["MENU"] = items

	res := h.run(t, Request{Kind: KindFreezeProtect, Value: 38})
	if res.State != StateFailed || !errors.Is(res.Err, ErrItemNotFound) {
		t.Fatalf("Expected FAILED with ErrItemNotFound, got %s (%v)", res.State, res.Err)
	}
	keys := h.panel.pressed()
	if got := count(keys, panel.KeyRight); got != subMenuMaxRights {
		t.Errorf("Expected %d RIGHT, got %d", subMenuMaxRights, got)
	}
	if keys[len(keys)-1] != panel.KeyCancel {
		t.Errorf("Expected CANCEL last, got %s", keys[len(keys)-1])
	}
}

func TestMenu_NotFound(t *testing.T) {
	h := newHarness(t, testOptions())
	h.panel.menus = setTempMenus
	h.panel.noPrompt = true

	res := h.run(t, Request{Kind: KindPoolHeater, Value: 80})
	if res.State != StateFailed || !errors.Is(res.Err, ErrMenuNotFound) {
		t.Fatalf("Expected FAILED with ErrMenuNotFound, got %s (%v)", res.State, res.Err)
	}
	keys := h.panel.pressed()
	if got := count(keys, panel.KeyMenu); got != menuTries+1 {
		t.Errorf("Expected %d MENU presses, got %d", menuTries+1, got)
	}
	if keys[len(keys)-1] != panel.KeyCancel {
		t.Errorf("Expected CANCEL last, got %s", keys[len(keys)-1])
	}
}

func TestColorLight_SelectsMode(t *testing.T) {
	h := newHarness(t, testOptions())
	h.panel.lights = []string{"VOODOO LOUNGE", "BLUE SEA", "DEEP BLUE SEA"}

	aux1 := 2
	res := h.run(t, Request{Kind: KindColorLight, Button: aux1, Mode: "blue sea"})
	if res.State != StateDone {
		t.Fatalf("Expected DONE, got %s (%v)", res.State, res.Err)
	}
	want := []panel.Key{panel.KeyAux1, panel.KeyRight, panel.KeyEnter}
	if got := h.panel.pressed(); !slices.Equal(got, want) {
		t.Errorf("Expected keys %v, got %v", want, got)
	}
}

func TestLightProgram_Pulses(t *testing.T) {
	h := newHarness(t, testOptions())

	res := h.run(t, Request{Kind: KindLightProgram, Button: 2, Value: 2})
	if res.State != StateDone {
		t.Fatalf("Expected DONE, got %s (%v)", res.State, res.Err)
	}
	// on, off, on: the light lands on its second program
	if got := count(h.panel.pressed(), panel.KeyAux1); got != 3 {
		t.Errorf("Expected 3 presses, got %d", got)
	}
}

func TestLightProgram_ZeroWhenOff(t *testing.T) {
	h := newHarness(t, testOptions())

	res := h.run(t, Request{Kind: KindLightProgram, Button: 2, Value: 0})
	if res.State != StateDone {
		t.Fatalf("Expected DONE, got %s (%v)", res.State, res.Err)
	}
	if got := h.panel.pressed(); len(got) != 0 {
		t.Errorf("Expected no keys for a light that is off, got %v", got)
	}
}

// ============================================================
// Programmer Tests
// ============================================================

func TestProgrammer_BusyAndCancel(t *testing.T) {
	opts := testOptions()
	opts.KeyTimeout = 2 * time.Second
	// no panel: the first key never leaves the slot
	h := newIdleHarness(opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := h.p.Start(ctx, Request{Kind: KindPoolHeater, Value: 80})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !h.p.Busy() {
		t.Error("Expected programmer busy")
	}
	if h.state.ProgrammingMode() != panel.Programming {
		t.Error("Expected programming mode set")
	}
	if !h.q.Active() {
		t.Error("Expected queue in slot mode")
	}

	if _, err := h.p.Start(context.Background(), Request{Kind: KindSpaHeater, Value: 100}); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}

	cancel()
	select {
	case res := <-ch:
		if res.State != StateCancelled {
			t.Errorf("Expected CANCELLED, got %s (%v)", res.State, res.Err)
		}
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", res.Err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("session did not end")
	}

	if h.p.Busy() || h.q.Active() || h.state.ProgrammingMode() != panel.NotProgramming {
		t.Error("Expected programmer, queue and panel state released")
	}
}

func TestProgrammer_LightMode(t *testing.T) {
	h := newIdleHarness(testOptions())
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := h.p.Start(ctx, Request{Kind: KindDimmer, Button: 2, Value: 2})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h.state.ProgrammingMode() != panel.LightProgramming {
		t.Error("Expected light programming mode")
	}
	cancel()
	<-ch
}

func TestProgrammer_InvalidRequest(t *testing.T) {
	h := newIdleHarness(testOptions())
	tests := []struct {
		name string
		req  Request
	}{
		{"unknown kind", Request{Kind: Kind(99)}},
		{"dimmer level", Request{Kind: KindDimmer, Button: 2, Value: 5}},
		{"light key", Request{Kind: KindColorLight, Button: 40}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.p.Start(context.Background(), tt.req); !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("Expected ErrInvalidRequest, got %v", err)
			}
		})
	}
	if h.p.Busy() {
		t.Error("Expected no session after invalid requests")
	}
}

func TestProgrammer_SendKey(t *testing.T) {
	h := newIdleHarness(testOptions())
	if err := h.p.SendKey(panel.KeyAux1); err != nil {
		t.Fatalf("SendKey: %v", err)
	}
	if h.q.Len() != 1 {
		t.Errorf("Expected 1 key queued, got %d", h.q.Len())
	}
	if k := h.q.Next(rsbus.CmdStatus); k != panel.KeyAux1 {
		t.Errorf("Expected AUX1, got %s", k)
	}
}
