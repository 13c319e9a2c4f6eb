// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package gateway runs the bus loop of the emulated keypad. It feeds every
// frame addressed to the keypad through the panel decoder and answers it
// with an ack carrying the next queued key.
package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/poolbus/pkg/panel"
	"github.com/Thermoquad/poolbus/pkg/programmer"
	"github.com/Thermoquad/poolbus/pkg/rsbus"
	"github.com/rs/zerolog"
)

// DefaultMaxDrift is how far the panel clock may be off before it is set
const DefaultMaxDrift = 90 * time.Second

// Bus is the part of the transport the gateway needs
type Bus interface {
	ReadFrame(ctx context.Context) (*rsbus.Frame, error)
	SendAck(ctx context.Context, ackType, command byte) error
}

// Options configures a Gateway
type Options struct {
	DeviceID  byte
	PanelSize int
	Combo     bool

	OverrideFreezeProtect bool
	UsePanelAuxLabels     bool
	// ReadOnStartup reads set points once the panel revision is known
	ReadOnStartup bool
	// SyncPanelTime sets the panel clock when it drifts more than MaxDrift
	SyncPanelTime bool
	MaxDrift      time.Duration

	Queue      programmer.QueueOptions
	Programmer programmer.Options

	// OnFrame, when set, sees every frame read from the bus
	OnFrame func(f *rsbus.Frame)

	Now    func() time.Time
	Logger *zerolog.Logger
}

// Gateway owns the shared panel state and the key queue
type Gateway struct {
	bus  Bus
	opts Options
	log  zerolog.Logger

	state   *panel.State
	bcast   *panel.Broadcaster
	decoder *panel.Decoder
	queue   *programmer.Queue
	prog    *programmer.Programmer

	mu    sync.Mutex
	stats *rsbus.Statistics

	runCtx   context.Context
	syncing  atomic.Bool
	sessions sync.WaitGroup
}

// New creates a gateway reading from bus
func New(bus Bus, opts Options) *Gateway {
	if opts.MaxDrift <= 0 {
		opts.MaxDrift = DefaultMaxDrift
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	g := &Gateway{
		bus:    bus,
		opts:   opts,
		log:    log,
		state:  panel.NewState(opts.PanelSize, opts.Combo),
		bcast:  panel.NewBroadcaster(),
		stats:  rsbus.NewStatistics(),
		runCtx: context.Background(),
	}

	qopts := opts.Queue
	qopts.Mark = g.bcast.Seq
	if qopts.Logger == nil {
		qopts.Logger = opts.Logger
	}
	g.queue = programmer.NewQueue(qopts)

	popts := opts.Programmer
	if popts.Logger == nil {
		popts.Logger = opts.Logger
	}
	if popts.Now == nil {
		popts.Now = opts.Now
	}
	g.prog = programmer.New(g.queue, g.state, g.bcast, popts)

	g.decoder = panel.NewDecoder(g.state, g.bcast, panel.Options{
		OverrideFreezeProtect: opts.OverrideFreezeProtect,
		UsePanelAuxLabels:     opts.UsePanelAuxLabels,
		SendKey:               g.pushKey,
		OnFirstRevision:       g.firstRevision,
		OnTime:                g.panelTime,
		Logger:                opts.Logger,
	})
	return g
}

// State returns the shared panel state
func (g *Gateway) State() *panel.State { return g.state }

// Lines returns the display line broadcaster
func (g *Gateway) Lines() *panel.Broadcaster { return g.bcast }

// Programmer returns the session runner
func (g *Gateway) Programmer() *programmer.Programmer { return g.prog }

// SendKey queues a keypress
func (g *Gateway) SendKey(k panel.Key) error {
	return g.prog.SendKey(k)
}

// Statistics returns a copy of the frame counters
func (g *Gateway) Statistics() rsbus.Statistics {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stats.CalculateRates()
	return *g.stats
}

// Run reads frames until ctx is done or the bus fails. Sessions started
// from the bus loop are waited for before Run returns.
func (g *Gateway) Run(ctx context.Context) error {
	g.runCtx = ctx
	defer g.sessions.Wait()

	g.log.Info().Str("id", hexID(g.opts.DeviceID)).Int("panel_size", g.opts.PanelSize).Msg("gateway started")
	for {
		f, err := g.bus.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if rsbus.Recoverable(err) {
				g.mu.Lock()
				g.stats.Update(nil, err, nil)
				g.mu.Unlock()
				continue
			}
			return err
		}
		if f == nil {
			continue
		}
		g.handle(ctx, f)
	}
}

// handle processes one frame on the bus goroutine
func (g *Gateway) handle(ctx context.Context, f *rsbus.Frame) {
	g.mu.Lock()
	g.stats.Update(f, nil, rsbus.ValidateFrame(f))
	g.mu.Unlock()
	if g.opts.OnFrame != nil {
		g.opts.OnFrame(f)
	}

	if !f.IsJandy() || f.Dest() != g.opts.DeviceID {
		return
	}

	g.decoder.HandleFrame(f)

	key := g.queue.Next(f.Command())
	if key != panel.KeyNone {
		g.log.Debug().Stringer("key", key).Msg("sending key")
	}
	if err := g.bus.SendAck(ctx, rsbus.AckNormal, byte(key)); err != nil && ctx.Err() == nil {
		g.log.Error().Err(err).Msg("failed to send ack")
	}
}

// pushKey queues a key the decoder wants pressed
func (g *Gateway) pushKey(k panel.Key) {
	if err := g.queue.Push(k); err != nil {
		g.log.Warn().Err(err).Stringer("key", k).Msg("dropped key")
	}
}

// firstRevision runs the startup reads once the panel has said who it is
func (g *Gateway) firstRevision() {
	var kinds []programmer.Kind
	if g.opts.ReadOnStartup {
		kinds = append(kinds, programmer.KindReadHeaterSetPoints, programmer.KindReadFreezeProtect)
	}
	if g.opts.UsePanelAuxLabels {
		kinds = append(kinds, programmer.KindAuxLabels)
	}
	if len(kinds) == 0 {
		return
	}
	g.spawn(kinds...)
}

// panelTime compares the panel clock with ours
func (g *Gateway) panelTime(date, tm string) {
	if !g.opts.SyncPanelTime {
		return
	}
	now := g.opts.Now()
	t, err := ParsePanelTime(date, tm, now.Location())
	if err != nil {
		g.log.Debug().Err(err).Msg("can't read panel time")
		return
	}
	drift := now.Sub(t)
	if drift < 0 {
		drift = -drift
	}
	if drift <= g.opts.MaxDrift {
		return
	}
	if !g.syncing.CompareAndSwap(false, true) {
		return
	}
	g.log.Info().Time("panel", t).Dur("drift", drift).Msg("panel time is off, setting it")
	g.spawn(programmer.KindSetTime)
}

// spawn runs sessions one after another on their own goroutine
func (g *Gateway) spawn(kinds ...programmer.Kind) {
	ctx := g.runCtx
	g.sessions.Add(1)
	go func() {
		defer g.sessions.Done()
		for _, k := range kinds {
			res, err := g.prog.Run(ctx, programmer.Request{Kind: k})
			if k == programmer.KindSetTime {
				g.syncing.Store(false)
			}
			switch {
			case errors.Is(err, programmer.ErrBusy):
				g.log.Warn().Stringer("kind", k).Msg("programmer busy, skipping")
			case err != nil:
				g.log.Error().Err(err).Stringer("kind", k).Msg("session not started")
			case res.Err != nil:
				g.log.Warn().Err(res.Err).Stringer("kind", k).Msg("session failed")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
}
