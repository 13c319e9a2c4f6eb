// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package programmer queues keypresses for the panel and runs programming
// sessions that drive the keypad menus.
package programmer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Thermoquad/poolbus/pkg/panel"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options configures a Programmer
type Options struct {
	// KeyTimeout bounds the wait for a key to leave the slot
	KeyTimeout time.Duration
	// LineTimeout bounds the wait for a single display line
	LineTimeout time.Duration

	// Power cycle light programming timings
	LightInitialOn  time.Duration
	LightInitialOff time.Duration
	// LightPulse is the delay between presses. Zero waits for the key LED
	// to follow each press instead.
	LightPulse time.Duration

	Now    func() time.Time
	Logger *zerolog.Logger
}

func (o *Options) setDefaults() {
	if o.KeyTimeout <= 0 {
		o.KeyTimeout = 5 * time.Second
	}
	if o.LineTimeout <= 0 {
		o.LineTimeout = 10 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Result is the outcome of a session
type Result struct {
	ID       string
	Kind     Kind
	State    SessionState
	Err      error
	Started  time.Time
	Finished time.Time
}

// Programmer runs one programming session at a time
type Programmer struct {
	q     *Queue
	state *panel.State
	bcast *panel.Broadcaster
	opts  Options
	log   zerolog.Logger

	mu     sync.Mutex
	active string
}

// New creates a programmer sending keys through q
func New(q *Queue, state *panel.State, bcast *panel.Broadcaster, opts Options) *Programmer {
	opts.setDefaults()
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Programmer{q: q, state: state, bcast: bcast, opts: opts, log: log}
}

// SendKey queues a single keypress outside of any session
func (p *Programmer) SendKey(k panel.Key) error {
	if err := p.q.Push(k); err != nil {
		return err
	}
	p.log.Info().Stringer("key", k).Msg("queued key")
	return nil
}

// Busy reports whether a session is running
func (p *Programmer) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active != ""
}

// Start launches a session on its own goroutine. The result is delivered
// on the returned channel once the session ends.
func (p *Programmer) Start(ctx context.Context, req Request) (<-chan Result, error) {
	req, err := req.validate(p.state.Snapshot())
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.active != "" {
		p.mu.Unlock()
		return nil, ErrBusy
	}
	id := uuid.NewString()
	p.active = id
	p.mu.Unlock()

	log := p.log.With().Str("session", id).Stringer("kind", req.Kind).Logger()
	s := &session{
		id:    id,
		q:     p.q,
		state: p.state,
		bcast: p.bcast,
		opts:  p.opts,
		log:   log,
		mark:  p.bcast.Seq(),
		line:  p.bcast.Current(),
		fresh: true,
	}

	mode := panel.Programming
	if req.Kind.light() {
		mode = panel.LightProgramming
	}
	p.state.SetProgrammingMode(mode)
	p.q.SetActive(true)

	out := make(chan Result, 1)
	go func() {
		res := Result{ID: id, Kind: req.Kind, Started: time.Now()}
		log.Info().Int("value", req.Value).Msg("programming session started")

		err := s.run(ctx, req)
		switch {
		case err == nil:
			res.State = StateDone
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			res.State = StateCancelled
			s.cancelMenu(ctx)
		default:
			res.State = StateFailed
			s.cancelMenu(ctx)
		}
		res.Err = err
		res.Finished = time.Now()

		p.q.SetActive(false)
		p.state.SetProgrammingMode(panel.NotProgramming)
		p.mu.Lock()
		p.active = ""
		p.mu.Unlock()

		ev := log.Info()
		if err != nil {
			ev = log.Error().Err(err)
		}
		ev.Str("state", res.State.String()).Dur("took", res.Finished.Sub(res.Started)).Msg("programming session finished")
		out <- res
		close(out)
	}()
	return out, nil
}

// Run starts a session and waits for its result
func (p *Programmer) Run(ctx context.Context, req Request) (Result, error) {
	ch, err := p.Start(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return <-ch, nil
}
