// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package programmer

import (
	"context"
	"sync"
	"time"

	"github.com/Thermoquad/poolbus/pkg/panel"
	"github.com/Thermoquad/poolbus/pkg/rsbus"
	"github.com/rs/zerolog"
)

const (
	// DefaultQueueCapacity is the number of unsent keys the queue holds
	DefaultQueueCapacity = 20
	// DefaultResendThreshold is the number of frames without a text reply
	// after which the last navigation key is sent again
	DefaultResendThreshold = 3
)

// QueueOptions configures a Queue
type QueueOptions struct {
	Capacity        int
	ResendThreshold int
	// Mark returns the display line sequence number. The queue records it
	// when a programming key is handed to the bus so the session only
	// counts lines the panel sent in reply.
	Mark   func() uint64
	Logger *zerolog.Logger
}

// Queue holds keys waiting to be sent to the master. Outside programming
// keys come from a bounded FIFO; during a session they come from a single
// slot owned by the session. Next is called from the bus goroutine, the
// rest from anywhere.
type Queue struct {
	mu        sync.Mutex
	fifo      []panel.Key
	capacity  int
	threshold int
	mark      func() uint64
	log       zerolog.Logger

	active    bool
	slot      panel.Key
	slotEmpty chan struct{}
	slotMark  uint64

	expect   int
	lastSent panel.Key
}

// NewQueue creates an empty queue
func NewQueue(opts QueueOptions) *Queue {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultQueueCapacity
	}
	if opts.ResendThreshold <= 0 {
		opts.ResendThreshold = DefaultResendThreshold
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	empty := make(chan struct{})
	close(empty)
	return &Queue{
		capacity:  opts.Capacity,
		threshold: opts.ResendThreshold,
		mark:      opts.Mark,
		log:       log,
		slotEmpty: empty,
	}
}

// Push appends a key to the FIFO
func (q *Queue) Push(k panel.Key) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.fifo) >= q.capacity {
		q.log.Error().Stringer("key", k).Msg("key queue overflow, too many unsent keys")
		return ErrQueueFull
	}
	q.fifo = append(q.fifo, k)
	return nil
}

// Len returns the number of keys in the FIFO
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.fifo)
}

// SetActive switches between FIFO and slot dispatch. Leaving programming
// drops any key still in the slot.
func (q *Queue) SetActive(active bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.active = active
	if !active {
		q.clearSlot()
	}
}

// Active reports whether a session owns the keypad
func (q *Queue) Active() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Put places a key in the programming slot. A key still waiting there is
// given timeout to leave before it is overwritten.
func (q *Queue) Put(ctx context.Context, k panel.Key, timeout time.Duration) error {
	if _, err := q.WaitSlotEmpty(ctx, timeout); err != nil {
		if ctx.Err() != nil {
			return err
		}
		q.log.Warn().Stringer("key", k).Msg("programming slot did not empty, overwriting")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.slot == panel.KeyNone {
		q.slotEmpty = make(chan struct{})
	}
	q.slot = k
	q.log.Debug().Stringer("key", k).Msg("queued key (programming)")
	return nil
}

// WaitSlotEmpty blocks until the slot has been handed to the bus and
// returns the display line sequence number at that moment
func (q *Queue) WaitSlotEmpty(ctx context.Context, timeout time.Duration) (uint64, error) {
	q.mu.Lock()
	ch := q.slotEmpty
	q.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		q.mu.Lock()
		defer q.mu.Unlock()
		return q.slotMark, nil
	case <-timer.C:
		return 0, ErrKeyTimeout
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Next picks the key to put in the ack for a frame addressed to the
// keypad. lastCmd is the command of that frame. At most one key is
// returned per frame and keys only go out on status frames.
func (q *Queue) Next(lastCmd byte) panel.Key {
	q.mu.Lock()
	defer q.mu.Unlock()

	textReply := lastCmd == rsbus.CmdMsg || lastCmd == rsbus.CmdMsgLong || lastCmd == rsbus.CmdMsgLoopStart
	switch {
	case q.expect > 0 && textReply:
		q.expect = 0
	case q.expect > q.threshold:
		q.log.Error().Stringer("key", q.lastSent).Msg("no reply to last key, resending")
		q.expect = 0
		return q.lastSent
	case q.expect > 0:
		q.expect++
	}

	key := panel.KeyNone
	switch {
	case q.active:
		if q.slot != panel.KeyNone && lastCmd == rsbus.CmdStatus {
			key = q.slot
			if q.mark != nil {
				q.slotMark = q.mark()
			}
			q.clearSlot()
			q.log.Debug().Stringer("key", key).Msg("send key (programming)")
		}
	case len(q.fifo) > 0 && lastCmd == rsbus.CmdStatus:
		key = q.fifo[0]
		q.fifo = q.fifo[1:]
		q.log.Debug().Stringer("key", key).Msg("send key")
	}

	if key.IsNavigation() {
		q.expect = 1
		q.lastSent = key
	}
	return key
}

// clearSlot empties the slot and releases waiters. Expects q.mu held.
func (q *Queue) clearSlot() {
	q.slot = panel.KeyNone
	select {
	case <-q.slotEmpty:
	default:
		close(q.slotEmpty)
	}
}
