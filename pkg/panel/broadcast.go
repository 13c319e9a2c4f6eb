// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panel

import (
	"context"
	"sync"
)

// historySize bounds how far a slow reader can fall behind before it
// starts missing lines
const historySize = 64

// Broadcaster publishes each decoded text line with a sequence number.
// Readers block on Next until a line newer than the one they last saw is
// published. Publish never blocks.
type Broadcaster struct {
	mu      sync.Mutex
	cond    *sync.Cond
	seq     uint64
	history [historySize]string
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster() *Broadcaster {
	b := &Broadcaster{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish stores a line and wakes every reader
func (b *Broadcaster) Publish(line string) {
	b.mu.Lock()
	b.seq++
	b.history[b.seq%historySize] = line
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Kick republishes the current line. Readers waiting on state other than
// the text line use it as a wake-up.
func (b *Broadcaster) Kick() {
	b.mu.Lock()
	line := b.history[b.seq%historySize]
	b.mu.Unlock()
	b.Publish(line)
}

// Seq returns the sequence number of the latest line
func (b *Broadcaster) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// Current returns the latest line
func (b *Broadcaster) Current() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history[b.seq%historySize]
}

// Next blocks until a line with a sequence number greater than after is
// available and returns the oldest such line still held. A reader that
// fell more than historySize lines behind skips to the oldest line kept.
func (b *Broadcaster) Next(ctx context.Context, after uint64) (string, uint64, error) {
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.cond.Broadcast()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	for b.seq <= after {
		if err := ctx.Err(); err != nil {
			return "", after, err
		}
		b.cond.Wait()
	}

	next := after + 1
	if b.seq-next >= historySize {
		next = b.seq - historySize + 1
	}
	return b.history[next%historySize], next, nil
}
