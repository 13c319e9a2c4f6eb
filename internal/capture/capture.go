// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records raw bus traffic to a CBOR stream and plays it
// back.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction of a record
const (
	DirRX = "rx"
	DirTX = "tx"
)

// Record is one chunk of bytes as read from or written to the bus
type Record struct {
	Time int64  `cbor:"t"`
	Data []byte `cbor:"d"`
	Dir  string `cbor:"dir"`
}

// At returns the record time
func (r Record) At() time.Time {
	return time.Unix(0, r.Time)
}

// Writer appends records to a stream. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	enc *cbor.Encoder
	now func() time.Time
	err error
}

// NewWriter creates a writer on w
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: cbor.NewEncoder(w), now: time.Now}
}

// Write records data. The first error is kept and returned by every later
// call.
func (w *Writer) Write(tx bool, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	dir := DirRX
	if tx {
		dir = DirTX
	}
	rec := Record{Time: w.now().UnixNano(), Data: append([]byte(nil), data...), Dir: dir}
	if err := w.enc.Encode(rec); err != nil {
		w.err = fmt.Errorf("capture write: %w", err)
	}
	return w.err
}

// Tap matches the transport tap hook. Errors are kept for Err.
func (w *Writer) Tap(tx bool, data []byte) {
	_ = w.Write(tx, data)
}

// Err returns the first write error
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Reader decodes records from a stream
type Reader struct {
	dec *cbor.Decoder
}

// NewReader creates a reader on r
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, io.EOF at the end of the stream
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return rec, io.EOF
		}
		return rec, fmt.Errorf("capture read: %w", err)
	}
	return rec, nil
}

// Replay is a connection that returns the received bytes of a capture.
// Writes are discarded. With Speed above zero, reads are delayed to match
// the recorded timing divided by Speed.
type Replay struct {
	r     *Reader
	ctx   context.Context
	Speed float64

	pending []byte
	last    int64
}

// NewReplay plays back the capture read from r
func NewReplay(ctx context.Context, r io.Reader) *Replay {
	return &Replay{r: NewReader(r), ctx: ctx}
}

func (p *Replay) Read(b []byte) (int, error) {
	for len(p.pending) == 0 {
		rec, err := p.r.Next()
		if err != nil {
			return 0, err
		}
		if rec.Dir != DirRX {
			continue
		}
		if p.Speed > 0 && p.last != 0 && rec.Time > p.last {
			d := time.Duration(float64(rec.Time-p.last) / p.Speed)
			t := time.NewTimer(d)
			select {
			case <-t.C:
			case <-p.ctx.Done():
				t.Stop()
				return 0, p.ctx.Err()
			}
		}
		p.last = rec.Time
		p.pending = rec.Data
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *Replay) Write(b []byte) (int, error) {
	return len(b), nil
}
