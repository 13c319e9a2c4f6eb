// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rsbus

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options configures a Transport
type Options struct {
	// ReadRetries is how many empty reads are tolerated inside a frame
	// before the frame is abandoned with ErrRead.
	ReadRetries int
	// FrameDelay is the minimum gap between the end of the last received
	// frame and the start of a transmission.
	FrameDelay time.Duration
	// NulMode selects the padding layout of transmitted Jandy frames.
	NulMode NulMode
	// Logger receives frame warnings. Nil disables logging.
	Logger *zerolog.Logger
	// Tap, when set, is called with every chunk read from and written to
	// the connection.
	Tap func(tx bool, data []byte)
}

// DefaultOptions returns the settings used on a real bus
func DefaultOptions() Options {
	return Options{
		ReadRetries: DefaultReadRetries,
		FrameDelay:  DefaultFrameDelay,
		NulMode:     NulLeading,
	}
}

// Transport reads frames from and writes frames to a bus connection.
//
// The connection's Read is expected to return (0, nil) when its read
// timeout expires, as serial ports do. ReadFrame must be called from a
// single goroutine; the send methods may be called from any goroutine.
type Transport struct {
	conn    io.ReadWriter
	opts    Options
	log     zerolog.Logger
	decoder *Decoder

	buf []byte
	pos int
	n   int

	mu       sync.Mutex
	lastRead time.Time

	writeMu sync.Mutex
}

// NewTransport creates a transport over an open connection
func NewTransport(conn io.ReadWriter, opts Options) *Transport {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	if opts.ReadRetries <= 0 {
		opts.ReadRetries = DefaultReadRetries
	}
	return &Transport{
		conn:    conn,
		opts:    opts,
		log:     log,
		decoder: NewDecoder(),
		buf:     make([]byte, MaxFrameSize),
	}
}

// NulMode returns the padding layout used for outgoing frames
func (t *Transport) NulMode() NulMode {
	return t.opts.NulMode
}

// ReadFrame blocks until a complete frame is decoded.
//
// It returns (nil, nil) when the connection timed out with no frame in
// progress, and a *FrameError when a frame was rejected. Both are normal
// on a live bus; the caller just calls ReadFrame again.
func (t *Transport) ReadFrame(ctx context.Context) (*Frame, error) {
	retry := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if t.pos >= t.n {
			n, err := t.conn.Read(t.buf)
			if err != nil {
				t.decoder.Reset()
				return nil, &FrameError{Code: ErrRead, Err: err}
			}
			if n == 0 {
				if !t.decoder.InFrame() {
					return nil, nil
				}
				retry++
				if retry > t.opts.ReadRetries {
					partial := t.decoder.protocol()
					t.decoder.Reset()
					t.log.Warn().Msg("serial read timeout")
					return nil, &FrameError{Code: ErrRead, Protocol: partial, Err: ErrTimeout}
				}
				continue
			}
			retry = 0
			t.pos = 0
			t.n = n
			if t.opts.Tap != nil {
				t.opts.Tap(false, t.buf[:n])
			}
		}

		b := t.buf[t.pos]
		t.pos++

		frame, err := t.decoder.DecodeByte(b)
		if err != nil {
			t.logFrameError(err)
			return nil, err
		}
		if frame != nil {
			t.mu.Lock()
			t.lastRead = time.Now()
			t.mu.Unlock()
			t.logAnomalies(frame)
			return frame, nil
		}
	}
}

func (t *Transport) logFrameError(err error) {
	fe, ok := err.(*FrameError)
	if !ok {
		return
	}
	t.log.Warn().
		Str("protocol", fe.Protocol.String()).
		Str("frame", hex.EncodeToString(fe.Partial)).
		Msgf("serial read %v, ignoring", fe.Code)
}

func (t *Transport) logAnomalies(frame *Frame) {
	for _, v := range ValidateFrame(frame) {
		switch v.Type {
		case AnomalyChecksumBug:
			t.log.Info().Str("frame", hex.EncodeToString(frame.Raw())).Msg(v.Message)
		default:
			t.log.Warn().Str("frame", hex.EncodeToString(frame.Raw())).Msg(v.Message)
		}
	}
}

// LastRead returns the monotonic time the last frame finished decoding
func (t *Transport) LastRead() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRead
}

// Send writes wire bytes after sleeping out the remainder of the
// inter-frame gap measured from the last received frame
func (t *Transport) Send(ctx context.Context, wire []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if last := t.LastRead(); t.opts.FrameDelay > 0 && !last.IsZero() {
		if wait := t.opts.FrameDelay - time.Since(last); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	n, err := t.conn.Write(wire)
	if err != nil {
		return fmt.Errorf("write to serial port failed: %w", err)
	}
	if n != len(wire) {
		return fmt.Errorf("write to serial port failed: wrote %d of %d bytes", n, len(wire))
	}
	if t.opts.Tap != nil {
		t.opts.Tap(true, wire)
	}
	return nil
}

// SendJandy frames and sends a destination, command, data buffer
func (t *Transport) SendJandy(ctx context.Context, body []byte) error {
	wire, err := EncodeJandy(body, t.opts.NulMode)
	if err != nil {
		return err
	}
	return t.Send(ctx, wire)
}

// SendPentair frames and sends a version, destination, source, command,
// length, data buffer
func (t *Transport) SendPentair(ctx context.Context, body []byte) error {
	wire, err := EncodePentair(body)
	if err != nil {
		return err
	}
	return t.Send(ctx, wire)
}

// SendAck acknowledges the master, optionally carrying a command byte
func (t *Transport) SendAck(ctx context.Context, ackType, command byte) error {
	return t.Send(ctx, EncodeAck(ackType, command, t.opts.NulMode))
}
