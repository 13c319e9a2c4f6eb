// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rsbus

import (
	"errors"
	"fmt"
)

// Per-frame failure codes. All of them are recoverable: the caller drops
// the frame and keeps reading.
var (
	ErrRead     = errors.New("serial read error")
	ErrChecksum = errors.New("bad checksum")
	ErrTooLarge = errors.New("frame too large")
	ErrTooSmall = errors.New("frame too small")
	ErrTimeout  = errors.New("serial read timeout")
)

// FrameError carries a failure code and the partial frame it was raised on.
type FrameError struct {
	Code     error
	Protocol Protocol
	Partial  []byte
	Err      error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Code, e.Err)
	}
	if e.Protocol != ProtocolUnknown {
		return fmt.Sprintf("%v (%s, %d bytes)", e.Code, e.Protocol, len(e.Partial))
	}
	return e.Code.Error()
}

// Unwrap exposes both the failure code and the underlying I/O error to
// errors.Is.
func (e *FrameError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Code, e.Err}
	}
	return []error{e.Code}
}

func newFrameError(code error, protocol Protocol, partial []byte) *FrameError {
	p := make([]byte, len(partial))
	copy(p, partial)
	return &FrameError{Code: code, Protocol: protocol, Partial: p}
}

// Recoverable reports whether err only lost a frame. Read errors from the
// connection itself (closed port, EOF) are not recoverable.
func Recoverable(err error) bool {
	var fe *FrameError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Err == nil || errors.Is(fe.Err, ErrTimeout)
}
