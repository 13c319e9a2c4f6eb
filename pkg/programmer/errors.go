// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package programmer

import "errors"

var (
	// ErrQueueFull is returned when the key queue already holds its
	// capacity of unsent keys
	ErrQueueFull = errors.New("key queue full")
	// ErrBusy is returned when a programming session is already running
	ErrBusy = errors.New("programming session already active")
	// ErrMenuNotFound means the panel never showed its menu prompt
	ErrMenuNotFound = errors.New("menu not found")
	// ErrItemNotFound means a menu item or numeric field was not seen
	ErrItemNotFound = errors.New("menu item not found")
	// ErrNoConvergence means a numeric field did not reach its target
	ErrNoConvergence = errors.New("numeric field did not converge")
	// ErrNoReply means an expected panel line never arrived
	ErrNoReply = errors.New("no reply from panel")
	// ErrKeyTimeout means a key sat in the slot without being sent
	ErrKeyTimeout = errors.New("key not sent")
	// ErrInvalidRequest rejects a malformed session request
	ErrInvalidRequest = errors.New("invalid request")
)
