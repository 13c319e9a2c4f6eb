// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !linux

package cmd

import "io"

// tunePort is a no-op where the serial driver has no low latency switch
func tunePort(path string, exclusive, lowLatency bool) (io.Closer, error) {
	return nil, nil
}
