// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build linux

package cmd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"unsafe"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// asyncLowLatency is ASYNC_LOW_LATENCY in serial_struct.flags
const asyncLowLatency = 1 << 13

// serial_struct is 72 bytes on 64-bit targets; flags is the fifth int
const serialFlagsOffset = 16

type portLock struct{ f *os.File }

func (l portLock) Close() error {
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}

// tunePort takes an advisory lock on the device so a second gateway can't
// share it, and asks the driver for low latency. The returned closer holds
// the lock.
func tunePort(path string, exclusive, lowLatency bool) (io.Closer, error) {
	if !exclusive && !lowLatency {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	fd := int(f.Fd())

	if lowLatency {
		if err := setLowLatency(fd); err != nil {
			// USB adapters without serial_struct support still work
			log.Debug().Err(err).Str("port", path).Msg("low latency not available")
		}
	}
	if !exclusive {
		f.Close()
		return nil, nil
	}
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("serial port %s is in use", path)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return portLock{f: f}, nil
}

func setLowLatency(fd int) error {
	var ss [128]byte
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.TIOCGSERIAL, uintptr(unsafe.Pointer(&ss[0]))); errno != 0 {
		return errno
	}
	flags := binary.NativeEndian.Uint32(ss[serialFlagsOffset:])
	if flags&asyncLowLatency != 0 {
		return nil
	}
	binary.NativeEndian.PutUint32(ss[serialFlagsOffset:], flags|asyncLowLatency)
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.TIOCSSERIAL, uintptr(unsafe.Pointer(&ss[0]))); errno != 0 {
		return errno
	}
	return nil
}
