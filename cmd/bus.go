// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/poolbus/internal/capture"
	"github.com/Thermoquad/poolbus/internal/config"
	"github.com/Thermoquad/poolbus/internal/gateway"
	"github.com/Thermoquad/poolbus/internal/logging"
	"github.com/Thermoquad/poolbus/pkg/autoconfig"
	"github.com/Thermoquad/poolbus/pkg/programmer"
	"github.com/Thermoquad/poolbus/pkg/rsbus"
)

// busLink is an open connection wrapped in a frame transport
type busLink struct {
	*rsbus.Transport
	conn     Connection
	info     string
	recorder *capture.Writer
	record   *os.File
}

// Close closes the connection and the capture file
func (l *busLink) Close() error {
	err := l.conn.Close()
	if l.record != nil {
		if rerr := l.recorder.Err(); rerr != nil {
			logger.Error().Err(rerr).Msg("capture file incomplete")
		}
		l.record.Close()
	}
	return err
}

// signalContext is cancelled by Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// transportOptions maps the bus settings onto transport options
func transportOptions() rsbus.Options {
	opts := rsbus.DefaultOptions()
	opts.ReadRetries = cfg.Serial.ReadRetries
	opts.FrameDelay = cfg.Bus.FrameDelay
	opts.NulMode, _ = rsbus.ParseNulMode(cfg.Bus.NulMode)
	opts.Logger = logging.Component(logger, "rsbus")
	return opts
}

// openBus opens the configured connection. recordPath, or the capture
// setting when empty, names a file every byte is recorded to. The
// connection is closed when ctx is done so a blocked read returns.
func openBus(ctx context.Context, recordPath string) (*busLink, error) {
	conn, info, err := OpenConnection()
	if err != nil {
		return nil, err
	}
	link := &busLink{conn: conn, info: info}

	opts := transportOptions()
	if recordPath == "" {
		recordPath = cfg.Capture
	}
	if recordPath != "" {
		f, err := os.Create(recordPath)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("create capture file: %w", err)
		}
		link.record = f
		link.recorder = capture.NewWriter(f)
		opts.Tap = link.recorder.Tap
	}
	link.Transport = rsbus.NewTransport(conn, opts)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	return link, nil
}

// busEnded reports errors that just mean the bus went away on purpose
func busEnded(ctx context.Context, err error) bool {
	return err == nil || ctx.Err() != nil || errors.Is(err, io.EOF)
}

// resolveIdentity returns the configured keypad address, or claims one by
// arbitration when it is set to auto. Panel size and combo learned from
// the panel are written back into cfg.
func resolveIdentity(ctx context.Context, bus autoconfig.Bus) (byte, error) {
	id, auto, err := config.ParseID(cfg.Bus.DeviceID)
	if err != nil {
		return 0, err
	}
	if !auto {
		return id, nil
	}

	fmt.Printf("Looking for a free keypad address...\n")
	arb := autoconfig.New(autoconfig.Options{Logger: logging.Component(logger, "autoconfig")})
	res, err := arb.Run(ctx, bus)
	if err != nil {
		return 0, fmt.Errorf("autoconfig: %w", err)
	}
	printIdentity(res)

	switch {
	case res.Degraded:
		return 0, fmt.Errorf("only a PDA address (0x%02x) is free, set a keypad address with --device-id", res.DeviceID)
	case res.DeviceID == 0:
		return 0, fmt.Errorf("no free keypad address on the bus")
	}
	if res.PanelSize > 0 {
		cfg.Panel.Size = res.PanelSize
		cfg.Panel.Combo = res.Combo
	}
	return res.DeviceID, nil
}

// newGateway builds a gateway on bus from cfg
func newGateway(bus gateway.Bus, id byte) *gateway.Gateway {
	return gateway.New(bus, gatewayOptions(id))
}

func gatewayOptions(id byte) gateway.Options {
	p := cfg.Programmer
	return gateway.Options{
		DeviceID:              id,
		PanelSize:             cfg.Panel.Size,
		Combo:                 cfg.Panel.Combo,
		OverrideFreezeProtect: cfg.Panel.OverrideFreezeProtect,
		UsePanelAuxLabels:     cfg.Panel.UsePanelAuxLabels,
		ReadOnStartup:         cfg.Panel.ReadOnStartup,
		SyncPanelTime:         cfg.Panel.SyncPanelTime,
		Queue: programmer.QueueOptions{
			Capacity:        cfg.Bus.QueueCapacity,
			ResendThreshold: cfg.Bus.ResendThreshold,
			Logger:          logging.Component(logger, "queue"),
		},
		Programmer: programmer.Options{
			KeyTimeout:      p.KeyTimeout,
			LineTimeout:     p.LineTimeout,
			LightInitialOn:  p.LightInitialOn,
			LightInitialOff: p.LightInitialOff,
			LightPulse:      p.LightPulse,
			Logger:          logging.Component(logger, "programmer"),
		},
		Logger: logging.Component(logger, "gateway"),
	}
}
