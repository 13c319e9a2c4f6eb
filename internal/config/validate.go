// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"
	"slices"

	"github.com/Thermoquad/poolbus/pkg/rsbus"
	"github.com/rs/zerolog"
)

// PanelSizes are the RS panel sizes the decoder knows the key layout of
var PanelSizes = []int{4, 6, 8, 10, 12, 14, 16}

// Validate checks configuration correctness. It does not change cfg.
func Validate(cfg *Config) error {
	if cfg.Serial.Port != "" && cfg.WebSocket.URL != "" {
		return fmt.Errorf("serial port and websocket url are both set, pick one")
	}
	if cfg.Serial.Baud <= 0 {
		return fmt.Errorf("serial baud must be positive, got %d", cfg.Serial.Baud)
	}
	if cfg.Serial.ReadTimeout <= 0 {
		return fmt.Errorf("serial read_timeout must be positive")
	}
	if cfg.Serial.ReadRetries < 1 {
		return fmt.Errorf("serial read_retries must be at least 1, got %d", cfg.Serial.ReadRetries)
	}

	for name, s := range map[string]string{
		"device_id":          cfg.Bus.DeviceID,
		"rssa_device_id":     cfg.Bus.RSSAID,
		"extended_device_id": cfg.Bus.ExtendedID,
	} {
		if _, _, err := ParseID(s); err != nil {
			return fmt.Errorf("bus %s: %w", name, err)
		}
	}
	if cfg.Bus.FrameDelay < 0 {
		return fmt.Errorf("bus frame_delay can't be negative")
	}
	if _, ok := rsbus.ParseNulMode(cfg.Bus.NulMode); !ok {
		return fmt.Errorf("bus nul_mode %q: use leading or trailing", cfg.Bus.NulMode)
	}
	if cfg.Bus.ResendThreshold < 1 {
		return fmt.Errorf("bus resend_threshold must be at least 1, got %d", cfg.Bus.ResendThreshold)
	}
	if cfg.Bus.QueueCapacity < 1 {
		return fmt.Errorf("bus queue_capacity must be at least 1, got %d", cfg.Bus.QueueCapacity)
	}

	if !slices.Contains(PanelSizes, cfg.Panel.Size) {
		return fmt.Errorf("panel size %d: use one of %v", cfg.Panel.Size, PanelSizes)
	}

	p := cfg.Programmer
	if p.KeyTimeout <= 0 || p.LineTimeout <= 0 {
		return fmt.Errorf("programmer key_timeout and line_timeout must be positive")
	}
	if p.LightInitialOn < 0 || p.LightInitialOff < 0 || p.LightPulse < 0 {
		return fmt.Errorf("programmer light timings can't be negative")
	}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	switch cfg.Log.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("log format %q: use auto, console or json", cfg.Log.Format)
	}
	return nil
}
