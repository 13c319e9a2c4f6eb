// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"
	"strconv"
	"time"
)

// EnvPrefix starts every environment override
const EnvPrefix = "POOLBUS_"

type envVar struct {
	name  string
	apply func(c *Config, v string) error
}

func setString(dst func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

func setInt(dst func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func setBool(dst func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst(c) = b
		return nil
	}
}

func setDuration(dst func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst(c) = d
		return nil
	}
}

var envVars = []envVar{
	{"PORT", setString(func(c *Config) *string { return &c.Serial.Port })},
	{"BAUD", setInt(func(c *Config) *int { return &c.Serial.Baud })},
	{"URL", setString(func(c *Config) *string { return &c.WebSocket.URL })},
	{"USERNAME", setString(func(c *Config) *string { return &c.WebSocket.Username })},
	{"DEVICE_ID", setString(func(c *Config) *string { return &c.Bus.DeviceID })},
	{"RSSA_DEVICE_ID", setString(func(c *Config) *string { return &c.Bus.RSSAID })},
	{"EXTENDED_DEVICE_ID", setString(func(c *Config) *string { return &c.Bus.ExtendedID })},
	{"FRAME_DELAY", setDuration(func(c *Config) *time.Duration { return &c.Bus.FrameDelay })},
	{"NUL_MODE", setString(func(c *Config) *string { return &c.Bus.NulMode })},
	{"RESEND_THRESHOLD", setInt(func(c *Config) *int { return &c.Bus.ResendThreshold })},
	{"PANEL_SIZE", setInt(func(c *Config) *int { return &c.Panel.Size })},
	{"COMBO", setBool(func(c *Config) *bool { return &c.Panel.Combo })},
	{"OVERRIDE_FREEZE_PROTECT", setBool(func(c *Config) *bool { return &c.Panel.OverrideFreezeProtect })},
	{"USE_PANEL_AUX_LABELS", setBool(func(c *Config) *bool { return &c.Panel.UsePanelAuxLabels })},
	{"SYNC_PANEL_TIME", setBool(func(c *Config) *bool { return &c.Panel.SyncPanelTime })},
	{"LOG_LEVEL", setString(func(c *Config) *string { return &c.Log.Level })},
	{"LOG_FORMAT", setString(func(c *Config) *string { return &c.Log.Format })},
	{"CAPTURE", setString(func(c *Config) *string { return &c.Capture })},
}

// ApplyEnv overrides cfg with every POOLBUS_* variable lookup finds
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, e := range envVars {
		v, ok := lookup(EnvPrefix + e.name)
		if !ok {
			continue
		}
		if err := e.apply(cfg, v); err != nil {
			return fmt.Errorf("%s%s=%q: %w", EnvPrefix, e.name, v, err)
		}
	}
	return nil
}
