// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the gateway configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/poolbus/pkg/rsbus"
	"gopkg.in/yaml.v3"
)

// AutoID asks for an address to be found by arbitration
const AutoID = "auto"

type Config struct {
	Serial     SerialConfig     `yaml:"serial"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	Bus        BusConfig        `yaml:"bus"`
	Panel      PanelConfig      `yaml:"panel"`
	Programmer ProgrammerConfig `yaml:"programmer"`
	Log        LogConfig        `yaml:"log"`
	// Capture is a file every byte read and written is recorded to
	Capture string `yaml:"capture"`
}

// ---- CONNECTION ----

type SerialConfig struct {
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	ReadRetries int           `yaml:"read_retries"`
	LowLatency  bool          `yaml:"low_latency"`
	Exclusive   bool          `yaml:"exclusive"`
}

type WebSocketConfig struct {
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
}

// ---- BUS ----

type BusConfig struct {
	// DeviceID is the AllButton keypad address, "auto" to arbitrate
	DeviceID   string `yaml:"device_id"`
	RSSAID     string `yaml:"rssa_device_id"`
	ExtendedID string `yaml:"extended_device_id"`

	FrameDelay      time.Duration `yaml:"frame_delay"`
	NulMode         string        `yaml:"nul_mode"`
	ResendThreshold int           `yaml:"resend_threshold"`
	QueueCapacity   int           `yaml:"queue_capacity"`
}

// ---- PANEL ----

type PanelConfig struct {
	Size                  int  `yaml:"size"`
	Combo                 bool `yaml:"combo"`
	OverrideFreezeProtect bool `yaml:"override_freeze_protect"`
	UsePanelAuxLabels     bool `yaml:"use_panel_aux_labels"`
	SyncPanelTime         bool `yaml:"sync_panel_time"`
	ReadOnStartup         bool `yaml:"read_on_startup"`
}

// ---- PROGRAMMER ----

type ProgrammerConfig struct {
	KeyTimeout      time.Duration `yaml:"key_timeout"`
	LineTimeout     time.Duration `yaml:"line_timeout"`
	LightInitialOn  time.Duration `yaml:"light_initial_on"`
	LightInitialOff time.Duration `yaml:"light_initial_off"`
	LightPulse      time.Duration `yaml:"light_pulse"`
}

// ---- LOG ----

type LogConfig struct {
	Level string `yaml:"level"`
	// Format is auto, console or json
	Format string `yaml:"format"`
}

// Defaults returns the configuration used when a file leaves a value out
func Defaults() *Config {
	return &Config{
		Serial: SerialConfig{
			Baud:        9600,
			ReadTimeout: rsbus.DefaultReadTimeout,
			ReadRetries: rsbus.DefaultReadRetries,
			LowLatency:  true,
			Exclusive:   true,
		},
		Bus: BusConfig{
			DeviceID:        AutoID,
			FrameDelay:      rsbus.DefaultFrameDelay,
			NulMode:         "leading",
			ResendThreshold: 3,
			QueueCapacity:   20,
		},
		Panel: PanelConfig{
			Size:          8,
			Combo:         true,
			ReadOnStartup: true,
		},
		Programmer: ProgrammerConfig{
			KeyTimeout:  5 * time.Second,
			LineTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load reads a YAML file over the defaults and applies POOLBUS_*
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseID parses a bus address written as hex (0x0a) or decimal. "auto"
// and the empty string return auto set.
func ParseID(s string) (id byte, auto bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, AutoID) {
		return 0, true, nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, false, fmt.Errorf("bad device id %q: %w", s, err)
	}
	return byte(v), false, nil
}
