// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ============================================================
// Test Helpers
// ============================================================

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "poolbus.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

// ============================================================
// Load Tests
// ============================================================

func TestDefaults_Valid(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("Expected defaults to validate, got %v", err)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Serial.Baud != 9600 || cfg.Bus.DeviceID != AutoID {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

func TestLoad_FileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: /dev/ttyUSB0
bus:
  device_id: "0x0a"
  frame_delay: 4ms
  nul_mode: trailing
panel:
  size: 16
  use_panel_aux_labels: true
programmer:
  light_pulse: 1500ms
log:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Serial.Port != "/dev/ttyUSB0" || cfg.Serial.Baud != 9600 {
		t.Errorf("Unexpected serial %+v", cfg.Serial)
	}
	if cfg.Bus.DeviceID != "0x0a" || cfg.Bus.FrameDelay != 4*time.Millisecond || cfg.Bus.NulMode != "trailing" {
		t.Errorf("Unexpected bus %+v", cfg.Bus)
	}
	if cfg.Bus.ResendThreshold != 3 {
		t.Errorf("Expected default resend threshold kept, got %d", cfg.Bus.ResendThreshold)
	}
	if cfg.Panel.Size != 16 || !cfg.Panel.Combo || !cfg.Panel.UsePanelAuxLabels {
		t.Errorf("Unexpected panel %+v", cfg.Panel)
	}
	if cfg.Programmer.LightPulse != 1500*time.Millisecond || cfg.Programmer.KeyTimeout != 5*time.Second {
		t.Errorf("Unexpected programmer %+v", cfg.Programmer)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected debug level, got %q", cfg.Log.Level)
	}
}

func TestLoad_UnknownField(t *testing.T) {
	path := writeConfig(t, "panel:\n  colour: blue\n")
	if _, err := Load(path); err == nil {
		t.Error("Expected error for unknown field")
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Expected empty file to load, got %v", err)
	}
	if cfg.Panel.Size != 8 {
		t.Errorf("Expected defaults, got %+v", cfg.Panel)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

// ============================================================
// Environment Tests
// ============================================================

func TestApplyEnv(t *testing.T) {
	cfg := Defaults()
	err := ApplyEnv(cfg, env(map[string]string{
		"POOLBUS_PORT":             "/dev/ttyS1",
		"POOLBUS_PANEL_SIZE":       "12",
		"POOLBUS_COMBO":            "false",
		"POOLBUS_FRAME_DELAY":      "20ms",
		"POOLBUS_LOG_LEVEL":        "trace",
		"POOLBUS_RESEND_THRESHOLD": "5",
		"UNRELATED":                "x",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Serial.Port != "/dev/ttyS1" || cfg.Panel.Size != 12 || cfg.Panel.Combo {
		t.Errorf("Unexpected overrides %+v %+v", cfg.Serial, cfg.Panel)
	}
	if cfg.Bus.FrameDelay != 20*time.Millisecond || cfg.Bus.ResendThreshold != 5 || cfg.Log.Level != "trace" {
		t.Errorf("Unexpected overrides %+v %+v", cfg.Bus, cfg.Log)
	}
}

func TestApplyEnv_BadValue(t *testing.T) {
	tests := map[string]string{
		"POOLBUS_BAUD":        "fast",
		"POOLBUS_COMBO":       "maybe",
		"POOLBUS_FRAME_DELAY": "10",
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			err := ApplyEnv(Defaults(), env(map[string]string{name: value}))
			if err == nil || !strings.Contains(err.Error(), name) {
				t.Errorf("Expected error naming %s, got %v", name, err)
			}
		})
	}
}

// ============================================================
// Validate Tests
// ============================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"both connections", func(c *Config) { c.Serial.Port, c.WebSocket.URL = "/dev/ttyUSB0", "ws://x" }, "pick one"},
		{"zero baud", func(c *Config) { c.Serial.Baud = 0 }, "baud"},
		{"bad device id", func(c *Config) { c.Bus.DeviceID = "0x1ff" }, "device_id"},
		{"bad rssa id", func(c *Config) { c.Bus.RSSAID = "serial" }, "rssa_device_id"},
		{"bad nul mode", func(c *Config) { c.Bus.NulMode = "middle" }, "nul_mode"},
		{"zero resend", func(c *Config) { c.Bus.ResendThreshold = 0 }, "resend_threshold"},
		{"panel size", func(c *Config) { c.Panel.Size = 9 }, "panel size"},
		{"negative pulse", func(c *Config) { c.Programmer.LightPulse = -time.Second }, "light"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		id      byte
		auto    bool
		wantErr bool
	}{
		{"", 0, true, false},
		{"auto", 0, true, false},
		{"AUTO", 0, true, false},
		{"0x0a", 0x0a, false, false},
		{"0X48", 0x48, false, false},
		{"9", 9, false, false},
		{"0x100", 0, false, true},
		{"keypad", 0, false, true},
	}
	for _, tt := range tests {
		id, auto, err := ParseID(tt.in)
		if (err != nil) != tt.wantErr || id != tt.id || auto != tt.auto {
			t.Errorf("ParseID(%q): expected %d/%v/%v, got %d/%v/%v", tt.in, tt.id, tt.auto, tt.wantErr, id, auto, err)
		}
	}
}
