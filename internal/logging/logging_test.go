// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "info", "json")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Debug().Msg("hidden")
	l.Info().Str("port", "/dev/ttyUSB0").Msg("opened")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("Expected JSON, got %q", lines[0])
	}
	if rec["message"] != "opened" || rec["port"] != "/dev/ttyUSB0" || rec["level"] != "info" {
		t.Errorf("Unexpected record %v", rec)
	}
	if _, ok := rec["time"]; !ok {
		t.Error("Expected timestamp")
	}
}

func TestNew_AutoNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "", "auto")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info().Msg("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("Expected JSON for a non terminal writer, got %q", buf.String())
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "debug", "console")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Debug().Msg("probe")
	if strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), "probe") {
		t.Errorf("Expected console output, got %q", buf.String())
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, "loud", "json"); err == nil {
		t.Error("Expected error for bad level")
	}
	if _, err := New(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Error("Expected error for bad format")
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(&buf, "info", "json")
	Component(l, "decoder").Info().Msg("x")
	if !strings.Contains(buf.String(), `"component":"decoder"`) {
		t.Errorf("Expected component field, got %q", buf.String())
	}
}
