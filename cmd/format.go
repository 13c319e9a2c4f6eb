// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/poolbus/pkg/panel"
)

// formatTemp renders a temperature, or "--" before the panel has shown it
func formatTemp(v int, u panel.TempUnits) string {
	if v == panel.TempUnknown {
		return "--"
	}
	return fmt.Sprintf("%d°%s", v, u)
}

// formatPercent renders a percentage, or "--" when unknown
func formatPercent(v int) string {
	if v < 0 {
		return "--"
	}
	return fmt.Sprintf("%d%%", v)
}

func printSetPoints(s panel.Snapshot) {
	fmt.Printf("Pool set point:   %s\n", formatTemp(s.PoolSetPoint, s.Units))
	fmt.Printf("Spa set point:    %s\n", formatTemp(s.SpaSetPoint, s.Units))
	fmt.Printf("Freeze set point: %s\n", formatTemp(s.FreezeSetPoint, s.Units))
	if s.SWGStatus != panel.SWGStatusUnknown {
		fmt.Printf("SWG:              %s (%s)\n", formatPercent(s.SWGPercent), s.SWGStatus)
	}
}

// printSnapshot prints the whole panel model
func printSnapshot(s panel.Snapshot) {
	fmt.Printf("--- Panel ---\n")
	if s.Version != "" {
		fmt.Printf("Firmware: %s\n", s.Version)
	}
	if s.Date != "" || s.Time != "" {
		fmt.Printf("Clock:    %s %s\n", s.Date, s.Time)
	}
	fmt.Printf("Air %s  Pool %s  Spa %s\n",
		formatTemp(s.AirTemp, s.Units), formatTemp(s.PoolTemp, s.Units), formatTemp(s.SpaTemp, s.Units))
	printSetPoints(s)
	if s.FreezeProtect == panel.LEDOn {
		fmt.Printf("Freeze protection active\n")
	}
	if s.ServiceMode == panel.LEDOn || s.ServiceMode == panel.LEDFlash {
		fmt.Printf("Service mode: %s\n", s.ServiceMode)
	}
	if s.Battery == panel.BatteryLow {
		fmt.Printf("Panel battery low\n")
	}
	if s.Boost {
		fmt.Printf("Boost: %d minutes left\n", s.BoostMinutes)
	}
	if s.DisplayMessage != "" {
		fmt.Printf("Message:  %s\n", s.DisplayMessage)
	}

	fmt.Printf("\n--- Keys ---\n")
	for _, b := range s.Buttons {
		fmt.Printf("  %-14s %s\n", b.Label, b.State)
	}
}
