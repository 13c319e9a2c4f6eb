// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the serial ports on this machine with their USB details.

RS-485 adapters usually show up as FTDI (0403) or CH340 (1A86) USB devices.`,
	Args: cobra.NoArgs,
	// No connection or config file needed
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return fmt.Errorf("list serial ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Printf("No serial ports found\n")
		return nil
	}

	for _, p := range ports {
		if !p.IsUSB {
			fmt.Printf("%s\n", p.Name)
			continue
		}
		fmt.Printf("%s  USB %s:%s", p.Name, p.VID, p.PID)
		if p.Product != "" {
			fmt.Printf("  %s", p.Product)
		}
		if p.SerialNumber != "" {
			fmt.Printf("  serial %s", p.SerialNumber)
		}
		fmt.Println()
	}
	return nil
}
