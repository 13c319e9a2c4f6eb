// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/Thermoquad/poolbus/internal/logging"
	"github.com/Thermoquad/poolbus/pkg/autoconfig"
	"github.com/spf13/cobra"
)

var autoconfigMaxFrames int

var autoconfigCmd = &cobra.Command{
	Use:   "autoconfig",
	Short: "Find free keypad addresses on the bus",
	Long: `Watch the master probe keypad addresses and claim the free ones.

The master probes every address it knows about. An address nobody answers is
free; answering it claims it. Arbitration looks for an AllButton keypad, a
serial adapter and a OneTouch or AqualinkTouch address, and reads the panel
revision and size while it listens.

Arbitration ends once every role is filled and the panel type is known, after
the probe cycle has been seen twice, or after --max-frames frames.

Examples:
  poolbus autoconfig --port /dev/ttyUSB0

Exit codes:
  0 - A keypad address was found
  1 - No usable keypad address
  2 - Connection error`,
	RunE: runAutoconfig,
}

func init() {
	rootCmd.AddCommand(autoconfigCmd)
	autoconfigCmd.Flags().IntVar(&autoconfigMaxFrames, "max-frames", autoconfig.DefaultMaxFrames, "Give up after this many frames")
}

func runAutoconfig(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	link, err := openBus(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer link.Close()

	fmt.Printf("poolbus - Address Arbitration\n")
	fmt.Printf("Connection: %s\n", link.info)
	fmt.Printf("Frame limit: %d\n\n", autoconfigMaxFrames)

	arb := autoconfig.New(autoconfig.Options{
		MaxFrames: autoconfigMaxFrames,
		Logger:    logging.Component(logger, "autoconfig"),
	})
	res, err := arb.Run(ctx, link)
	if err != nil && !busEnded(ctx, err) {
		fmt.Printf("READ FAILED: %v\n", err)
		os.Exit(2)
	}
	printIdentity(res)

	if res.DeviceID == 0 || res.Degraded {
		fmt.Printf("No usable keypad address. Check that the panel is powered and the adapter is wired A/B correctly.\n")
		os.Exit(1)
	}
	return nil
}

// printIdentity prints the result of arbitration
func printIdentity(res autoconfig.Result) {
	id := func(v byte) string {
		if v == 0 {
			return "none"
		}
		return fmt.Sprintf("0x%02x", v)
	}

	fmt.Printf("\n--- Arbitration summary ---\n")
	fmt.Printf("Frames: %d, probe loops: %d\n", res.Frames, res.Loops)
	if res.Exhausted {
		fmt.Printf("Stopped at the frame limit\n")
	}
	fmt.Printf("Keypad:        %s\n", id(res.DeviceID))
	fmt.Printf("Serial adapter: %s\n", id(res.RSSAID))
	fmt.Printf("Extended:      %s", id(res.ExtendedID))
	switch {
	case res.ExtendedID == 0:
	case res.IAqualink:
		fmt.Printf(" (AqualinkTouch, iAqualink)")
	case res.ExtendedProgramming:
		fmt.Printf(" (programming)")
	}
	fmt.Println()
	if res.SeenIAqualink {
		fmt.Printf("An iAqualink device is active on the bus\n")
	}
	if res.Revision != "" {
		fmt.Printf("Panel:         %s rev %s\n", res.CPU, res.Revision)
	}
	if res.PanelType != "" {
		combo := "single"
		if res.Combo {
			combo = "combo"
		}
		fmt.Printf("Panel type:    %s (%d keys, %s)\n", res.PanelType, res.PanelSize, combo)
	}
	if res.Degraded {
		fmt.Printf("Only a PDA address was usable (0x%02x)\n", res.DeviceID)
	}
}
