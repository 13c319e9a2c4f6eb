// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/poolbus/pkg/rsbus"
	"github.com/spf13/cobra"
)

var frameTestTimeout int

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test connection by waiting for a valid frame",
	Long: `Wait for a valid Jandy or Pentair frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any frame
that passes its checksum. Rejected frames are counted but otherwise ignored.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for checking RS-485 wiring (A/B swapped adapters only ever produce
checksum errors) and bridge connectivity.`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	sig, cancel := signalContext()
	defer cancel()
	ctx, stop := context.WithTimeout(sig, time.Duration(frameTestTimeout)*time.Second)
	defer stop()

	link, err := openBus(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer link.Close()

	fmt.Printf("poolbus - Frame Test\n")
	fmt.Printf("Connection: %s\n", link.info)
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)
	fmt.Printf("Waiting for a valid frame...\n\n")

	rejected := 0
	for {
		frame, err := link.ReadFrame(ctx)
		switch {
		case err == nil && frame != nil:
			if rejected > 0 {
				fmt.Printf("(rejected %d frames before sync)\n", rejected)
			}
			fmt.Printf("SUCCESS: Received valid frame\n")
			fmt.Printf("  Type: %s\n", rsbus.FrameTypeName(frame))
			fmt.Printf("  Protocol: %s\n", frame.Protocol())
			fmt.Printf("  Destination: 0x%02X (%s)\n", frame.Dest(), rsbus.JandyDeviceType(frame.Dest()))
			fmt.Printf("  Length: %d bytes\n", frame.Len())
			os.Exit(0)

		case err == nil:
		case ctx.Err() != nil:
			if sig.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds (%d rejected)\n", frameTestTimeout, rejected)
			os.Exit(1)

		case rsbus.Recoverable(err):
			rejected++

		default:
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			os.Exit(2)
		}
	}
}
