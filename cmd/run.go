// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/poolbus/internal/gateway"
	"github.com/Thermoquad/poolbus/pkg/panel"
	"github.com/spf13/cobra"
)

var (
	runKeys   []string
	runRecord string
	runQuiet  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the keypad gateway",
	Long: `Claim a keypad address and follow the panel.

With device_id set to auto (the default) the gateway first runs address
arbitration, then answers every frame the master sends to its address and
prints each display line the panel shows.

Keys given with --key are pressed once the bus is running, in order.

Examples:
  poolbus run --port /dev/ttyUSB0
  poolbus run --port /dev/ttyUSB0 --device-id 0x0a --key Filter_Pump`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringSliceVarP(&runKeys, "key", "k", nil, "Press a key (MENU, ENTER, Aux_1, 0x09, ...)")
	runCmd.Flags().StringVar(&runRecord, "record", "", "Record every bus byte to a capture file")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Don't print display lines")
}

func runGateway(cmd *cobra.Command, args []string) error {
	keys := make([]panel.Key, 0, len(runKeys))
	for _, name := range runKeys {
		k, err := panel.ParseKey(name)
		if err != nil {
			return err
		}
		keys = append(keys, k)
	}

	ctx, cancel := signalContext()
	defer cancel()

	link, err := openBus(ctx, runRecord)
	if err != nil {
		return err
	}
	defer link.Close()

	fmt.Printf("poolbus - Keypad Gateway\n")
	fmt.Printf("Connection: %s\n", link.info)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	id, err := resolveIdentity(ctx, link)
	if err != nil {
		if busEnded(ctx, err) {
			return nil
		}
		return err
	}
	fmt.Printf("Keypad address 0x%02x, %d key panel\n\n", id, cfg.Panel.Size)

	g := newGateway(link, id)
	for _, k := range keys {
		if err := g.SendKey(k); err != nil {
			return fmt.Errorf("press %s: %w", k, err)
		}
	}
	if !runQuiet {
		go printLines(ctx, g)
	}

	err = g.Run(ctx)
	if busEnded(ctx, err) {
		return nil
	}
	return err
}

// printLines prints every display line until ctx is done
func printLines(ctx context.Context, g *gateway.Gateway) {
	lines := g.Lines()
	seq := lines.Seq()
	last := ""
	for {
		line, next, err := lines.Next(ctx, seq)
		if err != nil {
			return
		}
		seq = next
		// Kicks during light programming repeat the line
		if line == "" || line == last {
			continue
		}
		last = line
		fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), line)
	}
}
