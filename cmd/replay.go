// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/Thermoquad/poolbus/internal/capture"
	"github.com/Thermoquad/poolbus/internal/config"
	"github.com/Thermoquad/poolbus/internal/gateway"
	"github.com/Thermoquad/poolbus/pkg/rsbus"
	"github.com/spf13/cobra"
)

var (
	replaySpeed  float64
	replayFrames bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture>",
	Short: "Feed a capture file through the decoder",
	Long: `Play back bytes recorded with --record and print the panel model they
produce.

The keypad address is taken from --device-id and defaults to 0x0a. Keys the
gateway would send are discarded. --speed 1 plays back in real time, 0 as fast
as possible.

Examples:
  poolbus replay pool.cbor --device-id 0x0a
  poolbus replay pool.cbor --frames`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 0, "Playback speed (1 = real time, 0 = unpaced)")
	replayCmd.Flags().BoolVar(&replayFrames, "frames", false, "Print every frame")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	id, auto, err := config.ParseID(cfg.Bus.DeviceID)
	if err != nil {
		return err
	}
	if auto {
		id = 0x0a
	}

	ctx, cancel := signalContext()
	defer cancel()

	replay := capture.NewReplay(ctx, f)
	replay.Speed = replaySpeed
	opts := transportOptions()
	opts.FrameDelay = 0
	bus := rsbus.NewTransport(replay, opts)

	// A capture can't answer programming sessions
	cfg.Panel.ReadOnStartup = false
	cfg.Panel.SyncPanelTime = false
	cfg.Panel.UsePanelAuxLabels = false
	gopts := gatewayOptions(id)
	if replayFrames {
		gopts.OnFrame = func(fr *rsbus.Frame) { fmt.Print(rsbus.FormatFrame(fr)) }
	}
	g := gateway.New(bus, gopts)

	fmt.Printf("poolbus - Replay\n")
	fmt.Printf("Capture: %s, keypad 0x%02x\n\n", args[0], id)

	err = g.Run(ctx)
	if !busEnded(ctx, err) {
		return err
	}

	fmt.Println()
	printSnapshot(g.State().Snapshot())
	st := g.Statistics()
	fmt.Println()
	fmt.Print(st.String())
	return nil
}
