// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/poolbus/pkg/programmer"
	"github.com/spf13/cobra"
)

var (
	setButton int
	setMode   string
	setTime   string
	setWait   time.Duration
)

var setCmd = &cobra.Command{
	Use:   "set <session> [value]",
	Short: "Drive the panel menus to change a setting",
	Long: `Run one programming session against the panel.

Sessions:
  pool_heater <temp>     spa_heater <temp>      freeze_protect <temp>
  swg_percent <percent>  boost <0|1>            time [--time ...]
  color_light <pulses>   dimmer <1-4>           light_program <pulses>
  aux_labels             diagnostics            read_heater
  read_freeze            read_programs

Light sessions need --button, the key index of the light. color_light may
name the panel color mode with --mode instead of a pulse count.

Examples:
  poolbus set pool_heater 82 --port /dev/ttyUSB0
  poolbus set swg_percent 40 --port /dev/ttyUSB0
  poolbus set color_light --button 4 --mode "Caribbean" --port /dev/ttyUSB0
  poolbus set time --time "2025-06-01 14:30" --port /dev/ttyUSB0`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
	setCmd.Flags().IntVar(&setButton, "button", 0, "Key index of the light (light sessions)")
	setCmd.Flags().StringVar(&setMode, "mode", "", "Color mode name shown by the panel (color_light)")
	setCmd.Flags().StringVar(&setTime, "time", "", `Clock to program, "YYYY-MM-DD HH:MM" (default now)`)
	setCmd.Flags().DurationVar(&setWait, "wait", 30*time.Second, "How long to wait for the panel to start talking")
}

// parseRequest builds a session request from the command line
func parseRequest(args []string) (programmer.Request, error) {
	kind, err := programmer.ParseKind(strings.ReplaceAll(args[0], "-", "_"))
	if err != nil {
		return programmer.Request{}, err
	}
	req := programmer.Request{Kind: kind, Button: setButton, Mode: setMode}
	if len(args) > 1 {
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return req, fmt.Errorf("value %q is not a number", args[1])
		}
		req.Value = v
	}
	if setTime != "" {
		t, err := time.ParseInLocation("2006-01-02 15:04", setTime, time.Local)
		if err != nil {
			return req, fmt.Errorf("bad --time: %w", err)
		}
		req.Time = t
	}
	return req, nil
}

func runSet(cmd *cobra.Command, args []string) error {
	req, err := parseRequest(args)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	link, err := openBus(ctx, "")
	if err != nil {
		return err
	}
	defer link.Close()

	fmt.Printf("poolbus - %s\n", req.Kind)
	fmt.Printf("Connection: %s\n\n", link.info)

	id, err := resolveIdentity(ctx, link)
	if err != nil {
		return err
	}

	// Only the requested session runs
	cfg.Panel.ReadOnStartup = false
	cfg.Panel.SyncPanelTime = false
	g := newGateway(link, id)

	busCtx, stopBus := context.WithCancel(ctx)
	busDone := make(chan error, 1)
	go func() { busDone <- g.Run(busCtx) }()
	defer func() {
		stopBus()
		<-busDone
	}()

	waitCtx, stopWait := context.WithTimeout(ctx, setWait)
	_, _, err = g.Lines().Next(waitCtx, 0)
	stopWait()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("panel did not talk to keypad 0x%02x within %s", id, setWait)
	}

	fmt.Printf("Running %s session...\n", req.Kind)
	res, err := g.Programmer().Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("\n--- Session %s ---\n", res.ID)
	fmt.Printf("State: %s\n", res.State)
	fmt.Printf("Took: %s\n", res.Finished.Sub(res.Started).Round(time.Millisecond))
	if res.Err != nil {
		return fmt.Errorf("%s failed: %w", req.Kind, res.Err)
	}
	printSetPoints(g.State().Snapshot())
	return nil
}
