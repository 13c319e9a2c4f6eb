// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/poolbus/pkg/rsbus"
	"github.com/spf13/cobra"
)

var (
	errorsOnly    bool
	statsInterval int
	rawRecord     string
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display Jandy and Pentair frames as they arrive.

Each frame is shown with timestamp, addresses, command and payload. Frames that
were accepted but look wrong (the known Jandy checksum bug, oversize frames,
Pentair length mismatches) are highlighted, rejected frames are reported with
their failure code, and a statistics summary is printed at --stats-interval.

Nothing is sent on the bus, so raw_log is safe next to a running panel.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&errorsOnly, "errors-only", false, "Only show rejected and anomalous frames")
	rawLogCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics interval in seconds (0 disables)")
	rawLogCmd.Flags().StringVar(&rawRecord, "record", "", "Record every bus byte to a capture file")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	link, err := openBus(ctx, rawRecord)
	if err != nil {
		return err
	}
	defer link.Close()

	fmt.Printf("poolbus - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", link.info)
	if rawRecord != "" {
		fmt.Printf("Recording: %s\n", rawRecord)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := rsbus.NewStatistics()
	defer func() {
		fmt.Println()
		fmt.Print(stats.String())
	}()

	var nextStats time.Time
	if statsInterval > 0 {
		nextStats = time.Now().Add(time.Duration(statsInterval) * time.Second)
	}

	// Errors before the first good frame are just line noise from joining
	// mid-frame
	synchronized := false
	skipped := 0

	for {
		if !nextStats.IsZero() && time.Now().After(nextStats) {
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
			nextStats = time.Now().Add(time.Duration(statsInterval) * time.Second)
		}

		frame, err := link.ReadFrame(ctx)
		if err != nil {
			if !rsbus.Recoverable(err) {
				if busEnded(ctx, err) || errors.Is(err, ErrConnectionClosed) {
					fmt.Printf("Connection closed\n")
					return nil
				}
				return err
			}
			if !synchronized {
				skipped++
				continue
			}
			stats.Update(nil, err, nil)
			printFrameError(err)
			continue
		}
		if frame == nil {
			continue
		}

		if !synchronized {
			synchronized = true
			if skipped > 0 {
				fmt.Printf("[SYNC] Synchronized after skipping %d bad frames\n\n", skipped)
			} else {
				fmt.Printf("[SYNC] Synchronized\n\n")
			}
		}

		anomalies := rsbus.ValidateFrame(frame)
		stats.Update(frame, nil, anomalies)
		switch {
		case len(anomalies) > 0:
			printAnomalies(frame, anomalies)
		case !errorsOnly:
			fmt.Print(rsbus.FormatFrame(frame))
		}
	}
}

// printFrameError prints a rejected frame in highlighted format
func printFrameError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mFRAME ERROR:\033[0m %v\n", timestamp, err)
	var fe *rsbus.FrameError
	if errors.As(err, &fe) && len(fe.Partial) > 0 {
		fmt.Printf("  Partial: % X\n", fe.Partial)
	}
	fmt.Printf("  >>> FRAME DROPPED <<<\n\n")
}

// printAnomalies prints a frame that was accepted but looks wrong
func printAnomalies(frame *rsbus.Frame, anomalies []rsbus.ValidationError) {
	timestamp := frame.Timestamp().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;33mANOMALY:\033[0m %s\n", timestamp, rsbus.FrameTypeName(frame))
	for i, a := range anomalies {
		fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, a.Message)
		switch a.Type {
		case rsbus.AnomalyChecksumBug:
			fmt.Printf("    checksum=0x%02X, expected=0x%02X\n", a.Details["checksum"], a.Details["expected"])
		case rsbus.AnomalyLengthMismatch:
			fmt.Printf("    length=%v, declared=%v\n", a.Details["length"], a.Details["declared"])
		case rsbus.AnomalyOversize:
			fmt.Printf("    length=%v (threshold %v)\n", a.Details["length"], a.Details["threshold"])
		}
	}
	fmt.Print(rsbus.FormatFrame(frame))
	fmt.Println()
}
