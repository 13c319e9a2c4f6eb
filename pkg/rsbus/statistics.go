// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rsbus

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks frame statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames      uint64
	ValidFrames      uint64
	JandyFrames      uint64
	PentairFrames    uint64
	ChecksumErrors   uint64
	ReadErrors       uint64
	OversizeErrors   uint64
	UndersizeErrors  uint64
	Anomalies        uint64
	LengthMismatches uint64
	FirmwareBugs     uint64
	LargeFrames      uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update updates statistics based on a frame and its errors
func (s *Statistics) Update(frame *Frame, decodeErr error, validationErrors []ValidationError) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		switch {
		case errors.Is(decodeErr, ErrChecksum):
			s.ChecksumErrors++
		case errors.Is(decodeErr, ErrTooLarge):
			s.OversizeErrors++
		case errors.Is(decodeErr, ErrTooSmall):
			s.UndersizeErrors++
		default:
			s.ReadErrors++
		}
		return
	}

	if frame == nil {
		return
	}
	if frame.IsPentair() {
		s.PentairFrames++
	} else {
		s.JandyFrames++
	}

	for _, v := range validationErrors {
		s.Anomalies++
		switch v.Type {
		case AnomalyLengthMismatch:
			s.LengthMismatches++
		case AnomalyChecksumBug:
			s.FirmwareBugs++
		case AnomalyOversize:
			s.LargeFrames++
		}
	}
	s.ValidFrames++
}

func (s *Statistics) errorCount() uint64 {
	return s.ChecksumErrors + s.ReadErrors + s.OversizeErrors + s.UndersizeErrors
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.errorCount()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalFrames == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, percent(s.ValidFrames))
	result += fmt.Sprintf("  Jandy:           %6d\n", s.JandyFrames)
	result += fmt.Sprintf("  Pentair:         %6d\n", s.PentairFrames)

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, percent(s.ChecksumErrors))
	}
	if s.ReadErrors > 0 {
		result += fmt.Sprintf("Read Errors:     %8d (%.1f%%)\n", s.ReadErrors, percent(s.ReadErrors))
	}
	if s.OversizeErrors > 0 {
		result += fmt.Sprintf("Too Large:       %8d (%.1f%%)\n", s.OversizeErrors, percent(s.OversizeErrors))
	}
	if s.UndersizeErrors > 0 {
		result += fmt.Sprintf("Too Small:       %8d (%.1f%%)\n", s.UndersizeErrors, percent(s.UndersizeErrors))
	}
	if s.Anomalies > 0 {
		result += fmt.Sprintf("Anomalies:       %8d\n", s.Anomalies)
		if s.LengthMismatches > 0 {
			result += fmt.Sprintf("  Length Mismatch:  %5d\n", s.LengthMismatches)
		}
		if s.FirmwareBugs > 0 {
			result += fmt.Sprintf("  Firmware Bug:     %5d\n", s.FirmwareBugs)
		}
		if s.LargeFrames > 0 {
			result += fmt.Sprintf("  Large Frames:     %5d\n", s.LargeFrames)
		}
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
