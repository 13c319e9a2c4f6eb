// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rsbus

import "fmt"

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyOversize AnomalyType = iota
	AnomalyLengthMismatch
	AnomalyChecksumBug
)

// ValidationError represents a frame that was accepted but looks wrong
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame detects anomalies on an accepted frame
// Returns a slice of validation errors (empty if frame is clean)
func ValidateFrame(f *Frame) []ValidationError {
	errors := []ValidationError{}

	if f.Len() >= LargeFrameThreshold {
		// iAqualink bulk status frames are legitimately large
		cmd := f.Command()
		if !f.IsJandy() || (cmd != CmdIAQAux && cmd != CmdIAQOneTouch) {
			errors = append(errors, ValidationError{
				Type:    AnomalyOversize,
				Message: fmt.Sprintf("serial frame seems too large at length %d", f.Len()),
				Details: map[string]interface{}{"length": f.Len(), "threshold": LargeFrameThreshold},
			})
		}
	}

	if f.FirmwareBug() {
		errors = append(errors, ValidationError{
			Type:    AnomalyChecksumBug,
			Message: "ignoring bad checksum, seems to be bug in Jandy protocol",
			Details: map[string]interface{}{"checksum": f.Checksum(), "expected": JandyChecksum(f.Raw())},
		})
	}

	if f.LengthMismatch() {
		errors = append(errors, ValidationError{
			Type:    AnomalyLengthMismatch,
			Message: "pentair checksum is accurate but length is not",
			Details: map[string]interface{}{"length": f.Len(), "declared": int(f.Raw()[PentairLength])},
		})
	}

	return errors
}
