// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"fmt"
	"strings"
	"time"
)

// ParsePanelTime reads the panel date ("08/29/16 MON") and time
// ("9:45 AM") lines
func ParsePanelTime(date, tm string, loc *time.Location) (time.Time, error) {
	date = strings.TrimSpace(date)
	if len(date) < 8 {
		return time.Time{}, fmt.Errorf("bad panel date %q", date)
	}
	t, err := time.ParseInLocation("01/02/06 3:04 PM", date[:8]+" "+strings.TrimSpace(tm), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad panel time %q %q: %w", date, tm, err)
	}
	return t, nil
}

func hexID(id byte) string {
	return fmt.Sprintf("0x%02x", id)
}
