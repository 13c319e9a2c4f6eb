// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panel

// Category is a bitmap of the message kinds seen during one polling loop.
// The panel only announces conditions that are active, so anything not
// seen by the next loop start decays to its default.
type Category uint16

const (
	CatFreeze Category = 1 << iota
	CatService
	CatSWG
	CatBoost
	CatTimeout
	CatRS13Button
	CatRS14Button
	CatRS15Button
	CatRS16Button
	CatBatteryLow
	CatSWGDevice
	CatPoolTemp
	CatSpaTemp
)

// Has reports whether every bit of c2 is set
func (c Category) Has(c2 Category) bool {
	return c&c2 == c2
}

// virtualButtonCategory maps a virtual key index to its loop bit
func virtualButtonCategory(i int) Category {
	switch i {
	case 13:
		return CatRS13Button
	case 14:
		return CatRS14Button
	case 15:
		return CatRS15Button
	case 16:
		return CatRS16Button
	}
	return 0
}
