// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rsbus

// DeviceType classifies a Jandy bus address by the range it falls in
type DeviceType int

const (
	DeviceUnknown DeviceType = iota
	DeviceMaster
	DeviceAllButton
	DeviceRSSerialAdapter
	DeviceOneTouch
	DeviceAqualinkTouch
	DeviceIAqualink
	DeviceSpaRemote
	DeviceRemotePowerCenter
	DevicePCDock
	DevicePDA
	DeviceSWG
	DeviceJandyPump
	DeviceJXiHeater
	DeviceLXHeater
	DeviceChemFeeder
	DeviceChemAnalyzer
	DeviceHeatPump
	DeviceJandyLight
)

type addressRange struct {
	min, max byte
	device   DeviceType
}

var jandyRanges = []addressRange{
	{0x00, 0x03, DeviceMaster},
	{0x08, 0x0B, DeviceAllButton},
	{0x20, 0x23, DeviceSpaRemote},
	{0x28, 0x2B, DeviceRemotePowerCenter},
	{0x30, 0x33, DeviceAqualinkTouch},
	{0x38, 0x3B, DeviceLXHeater},
	{0x40, 0x43, DeviceOneTouch},
	{0x48, 0x49, DeviceRSSerialAdapter},
	{0x50, 0x53, DeviceSWG},
	{0x58, 0x5B, DevicePCDock},
	{0x60, 0x63, DevicePDA},
	{0x68, 0x6B, DeviceJXiHeater},
	{0x70, 0x73, DeviceHeatPump},
	{0x78, 0x7B, DeviceJandyPump},
	{0x80, 0x83, DeviceChemFeeder},
	{0x84, 0x87, DeviceChemAnalyzer},
	{0xA0, 0xA3, DeviceIAqualink},
	{0xE0, 0xE3, DeviceJandyPump},
	{0xF0, 0xF4, DeviceJandyLight},
}

// JandyDeviceType returns the device class of a Jandy bus address
func JandyDeviceType(id byte) DeviceType {
	for _, r := range jandyRanges {
		if id >= r.min && id <= r.max {
			return r.device
		}
	}
	return DeviceUnknown
}

// IsAllButtonID reports whether id is an AllButton keypad address
func IsAllButtonID(id byte) bool { return JandyDeviceType(id) == DeviceAllButton }

// IsRSSerialAdapterID reports whether id is an RS serial adapter address
func IsRSSerialAdapterID(id byte) bool { return JandyDeviceType(id) == DeviceRSSerialAdapter }

// IsOneTouchID reports whether id is a OneTouch keypad address
func IsOneTouchID(id byte) bool { return JandyDeviceType(id) == DeviceOneTouch }

// IsAqualinkTouchID reports whether id is an AqualinkTouch keypad address
func IsAqualinkTouchID(id byte) bool { return JandyDeviceType(id) == DeviceAqualinkTouch }

// IsIAqualinkID reports whether id is an iAqualink adapter address
func IsIAqualinkID(id byte) bool { return JandyDeviceType(id) == DeviceIAqualink }

// IsPCDockID reports whether id is a PC dock address
func IsPCDockID(id byte) bool { return JandyDeviceType(id) == DevicePCDock }

// IsPDAID reports whether id is a PDA keypad address
func IsPDAID(id byte) bool { return JandyDeviceType(id) == DevicePDA }

// IsPentairPumpID reports whether id is in the Pentair pump address space
func IsPentairPumpID(id byte) bool { return id >= 0x60 && id <= 0x6F }

func (d DeviceType) String() string {
	switch d {
	case DeviceMaster:
		return "Master"
	case DeviceAllButton:
		return "AllButton"
	case DeviceRSSerialAdapter:
		return "RS SerialAdapter"
	case DeviceOneTouch:
		return "OneTouch"
	case DeviceAqualinkTouch:
		return "AqualinkTouch"
	case DeviceIAqualink:
		return "iAqualink"
	case DeviceSpaRemote:
		return "SpaRemote"
	case DeviceRemotePowerCenter:
		return "RemotePowerCenter"
	case DevicePCDock:
		return "PC Dock"
	case DevicePDA:
		return "PDA"
	case DeviceSWG:
		return "SWG"
	case DeviceJandyPump:
		return "ePump"
	case DeviceJXiHeater:
		return "JXi Heater"
	case DeviceLXHeater:
		return "LX Heater"
	case DeviceChemFeeder:
		return "Chem Feeder"
	case DeviceChemAnalyzer:
		return "Chem Analyzer"
	case DeviceHeatPump:
		return "Heat Pump"
	case DeviceJandyLight:
		return "Jandy Light"
	default:
		return "Unknown"
	}
}
