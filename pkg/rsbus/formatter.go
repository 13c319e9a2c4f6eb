// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rsbus

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable line
func FormatFrame(f *Frame) string {
	timestamp := f.Timestamp().Format("15:04:05.000")

	var b strings.Builder
	if f.IsPentair() {
		fmt.Fprintf(&b, "[%s] %-8s %-18s from 0x%02X to 0x%02X len=%d |",
			timestamp, f.Protocol(), FrameTypeName(f), f.Source(), f.Dest(), f.Len())
	} else {
		fmt.Fprintf(&b, "[%s] %-8s %-18s to 0x%02X (%s) len=%d |",
			timestamp, f.Protocol(), FrameTypeName(f), f.Dest(), JandyDeviceType(f.Dest()), f.Len())
	}
	for _, c := range f.Raw() {
		fmt.Fprintf(&b, "0x%02x|", c)
	}

	if f.IsJandy() && (f.Command() == CmdMsg || f.Command() == CmdMsgLong) {
		fmt.Fprintf(&b, " '%s'", printable(f.Payload()))
	}
	b.WriteString("\n")
	return b.String()
}

// FrameTypeName returns the human-readable name for a frame's command
func FrameTypeName(f *Frame) string {
	if f.IsPentair() {
		return pentairTypeName(f)
	}
	return jandyTypeName(f)
}

func jandyTypeName(f *Frame) string {
	raw := f.Raw()
	switch f.Command() {
	case CmdAck:
		if len(raw) > 5 && raw[5] == NUL {
			return "Ack"
		}
		return "Ack w/ Command"
	case CmdStatus:
		return "Status"
	case CmdMsg:
		return "Message"
	case CmdMsgLong:
		return "Lng Message"
	case CmdMsgLoopStart:
		if JandyDeviceType(f.Dest()) == DevicePDA {
			return "PDA Highlight"
		}
		return "Loop Start"
	case CmdProbe:
		return "Probe"
	case CmdGetID:
		return "GetID"
	case CmdPercent:
		return "AR %"
	case CmdPPM:
		return "AR PPM"
	case CmdIAQPageBtn:
		if f.Dest() == DevMaster {
			return "iAqualnk sendCmd"
		}
		return "iAq pButton"
	case CmdIAQPoll:
		return "iAq Poll"
	case CmdIAQMain:
		return "iAq Main status"
	case CmdIAQOneTouch:
		return "iAq 1Tch status"
	case CmdIAQAux:
		return "iAq AUX status"
	case CmdEPumpStatus:
		if len(raw) > JandyData {
			switch raw[JandyData] {
			case CmdEPumpRPM:
				return "ePump RPM"
			case CmdEPumpWatts:
				return "ePump Watts"
			}
		}
		return "ePump (unknown)"
	case CmdEPumpRPM:
		return "ePump set RPM"
	case CmdEPumpWatts:
		return "ePump get Watts"
	default:
		return fmt.Sprintf("Unknown '0x%02x'", f.Command())
	}
}

func pentairTypeName(f *Frame) string {
	toMaster := f.Dest() == PenDevMaster
	switch f.Command() {
	case PenCmdSpeed:
		if toMaster {
			return "VSP SetSpeed rtn"
		}
		return "VSP SetSpeed"
	case PenCmdRemoteCtl:
		if toMaster {
			return "VSP RemoteCtl rtn"
		}
		return "VSP RemoteCtl"
	case PenCmdPower:
		if toMaster {
			return "VSP SetPower rtn"
		}
		return "VSP SetPower"
	case PenCmdStatus:
		if toMaster {
			return "VSP Status"
		}
		return "VSP GetStatus"
	default:
		return fmt.Sprintf("Unknown '0x%02x'", f.Command())
	}
}

// printable replaces control bytes so panel text can be logged on one line
func printable(b []byte) string {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c >= 0x20 && c < 0x7F {
			out = append(out, c)
		} else {
			out = append(out, '.')
		}
	}
	return string(out)
}
