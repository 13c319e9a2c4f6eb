// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package autoconfig

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Thermoquad/poolbus/pkg/rsbus"
)

// allButtonProbe answers the master on an AllButton address until the
// panel shows its revision line
type allButtonProbe struct {
	pass  byte
	id    byte
	found bool
}

func (p *allButtonProbe) feed(f *rsbus.Frame) (string, Reply) {
	if p.found {
		return "", Reply{}
	}
	switch {
	case f.Command() == rsbus.CmdProbe:
		if p.id == 0 {
			p.id = f.Dest()
			return "", Reply{Kind: ReplyAck}
		}
	case f.Dest() == p.id:
		if f.Command() == rsbus.CmdMsg {
			if text := messageText(f); strings.Contains(text, " REV") {
				p.found = true
				return strings.TrimSpace(text), Reply{Kind: ReplyAck}
			}
		}
		return "", Reply{Kind: ReplyAck}
	}
	return "", Reply{}
}

// pcDockProbe acts as a PC dock: it answers the first probe, then uses the
// next two probes to ask for the panel revision and type
type pcDockProbe struct {
	pass  byte
	id    byte
	count int
	found int
}

func (p *pcDockProbe) feed(f *rsbus.Frame) (string, Reply) {
	if p.found >= 2 {
		return "", Reply{}
	}
	if f.Command() == rsbus.CmdProbe {
		var reply Reply
		switch {
		case p.count == 0:
			p.id = f.Dest()
			reply = Reply{Kind: ReplyAck}
		case p.count == 1 && f.Dest() == p.id:
			reply = Reply{Kind: ReplyCommand, Body: pcDockRevision}
		case p.count == 2 && f.Dest() == p.id:
			reply = Reply{Kind: ReplyCommand, Body: pcDockPanelType}
		}
		p.count++
		return "", reply
	}
	if f.Command() == rsbus.CmdMsg && f.Dest() == p.id {
		if p.count == 2 || p.count == 3 {
			p.found++
			return strings.TrimSpace(messageText(f)), Reply{Kind: ReplyAck}
		}
		return "", Reply{Kind: ReplyAck}
	}
	return "", Reply{}
}

// messageText is the text of a message frame, after its index byte
func messageText(f *rsbus.Frame) string {
	payload := f.Payload()
	if len(payload) < 2 {
		return ""
	}
	text := payload[1:]
	if i := strings.IndexByte(string(text), 0); i >= 0 {
		text = text[:i]
	}
	return string(text)
}

// parseRevision finds "REV x" in a panel line. The CPU part number is the
// first word when the line doesn't start with REV.
func parseRevision(line string) (rev, cpu string) {
	fields := strings.Fields(line)
	for i, f := range fields {
		if (f == "REV" || f == "REV.") && i+1 < len(fields) {
			rev = fields[i+1]
			if i > 0 {
				cpu = fields[0]
			}
			return rev, cpu
		}
	}
	return "", ""
}

type panelType struct {
	name  string
	size  int
	combo bool
	pda   bool
}

// RS-8 Combo, PD-8 Only, RS-2/14 Dual
var panelTypeRe = regexp.MustCompile(`\b(RS|PD)-(\d+)(?:/(\d+))?\s+(Combo|Only|Dual)\b`)

func parsePanelType(line string) (panelType, bool) {
	m := panelTypeRe.FindStringSubmatch(line)
	if m == nil {
		return panelType{}, false
	}
	size, _ := strconv.Atoi(m[2])
	if m[3] != "" {
		extra, _ := strconv.Atoi(m[3])
		size += extra
	}
	return panelType{
		name:  m[0],
		size:  size,
		combo: m[4] != "Only",
		pda:   m[1] == "PD",
	}, true
}

// supports reports which extended keypads a panel revision talks to.
// AqualinkTouch needs revision Q or later and OneTouch revision O or
// later.
func supports(rev string) (aqualinkTouch, oneTouch bool) {
	if rev == "" {
		return false, false
	}
	c := rev[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	return c >= 'Q', c >= 'O'
}

func hexID(id byte) string {
	return fmt.Sprintf("0x%02x", id)
}
