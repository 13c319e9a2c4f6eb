// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panel

import (
	"strings"
	"unicode"
)

// containsFold is a case-insensitive substring test
func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToUpper(s), strings.ToUpper(sub))
}

// hasPrefixFold is a case-insensitive prefix test
func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// leadingInt parses an optionally signed integer at the start of s after
// leading spaces, stopping at the first non digit. It returns 0 when no
// digits are present.
func leadingInt(s string) int {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
	}
	if neg {
		return -n
	}
	return n
}

// intAt is leadingInt at a fixed offset, 0 when s is shorter
func intAt(s string, offset int) int {
	if offset >= len(s) {
		return 0
	}
	return leadingInt(s[offset:])
}

// cleanText converts panel bytes to a string. The panel pads lines with
// NULs and uses a few bytes above 0x7F for symbols.
func cleanText(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		switch {
		case c == 0:
			return sb.String()
		case c < 0x20 || c > 0x7E:
			sb.WriteByte(' ')
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// hhmmToMinutes converts "HH:MM" to minutes
func hhmmToMinutes(s string) int {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return 0
	}
	return leadingInt(s[:i])*60 + leadingInt(s[i+1:])
}

// prettyLabel normalises an aux label read from the panel: trimmed,
// first letter of each word upper case, the rest lower case
func prettyLabel(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// revisionOf extracts the text after "REV" from a firmware line such as
// "B0029221 REV T.2"
func revisionOf(line string) string {
	fields := strings.Fields(line)
	for i, f := range fields {
		if (f == "REV" || f == "REV.") && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}
