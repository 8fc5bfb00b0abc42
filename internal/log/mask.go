// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import "strings"

// MaskPhone keeps only the last four digits of a phone number for log output.
func MaskPhone(phone string) string {
	digits := make([]rune, 0, len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + string(digits[len(digits)-4:])
}

// MaskPhones applies MaskPhone to every entry.
func MaskPhones(phones []string) []string {
	out := make([]string, len(phones))
	for i, p := range phones {
		out[i] = MaskPhone(p)
	}
	return out
}
