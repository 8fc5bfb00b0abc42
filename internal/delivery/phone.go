// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package delivery

import "strings"

// DefaultCountryPrefix is used for ten digit national numbers.
const DefaultCountryPrefix = "1"

// NormalizePhone converts a free-form phone number to +<digits>.
// Ten digit numbers get countryPrefix; eleven digit numbers starting with 1
// are taken as already carrying the North American prefix.
// NormalizePhone(NormalizePhone(p)) == NormalizePhone(p).
func NormalizePhone(phone, countryPrefix string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if countryPrefix == "" {
		countryPrefix = DefaultCountryPrefix
	}

	if len(digits) == 10 {
		return "+" + countryPrefix + digits
	}
	return "+" + digits
}
