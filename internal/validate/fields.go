// SPDX-License-Identifier: MIT

package validate

import (
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel accepts any level name zerolog understands.
func (v *Validator) LogLevel(field, value string) {
	if value == "" {
		v.Addf(field, value, "must not be empty")
		return
	}
	if _, err := zerolog.ParseLevel(value); err != nil {
		v.Addf(field, value, "unknown log level %q", value)
	}
}

// PositiveDuration rejects zero and negative durations.
func (v *Validator) PositiveDuration(field string, d time.Duration) {
	if d <= 0 {
		v.Addf(field, d, "must be positive, got %s", d)
	}
}

// Location requires an IANA zone name; empty means the local zone.
func (v *Validator) Location(field, name string) {
	if _, err := time.LoadLocation(name); err != nil {
		v.Addf(field, name, "unknown time zone: %v", err)
	}
}

// HostPort requires a host:port listen address with a valid port.
func (v *Validator) HostPort(field, addr string) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		v.Addf(field, addr, "invalid listen address: %v", err)
		return
	}
	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		v.Addf(field, addr, "invalid port %q", port)
	}
}
