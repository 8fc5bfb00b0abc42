// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/petwatch/internal/log"
)

// EnvPrefix is the prefix of every environment variable read by petwatch.
const EnvPrefix = "PETWATCH_"

// fromEnv reads key and converts it with parse. Unset or empty variables keep
// def; unparsable ones keep def and log a warning. Values of sensitive keys
// are never logged.
func fromEnv[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	logger := log.WithComponent("config")
	v, err := parse(raw)
	if err != nil {
		ev := logger.Warn().Str(log.FieldKey, key).Err(err)
		if !isSensitiveKey(key) {
			ev = ev.Str("value", raw)
		}
		ev.Msg("invalid environment value, using default")
		return def
	}
	ev := logger.Debug().Str(log.FieldKey, key).Str("source", "environment")
	if isSensitiveKey(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Str("value", raw)
	}
	ev.Msg("using environment variable")
	return v
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// ParseString returns the variable or def when unset or empty.
func ParseString(key, def string) string {
	return fromEnv(key, def, func(s string) (string, error) { return s, nil })
}

// ParseInt returns the variable as an int.
func ParseInt(key string, def int) int { return fromEnv(key, def, strconv.Atoi) }

// ParseDuration returns the variable in Go duration syntax ("90s", "5m").
func ParseDuration(key string, def time.Duration) time.Duration {
	return fromEnv(key, def, time.ParseDuration)
}

// ParseBool accepts true/false, 1/0, yes/no and on/off in any case.
func ParseBool(key string, def bool) bool { return fromEnv(key, def, parseBool) }

// ParseFloat returns the variable as a float64.
func ParseFloat(key string, def float64) float64 {
	return fromEnv(key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}
