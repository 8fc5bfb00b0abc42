// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "github.com/ManuGH/petwatch/internal/validate"

var httpSchemes = []string{"http", "https"}

// Validate checks cfg and reports every problem at once as a
// validate.ValidationError.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.LogLevel("LogLevel", cfg.LogLevel)
	v.OneOf("LogFormat", cfg.LogFormat, []string{"json", "console"})
	if cfg.Store.Backend != StoreMemory {
		v.Directory("DataDir", cfg.DataDir, false)
	}

	v.HostPort("API.ListenAddr", cfg.API.ListenAddr)
	v.Range("API.RateLimit", cfg.API.RateLimit, 1, 100000)
	v.PositiveDuration("API.RateWindow", cfg.API.RateWindow)

	v.OneOf("Store.Backend", cfg.Store.Backend,
		[]string{StoreSQLite, StoreFile, StoreBadger, StoreRedis, StoreMemory})
	if cfg.Store.Backend == StoreRedis {
		v.NotEmpty("Store.Redis.Addr", cfg.Store.Redis.Addr)
		v.Range("Store.Redis.DB", cfg.Store.Redis.DB, 0, 15)
	}

	if cfg.Delivery.Twilio.Configured() {
		v.URL("Delivery.Twilio.BaseURL", cfg.Delivery.Twilio.BaseURL, httpSchemes)
	}
	if cfg.Delivery.BackendURL != "" {
		v.URL("Delivery.BackendURL", cfg.Delivery.BackendURL, httpSchemes)
	}
	v.Digits("Delivery.CountryPrefix", cfg.Delivery.CountryPrefix)
	v.PositiveDuration("Delivery.Timeout", cfg.Delivery.Timeout)
	v.Range("Delivery.Concurrency", cfg.Delivery.Concurrency, 1, 64)
	v.FloatRange("Delivery.RatePerSecond", cfg.Delivery.RatePerSecond, 0, 1000)

	v.PositiveDuration("Watchdog.EventTimeout", cfg.Watchdog.EventTimeout)
	v.OneOf("Watchdog.FollowUpRetry", cfg.Watchdog.FollowUpRetry,
		[]string{RetryTotalFailure, RetryPerRecipient})
	v.Location("Watchdog.Timezone", cfg.Watchdog.Timezone)

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
	}
	v.FloatRange("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)

	return v.Err()
}
