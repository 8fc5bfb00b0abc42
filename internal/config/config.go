// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads petwatch runtime configuration from defaults, an
// optional YAML file and PETWATCH_ environment variables, in that order.
package config

import (
	"path/filepath"
	"time"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
	StoreBadger = "badger"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Follow-up retry policies.
const (
	// RetryTotalFailure retries a follow-up only when nobody was reached.
	RetryTotalFailure = "total_failure"
	// RetryPerRecipient retries every recipient still in FailedTo.
	RetryPerRecipient = "per_recipient"
)

// AppConfig is the effective configuration of a petwatch process.
type AppConfig struct {
	Version    string `yaml:"-"`
	DataDir    string `yaml:"dataDir"`
	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`
	LogFormat  string `yaml:"logFormat"`

	API       APIConfig       `yaml:"api"`
	Store     StoreConfig     `yaml:"store"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	Watchdog  WatchdogConfig  `yaml:"watchdog"`
	Profile   ProfileConfig   `yaml:"profile"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// APIConfig controls the HTTP listener.
type APIConfig struct {
	ListenAddr string        `yaml:"listenAddr"`
	RateLimit  int           `yaml:"rateLimit"`
	RateWindow time.Duration `yaml:"rateWindow"`
}

// StoreConfig selects the persistence backend of the timer state.
type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig is used when Backend is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// DeliveryConfig configures the SMS gateway chain.
type DeliveryConfig struct {
	Twilio        TwilioConfig  `yaml:"twilio"`
	BackendURL    string        `yaml:"backendUrl"`
	CountryPrefix string        `yaml:"countryPrefix"`
	Timeout       time.Duration `yaml:"timeout"`
	Concurrency   int           `yaml:"concurrency"`
	// RatePerSecond paces per-recipient sends; 0 disables pacing.
	RatePerSecond float64 `yaml:"ratePerSecond"`
}

// TwilioConfig holds credentials of the keyed per-recipient SMS API.
type TwilioConfig struct {
	AccountSID string `yaml:"accountSid"`
	AuthToken  string `yaml:"authToken"`
	FromNumber string `yaml:"fromNumber"`
	BaseURL    string `yaml:"baseUrl"`
}

// Configured reports whether all three credentials are present.
func (t TwilioConfig) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

// Partial reports whether some but not all credentials are present.
func (t TwilioConfig) Partial() bool {
	set := t.AccountSID != "" || t.AuthToken != "" || t.FromNumber != ""
	return set && !t.Configured()
}

// WatchdogConfig tunes the state machine.
type WatchdogConfig struct {
	EventTimeout  time.Duration `yaml:"eventTimeout"`
	FollowUpRetry string        `yaml:"followUpRetry"`
	AppName       string        `yaml:"appName"`
	Timezone      string        `yaml:"timezone"`
}

// ProfileConfig points at the YAML profile maintained by the external editor.
type ProfileConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		DataDir:    "/var/lib/petwatch",
		LogLevel:   "info",
		LogService: "petwatch",
		LogFormat:  "json",
		API: APIConfig{
			ListenAddr: "127.0.0.1:8088",
			RateLimit:  60,
			RateWindow: time.Minute,
		},
		Store: StoreConfig{
			Backend: StoreSQLite,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "petwatch:",
			},
		},
		Delivery: DeliveryConfig{
			Twilio:        TwilioConfig{BaseURL: "https://api.twilio.com"},
			CountryPrefix: "1",
			Timeout:       15 * time.Second,
			Concurrency:   4,
			RatePerSecond: 1,
		},
		Watchdog: WatchdogConfig{
			EventTimeout:  2 * time.Minute,
			FollowUpRetry: RetryTotalFailure,
			AppName:       "PetWatch",
			Timezone:      "Local",
		},
		Profile: ProfileConfig{Watch: true},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}

// StorePath returns the on-disk location of the timer state for file based
// backends, derived from DataDir unless set explicitly.
func (c AppConfig) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	switch c.Store.Backend {
	case StoreFile:
		return filepath.Join(c.DataDir, "state")
	case StoreBadger:
		return filepath.Join(c.DataDir, "badger")
	default:
		return filepath.Join(c.DataDir, "petwatch.db")
	}
}

// ProfilePath returns the profile file, defaulting to <DataDir>/profile.yaml.
func (c AppConfig) ProfilePath() string {
	if c.Profile.Path != "" {
		return c.Profile.Path
	}
	return filepath.Join(c.DataDir, "profile.yaml")
}

// Location resolves Watchdog.Timezone.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Watchdog.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
