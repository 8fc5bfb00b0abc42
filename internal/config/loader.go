// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/petwatch/internal/log"
	"gopkg.in/yaml.v3"
)

// envAliases maps canonical keys to the names used by the mobile app builds.
var envAliases = map[string]string{
	"PETWATCH_TWILIO_ACCOUNT_SID": "EXPO_PUBLIC_TWILIO_ACCOUNT_SID",
	"PETWATCH_TWILIO_AUTH_TOKEN":  "EXPO_PUBLIC_TWILIO_AUTH_TOKEN",
	"PETWATCH_TWILIO_FROM_NUMBER": "EXPO_PUBLIC_TWILIO_PHONE_NUMBER",
	"PETWATCH_SMS_SERVICE_URL":    "EXPO_PUBLIC_SMS_SERVICE_URL",
}

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Wrapper methods for mechanical connection tracking

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	if alias, ok := envAliases[key]; ok {
		if _, set := os.LookupEnv(key); !set {
			l.ConsumedEnvKeys[alias] = struct{}{}
			return ParseString(alias, defaultVal)
		}
	}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults
// It enforces Strict Validated Order: Parse File (Strict) -> Apply Env -> Validate
func (l *Loader) Load() (AppConfig, error) {
	// 1. Set defaults
	cfg := Defaults()

	// 2. Load from file (if provided)
	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	// 3. Override with environment variables (highest priority)
	if err := checkAliasConflicts(); err != nil {
		return cfg, err
	}
	l.mergeEnvConfig(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}

	// 4. Version from binary
	cfg.Version = l.version

	if cfg.Delivery.Twilio.Partial() {
		logger := log.WithComponent("config")
		logger.Warn().
			Str(log.FieldEvent, "config.twilio_partial").
			Msg("twilio credentials are incomplete; the keyed SMS API will not be used")
	}

	// 5. Validate final configuration
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.DataDir = l.envString("PETWATCH_DATA_DIR", cfg.DataDir)
	cfg.LogLevel = l.envString("PETWATCH_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString("PETWATCH_LOG_SERVICE", cfg.LogService)
	cfg.LogFormat = l.envString("PETWATCH_LOG_FORMAT", cfg.LogFormat)

	cfg.API.ListenAddr = l.envString("PETWATCH_LISTEN_ADDR", cfg.API.ListenAddr)
	cfg.API.RateLimit = l.envInt("PETWATCH_RATE_LIMIT", cfg.API.RateLimit)
	cfg.API.RateWindow = l.envDuration("PETWATCH_RATE_WINDOW", cfg.API.RateWindow)

	cfg.Store.Backend = l.envString("PETWATCH_STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Path = l.envString("PETWATCH_STORE_PATH", cfg.Store.Path)
	cfg.Store.Redis.Addr = l.envString("PETWATCH_REDIS_ADDR", cfg.Store.Redis.Addr)
	cfg.Store.Redis.Password = l.envString("PETWATCH_REDIS_PASSWORD", cfg.Store.Redis.Password)
	cfg.Store.Redis.DB = l.envInt("PETWATCH_REDIS_DB", cfg.Store.Redis.DB)
	cfg.Store.Redis.Prefix = l.envString("PETWATCH_REDIS_PREFIX", cfg.Store.Redis.Prefix)

	cfg.Delivery.Twilio.AccountSID = l.envString("PETWATCH_TWILIO_ACCOUNT_SID", cfg.Delivery.Twilio.AccountSID)
	cfg.Delivery.Twilio.AuthToken = l.envString("PETWATCH_TWILIO_AUTH_TOKEN", cfg.Delivery.Twilio.AuthToken)
	cfg.Delivery.Twilio.FromNumber = l.envString("PETWATCH_TWILIO_FROM_NUMBER", cfg.Delivery.Twilio.FromNumber)
	cfg.Delivery.Twilio.BaseURL = l.envString("PETWATCH_TWILIO_BASE_URL", cfg.Delivery.Twilio.BaseURL)
	cfg.Delivery.BackendURL = l.envString("PETWATCH_SMS_SERVICE_URL", cfg.Delivery.BackendURL)
	cfg.Delivery.CountryPrefix = l.envString("PETWATCH_COUNTRY_PREFIX", cfg.Delivery.CountryPrefix)
	cfg.Delivery.Timeout = l.envDuration("PETWATCH_DELIVERY_TIMEOUT", cfg.Delivery.Timeout)
	cfg.Delivery.Concurrency = l.envInt("PETWATCH_DELIVERY_CONCURRENCY", cfg.Delivery.Concurrency)
	cfg.Delivery.RatePerSecond = l.envFloat("PETWATCH_DELIVERY_RATE", cfg.Delivery.RatePerSecond)

	cfg.Watchdog.EventTimeout = l.envDuration("PETWATCH_EVENT_TIMEOUT", cfg.Watchdog.EventTimeout)
	cfg.Watchdog.FollowUpRetry = l.envString("PETWATCH_FOLLOWUP_RETRY", cfg.Watchdog.FollowUpRetry)
	cfg.Watchdog.AppName = l.envString("PETWATCH_APP_NAME", cfg.Watchdog.AppName)
	cfg.Watchdog.Timezone = l.envString("PETWATCH_TIMEZONE", cfg.Watchdog.Timezone)

	cfg.Profile.Path = l.envString("PETWATCH_PROFILE_PATH", cfg.Profile.Path)
	cfg.Profile.Watch = l.envBool("PETWATCH_PROFILE_WATCH", cfg.Profile.Watch)

	cfg.Telemetry.Enabled = l.envBool("PETWATCH_TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("PETWATCH_OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("PETWATCH_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("PETWATCH_OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = l.envString("PETWATCH_ENVIRONMENT", cfg.Telemetry.Environment)
}

func checkAliasConflicts() error {
	var conflicts []string
	for canonical, alias := range envAliases {
		cv, cok := os.LookupEnv(canonical)
		av, aok := os.LookupEnv(alias)
		if cok && aok && cv != "" && av != "" && cv != av {
			conflicts = append(conflicts, canonical+"/"+alias)
		}
	}
	if len(conflicts) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrAliasConflict, strings.Join(conflicts, ", "))
}
