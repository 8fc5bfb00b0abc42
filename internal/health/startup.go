// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/ManuGH/petwatch/internal/config"
	"github.com/ManuGH/petwatch/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment before the daemon
// bootstraps. The data directory is created when missing.
func PerformStartupChecks(cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")

	if cfg.Store.Backend != config.StoreRedis && cfg.Store.Backend != config.StoreMemory {
		if err := checkDataDir(logger, cfg.DataDir); err != nil {
			return fmt.Errorf("data directory check failed: %w", err)
		}
	}
	if err := checkTargetedValidations(logger, cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger.Info().Str(log.FieldEvent, "startup.checks_passed").Msg("startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := writable(path); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	logger.Debug().Str(log.FieldPath, path).Msg("data directory is writable")
	return nil
}

func checkTargetedValidations(logger zerolog.Logger, cfg config.AppConfig) error {
	if cfg.API.ListenAddr != "" {
		_, port, err := net.SplitHostPort(cfg.API.ListenAddr)
		if err != nil {
			return fmt.Errorf("invalid API listen address %q: %w", cfg.API.ListenAddr, err)
		}
		portNum, err := strconv.Atoi(port)
		if err != nil || portNum < 0 || portNum > 65535 {
			return fmt.Errorf("invalid API listen port %q in %q", port, cfg.API.ListenAddr)
		}
	}

	if raw := cfg.Delivery.BackendURL; raw != "" && !cfg.Delivery.Twilio.Configured() {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid SMS backend URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("SMS backend URL scheme must be http or https, got: %s", u.Scheme)
		}
	}

	if !cfg.Delivery.Twilio.Configured() && cfg.Delivery.BackendURL == "" {
		logger.Warn().
			Str(log.FieldEvent, "startup.delivery_simulated").
			Msg("no SMS channel configured; alerts will only be simulated")
	}
	return nil
}
