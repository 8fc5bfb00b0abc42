// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the watchdog runtime and owns its lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/petwatch/internal/api"
	"github.com/ManuGH/petwatch/internal/compose"
	"github.com/ManuGH/petwatch/internal/config"
	"github.com/ManuGH/petwatch/internal/delivery"
	"github.com/ManuGH/petwatch/internal/health"
	"github.com/ManuGH/petwatch/internal/log"
	"github.com/ManuGH/petwatch/internal/profile"
	"github.com/ManuGH/petwatch/internal/recovery"
	"github.com/ManuGH/petwatch/internal/scheduler"
	"github.com/ManuGH/petwatch/internal/telemetry"
	"github.com/ManuGH/petwatch/internal/timerstate"
	"github.com/ManuGH/petwatch/internal/watchdog"
	"github.com/rs/zerolog"
)

// Runtime is the assembled watchdog process.
type Runtime struct {
	Config     config.AppConfig
	Store      *timerstate.Store
	Scheduler  *scheduler.Local
	Machine    *watchdog.Machine
	Profiles   *profile.Store
	Reconciler *recovery.Reconciler
	API        *api.Server

	telemetry *telemetry.Provider
	logger    zerolog.Logger
}

// Option customises Bootstrap.
type Option func(*bootstrapOptions)

type bootstrapOptions struct {
	kv       timerstate.KV
	notifier watchdog.Notifier
	clock    scheduler.Clock
}

// WithKV injects an already opened state backend.
func WithKV(kv timerstate.KV) Option { return func(o *bootstrapOptions) { o.kv = kv } }

// WithNotifier replaces the log-only local notifier.
func WithNotifier(n watchdog.Notifier) Option { return func(o *bootstrapOptions) { o.notifier = n } }

// WithClock replaces the scheduler and state machine clock.
func WithClock(c scheduler.Clock) Option { return func(o *bootstrapOptions) { o.clock = c } }

// Bootstrap opens storage, selects the delivery chain and assembles the
// state machine. Nothing is scheduled until Recover runs.
func Bootstrap(ctx context.Context, cfg config.AppConfig, opts ...Option) (rt *Runtime, err error) {
	var o bootstrapOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = scheduler.RealClock{}
	}

	logger := log.WithComponent("daemon")
	rt = &Runtime{Config: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
			rt = nil
		}
	}()

	if err = health.PerformStartupChecks(cfg); err != nil {
		return rt, err
	}

	rt.telemetry, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return rt, fmt.Errorf("telemetry: %w", err)
	}

	kv := o.kv
	if kv == nil {
		kv, err = timerstate.OpenKV(ctx, timerstate.Options{
			Backend:       cfg.Store.Backend,
			Path:          cfg.StorePath(),
			RedisAddr:     cfg.Store.Redis.Addr,
			RedisPassword: cfg.Store.Redis.Password,
			RedisDB:       cfg.Store.Redis.DB,
			RedisPrefix:   cfg.Store.Redis.Prefix,
		})
		if err != nil {
			return rt, fmt.Errorf("open timer state: %w", err)
		}
	}
	backend := cfg.Store.Backend
	if backend == "" {
		backend = config.StoreSQLite
	}
	rt.Store = timerstate.NewStore(kv, backend)

	chain := delivery.NewChain(delivery.Config{
		Twilio: delivery.TwilioConfig{
			AccountSID: cfg.Delivery.Twilio.AccountSID,
			AuthToken:  cfg.Delivery.Twilio.AuthToken,
			FromNumber: cfg.Delivery.Twilio.FromNumber,
			BaseURL:    cfg.Delivery.Twilio.BaseURL,
		},
		BackendURL:    cfg.Delivery.BackendURL,
		CountryPrefix: cfg.Delivery.CountryPrefix,
		Timeout:       cfg.Delivery.Timeout,
		Concurrency:   cfg.Delivery.Concurrency,
		RatePerSecond: cfg.Delivery.RatePerSecond,
	}, delivery.WithClock(o.clock.Now))

	// The sink only fires for events the machine scheduled, so machine is set
	// before the first call.
	var machine *watchdog.Machine
	rt.Scheduler = scheduler.NewLocal(func(ctx context.Context, p scheduler.Payload) {
		if _, err := machine.OnScheduledEvent(ctx, p); err != nil {
			logger.Error().Err(err).
				Str(log.FieldEvent, "watch.event_failed").
				Str(log.FieldKind, string(p.Kind)).
				Int64(log.FieldGeneration, p.Generation).
				Msg("scheduled event failed")
		}
	}, scheduler.WithClock(o.clock), scheduler.WithFireTimeout(cfg.Watchdog.EventTimeout))

	mopts := []watchdog.Option{
		watchdog.WithClock(o.clock.Now),
		watchdog.WithRetryPolicy(watchdog.RetryPolicy(cfg.Watchdog.FollowUpRetry)),
		watchdog.WithDispatchTimeout(cfg.Watchdog.EventTimeout),
		watchdog.WithComposer(compose.Composer{AppName: cfg.Watchdog.AppName, Location: cfg.Location()}),
	}
	if o.notifier != nil {
		mopts = append(mopts, watchdog.WithNotifier(o.notifier))
	}
	machine = watchdog.New(rt.Store, rt.Scheduler, chain, mopts...)
	rt.Machine = machine
	rt.Reconciler = recovery.New(machine, rt.Scheduler, o.clock.Now)

	rt.Profiles, err = profile.Open(cfg.ProfilePath())
	if err != nil {
		return rt, fmt.Errorf("open profile: %w", err)
	}

	var checkers []health.Checker
	if backend != config.StoreRedis && backend != config.StoreMemory {
		checkers = append(checkers, health.NewWritableDirChecker("data_dir", cfg.DataDir))
	}
	rt.API = api.New(api.Config{
		Version:        cfg.Version,
		RateLimit:      cfg.API.RateLimit,
		RateWindow:     cfg.API.RateWindow,
		TracingService: cfg.LogService,
		Checkers:       checkers,
	}, machine, rt.Profiles)

	logger.Info().
		Str(log.FieldEvent, "daemon.bootstrapped").
		Str(log.FieldStore, backend).
		Str(log.FieldBackend, string(chain.Backend())).
		Str("retry_policy", cfg.Watchdog.FollowUpRetry).
		Msg("runtime assembled")
	return rt, nil
}

// Recover reconciles persisted state with the clock. It must complete before
// the API accepts requests.
func (rt *Runtime) Recover(ctx context.Context) (recovery.Report, error) {
	return rt.Reconciler.Reconcile(ctx)
}

// Close stops the scheduler, then releases storage and telemetry.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.Scheduler != nil {
		if err := rt.Scheduler.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scheduler: %w", err))
		}
	}
	if rt.Store != nil {
		if err := rt.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("timer state: %w", err))
		}
	}
	if rt.telemetry != nil {
		if err := rt.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}

// WaitForShutdown returns a context cancelled on interrupt or termination.
func WaitForShutdown() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
