// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/petwatch/internal/log"
	"github.com/rs/zerolog"
)

// App owns the long-lived runtime lifecycle (profile watcher, reload signal,
// recovery) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	runtime      *Runtime
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, rt *Runtime) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		runtime:      rt,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run recovers persisted state, then serves until ctx is cancelled or a
// fatal error occurs. The runtime is closed through a shutdown hook.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	if a.runtime == nil {
		return ErrMissingRuntime
	}

	rep, err := a.runtime.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recovery: %w", err)
	}
	a.logger.Info().
		Str(log.FieldEvent, "daemon.recovered").
		Str(log.FieldNewState, string(rep.State)).
		Int("replayed", len(rep.Replayed)).
		Int("rescheduled", rep.Rescheduled).
		Bool("repaired", rep.Repaired).
		Msg("startup recovery completed")

	a.manager.RegisterShutdownHook("runtime", a.runtime.Close)

	g, ctx := errgroup.WithContext(ctx)

	// Profile watching is best-effort: the last good snapshot stays in use.
	if a.runtime.Config.Profile.Watch {
		g.Go(func() error {
			if err := a.runtime.Profiles.Watch(ctx); err != nil {
				a.logger.Warn().Err(err).Str(log.FieldEvent, "profile.watch_failed").Msg("profile watcher stopped")
			}
			return nil
		})
	}

	// SIGHUP trigger for manual profile reload.
	if a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(log.FieldEvent, "profile.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading profile")
					_ = a.runtime.Profiles.Reload()
				}
			}
		})
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
