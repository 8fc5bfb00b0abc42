// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ManuGH/petwatch/internal/config"
	"github.com/ManuGH/petwatch/internal/daemon"
	plog "github.com/ManuGH/petwatch/internal/log"
	"github.com/ManuGH/petwatch/internal/version"
	"github.com/spf13/cobra"
)

// loadConfig applies defaults, the optional file and PETWATCH_ env vars.
func loadConfig(g *globalFlags) (config.AppConfig, error) {
	cfg, err := config.NewLoader(g.configPath, version.Version).Load()
	if err != nil {
		return cfg, err
	}
	plog.Configure(plog.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  os.Stderr,
		Service: cfg.LogService,
		Version: version.Version,
	})
	return cfg, nil
}

func newServeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the watchdog daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			if g.addr != "" {
				cfg.API.ListenAddr = g.addr
			}
			ctx, stop := daemon.WaitForShutdown()
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.AppConfig) error {
	logger := plog.WithComponent("daemon")
	logger.Info().
		Str(plog.FieldEvent, "daemon.starting").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("listen", cfg.API.ListenAddr).
		Str("data_dir", cfg.DataDir).
		Msg("starting petwatch")

	rt, err := daemon.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	mgr, err := daemon.NewManager(daemon.DefaultServerConfig(cfg.API.ListenAddr), daemon.Deps{
		Logger:     logger,
		APIHandler: rt.API.Handler(),
	})
	if err != nil {
		_ = rt.Close(context.WithoutCancel(ctx))
		return err
	}
	return daemon.NewApp(logger, mgr, rt).Run(ctx)
}
