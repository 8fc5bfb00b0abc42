// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ManuGH/petwatch/internal/daemon"
	"github.com/spf13/cobra"
)

func newReconcileCmd(g *globalFlags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run startup recovery against the state store",
		Long: "Replays missed alerts and repairs the persisted state without starting the API. " +
			"Running daemons reconcile on start, so this refuses to run while one answers on --addr.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				if err := newAPIClient(g).do(cmd.Context(), http.MethodGet, "/healthz", nil, nil); err == nil {
					return fmt.Errorf("a daemon is running; it reconciles on start (use --force to override)")
				}
			}
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rt, err := daemon.Bootstrap(ctx, cfg)
			if err != nil {
				return err
			}
			// Future events are rescheduled into this process only; the
			// daemon reschedules them again when it starts.
			defer func() { _ = rt.Close(ctx) }()

			rep, err := rt.Recover(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "run even if a daemon answers")
	return cmd
}
