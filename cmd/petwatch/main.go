// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command petwatch runs the pet-safety watchdog daemon and talks to it.
package main

import (
	"fmt"
	"os"

	"github.com/ManuGH/petwatch/internal/version"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	addr       string
	timeoutSec int
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "petwatch",
		Short:         "Dead-man's-switch for pet owners",
		Long:          "petwatch alerts emergency contacts by SMS when an armed safety window expires without a check-in.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "path to config file (YAML)")
	root.PersistentFlags().StringVar(&g.addr, "addr", "", "daemon address (defaults to api.listenAddr)")
	root.PersistentFlags().IntVar(&g.timeoutSec, "timeout", 10, "request timeout in seconds")

	root.AddCommand(
		newServeCmd(g),
		newArmCmd(g),
		newCloseCmd(g, "check-in", "Report that you are safe and close the window", "/api/v1/watch/check-in"),
		newCloseCmd(g, "cancel", "Cancel the window without checking in", "/api/v1/watch/cancel"),
		newStatusCmd(g),
		newReconcileCmd(g),
		newConfigCmd(g),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
