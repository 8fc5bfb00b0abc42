// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/petwatch/internal/domain/watch"
	"github.com/ManuGH/petwatch/internal/watchdog"
	"github.com/spf13/cobra"
)

type armPayload struct {
	DurationMinutes int               `json:"duration_minutes"`
	PetName         string            `json:"pet_name,omitempty"`
	Recipients      []watch.Recipient `json:"recipients,omitempty"`
}

// parseContact accepts "Name=+15551234567".
func parseContact(s string) (watch.Recipient, error) {
	name, phone, ok := strings.Cut(s, "=")
	name, phone = strings.TrimSpace(name), strings.TrimSpace(phone)
	if !ok || name == "" || phone == "" {
		return watch.Recipient{}, fmt.Errorf("invalid contact %q, want NAME=PHONE", s)
	}
	return watch.Recipient{Name: name, Phone: phone}, nil
}

func newArmCmd(g *globalFlags) *cobra.Command {
	var (
		minutes  int
		pet      string
		contacts []string
	)
	cmd := &cobra.Command{
		Use:   "arm",
		Short: "Arm a safety window",
		Long:  "Arm a safety window. Pet and contacts default to the profile file when omitted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body := armPayload{DurationMinutes: minutes, PetName: pet}
			for _, c := range contacts {
				r, err := parseContact(c)
				if err != nil {
					return err
				}
				body.Recipients = append(body.Recipients, r)
			}
			var resp struct {
				Handles []string `json:"handles"`
			}
			if err := newAPIClient(g).do(cmd.Context(), http.MethodPost, "/api/v1/watch", body, &resp); err != nil {
				return err
			}
			expires := time.Now().Add(time.Duration(minutes) * time.Minute)
			fmt.Fprintf(cmd.OutOrStdout(), "Armed for %d minutes (expires %s, %d events scheduled)\n",
				minutes, expires.Format("15:04"), len(resp.Handles))
			return nil
		},
	}
	cmd.Flags().IntVarP(&minutes, "minutes", "m", 0, "window length in minutes")
	cmd.Flags().StringVar(&pet, "pet", "", "pet name")
	cmd.Flags().StringArrayVar(&contacts, "contact", nil, "emergency contact NAME=PHONE (repeatable)")
	_ = cmd.MarkFlagRequired("minutes")
	return cmd
}

func newCloseCmd(g *globalFlags, use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var c watchdog.Closure
			if err := newAPIClient(g).do(cmd.Context(), http.MethodPost, path, nil, &c); err != nil {
				return err
			}
			switch c.Reason {
			case watchdog.ReasonCheckedIn:
				fmt.Fprintln(cmd.OutOrStdout(), "Checked in. Glad you're safe!")
			default:
				fmt.Fprintln(cmd.OutOrStdout(), "Watch cancelled.")
			}
			return nil
		},
	}
}

func newStatusCmd(g *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the watch state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var st watchdog.Status
			if err := newAPIClient(g).do(cmd.Context(), http.MethodGet, "/api/v1/watch", nil, &st); err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func printStatus(w io.Writer, st watchdog.Status) {
	switch st.State {
	case watch.StateIdle:
		fmt.Fprintln(w, "State: idle")
		if st.LastDeliveryResult == nil {
			return
		}
	case watch.StateArmed:
		fmt.Fprintf(w, "State: armed (%s)\n", st.PetName)
		if st.TimeRemaining > 0 {
			fmt.Fprintf(w, "Time remaining: %s\n", st.TimeRemaining.Round(time.Second))
		} else {
			fmt.Fprintf(w, "Overdue by %d minutes, alert pending\n", st.MinutesOverdue)
		}
	case watch.StateAlerting:
		fmt.Fprintf(w, "State: ALERTING (%s, %d minutes overdue)\n", st.PetName, st.MinutesOverdue)
	}
	if r := st.LastDeliveryResult; r != nil {
		fmt.Fprintf(w, "Alert: %s (%d sent, %d failed, via %s)\n", st.Reach, len(r.SentTo), len(r.FailedTo), r.Backend)
		if r.Message != "" {
			fmt.Fprintf(w, "  %s\n", r.Message)
		}
		if st.Reach == watch.ReachNobody {
			fmt.Fprintln(w, "  Nobody was reached. Contact your emergency contacts directly!")
		}
	}
}
