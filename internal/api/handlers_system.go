// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"fmt"

	"github.com/ManuGH/petwatch/internal/domain/watch"
	"github.com/ManuGH/petwatch/internal/health"
)

// registerChecks wires the watch-specific probes into the health manager.
func (s *Server) registerChecks(hm *health.Manager) {
	hm.RegisterChecker(health.NewFuncChecker("state_store", func(ctx context.Context) error {
		_, err := s.machine.Status(ctx)
		return err
	}))
	hm.RegisterChecker(health.Informational(health.NewFuncChecker("profile", func(context.Context) error {
		if s.profiles == nil {
			return fmt.Errorf("no profile source")
		}
		if _, ok := s.profiles.Snapshot(); !ok {
			return fmt.Errorf("no profile loaded; arming requires explicit recipients")
		}
		return nil
	})))
	hm.RegisterChecker(alertChecker{s})
	for _, c := range s.cfg.Checkers {
		hm.RegisterChecker(c)
	}
}

// alertChecker degrades health while an alert reached nobody.
type alertChecker struct{ s *Server }

func (alertChecker) Name() string { return "alert_delivery" }

func (a alertChecker) Check(ctx context.Context) health.CheckResult {
	st, err := a.s.machine.Status(ctx)
	if err != nil {
		return health.CheckResult{Status: health.StatusDegraded, Error: err.Error()}
	}
	res := health.CheckResult{Status: health.StatusHealthy, Message: string(st.State)}
	if st.State == watch.StateAlerting && st.Reach == watch.ReachNobody {
		res.Status = health.StatusDegraded
		res.Message = "alert reached nobody"
		if st.LastDeliveryResult != nil {
			res.Error = st.LastDeliveryResult.Message
		}
	}
	return res
}
