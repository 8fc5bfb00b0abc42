// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/petwatch/internal/domain/watch"
	plog "github.com/ManuGH/petwatch/internal/log"
	"github.com/ManuGH/petwatch/internal/metrics"
)

// Status is the read model of the watch.
type Status struct {
	State              watch.State           `json:"state"`
	ArmedAt            *time.Time            `json:"armedAt,omitempty"`
	ExpiresAt          *time.Time            `json:"expiresAt,omitempty"`
	TimeRemaining      time.Duration         `json:"timeRemaining"`
	MinutesOverdue     int                   `json:"minutesOverdue"`
	PetName            string                `json:"petName,omitempty"`
	Recipients         []watch.Recipient     `json:"recipients,omitempty"`
	LastDeliveryResult *watch.DeliveryResult `json:"lastDeliveryResult,omitempty"`
	Reach              watch.Reach           `json:"reach"`
}

// Status reports the current state.
func (m *Machine) Status(ctx context.Context) (Status, error) {
	m.mu.Lock()
	snap, err := m.store.Load(ctx)
	m.mu.Unlock()
	if err != nil {
		return Status{}, fmt.Errorf("load state: %w", err)
	}

	st := Status{State: snap.State(), Reach: watch.ReachNone}
	if snap.Timer == nil {
		return st, nil
	}

	now := m.now()
	armedAt, expiresAt := snap.Timer.ArmedAt, snap.Timer.ExpiresAt()
	st.ArmedAt, st.ExpiresAt = &armedAt, &expiresAt
	st.PetName = snap.Timer.PetName
	st.Recipients = watch.CloneRecipients(snap.Timer.Recipients)
	if left := expiresAt.Sub(now); left > 0 {
		st.TimeRemaining = left
	} else {
		st.MinutesOverdue = int(-left / time.Minute)
	}
	if snap.Result != nil {
		res := snap.Result.Clone()
		if m.abandoned(res) {
			res.Pending = false
			res.Message = msgDispatchInterrupted
		}
		st.LastDeliveryResult = &res
		st.Reach = res.Reach()
	}
	return st, nil
}

// Repair normalises the persisted record before any event is handled. It
// folds the legacy alerted flag into the record, turns a dispatch that never
// finished into a total failure so follow-ups retry it, and drops keys left
// behind by an interrupted close. It must not run while a dispatch is in
// flight.
func (m *Machine) Repair(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, err := m.store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load state: %w", err)
	}

	if snap.Timer == nil {
		if !snap.LegacyAlerted && snap.Result == nil && snap.Handles == nil {
			return false, nil
		}
		if err := m.store.Clear(ctx); err != nil {
			return false, err
		}
		m.logRepair("leftover keys cleared")
		return true, nil
	}

	repaired := false
	timer := *snap.Timer
	if snap.LegacyAlerted && !timer.Alerted {
		timer.Alerted = true
		if err := m.store.PutTimer(ctx, timer); err != nil {
			return false, err
		}
		repaired = true
	}
	if timer.Alerted && !snap.LegacyAlerted {
		if err := m.store.SetAlerted(ctx, true); err != nil {
			return false, err
		}
		repaired = true
	}

	switch {
	case timer.Alerted && (snap.Result == nil || snap.Result.Pending):
		interrupted := watch.DeliveryResult{
			SentTo:    []string{},
			FailedTo:  timer.Phones(),
			Message:   msgDispatchInterrupted,
			Timestamp: m.now(),
			Attempts:  1,
		}
		if snap.Result != nil {
			interrupted.Backend = snap.Result.Backend
			interrupted.Attempts = max(1, snap.Result.Attempts)
		}
		if err := m.store.PutResult(ctx, interrupted); err != nil {
			return false, err
		}
		repaired = true
	case !timer.Alerted && snap.Result != nil:
		if err := m.store.ClearResult(ctx); err != nil {
			return false, err
		}
		repaired = true
	}

	metrics.SetArmed(true)
	if repaired {
		m.logRepair("record repaired")
	}
	return repaired, nil
}

func (m *Machine) logRepair(msg string) {
	m.logger.Warn().
		Str(plog.FieldEvent, "watch.repaired").
		Msg(msg)
}
