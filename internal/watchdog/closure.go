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

// Reason says why a window closed.
type Reason string

const (
	ReasonCheckedIn Reason = "checked_in"
	ReasonCancelled Reason = "cancelled"
)

// Closure describes a closed window for UI messaging.
type Closure struct {
	Reason    Reason      `json:"reason"`
	PetName   string      `json:"petName,omitempty"`
	FromState watch.State `json:"fromState"`
	ClosedAt  time.Time   `json:"closedAt"`
}

// CheckIn closes the window because the user is safe.
func (m *Machine) CheckIn(ctx context.Context) (Closure, error) {
	return m.close(ctx, "check-in", ReasonCheckedIn)
}

// Cancel closes the window without a check-in.
func (m *Machine) Cancel(ctx context.Context) (Closure, error) {
	return m.close(ctx, "cancel", ReasonCancelled)
}

func (m *Machine) close(ctx context.Context, op string, reason Reason) (Closure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, err := m.store.Load(ctx)
	if err != nil {
		return Closure{}, fmt.Errorf("load state: %w", err)
	}
	state := snap.State()
	if snap.Timer == nil {
		return Closure{}, watch.Reject(op, state, watch.ErrNotArmed)
	}

	m.cancelHandles(ctx, snap.Handles)
	if err := m.store.Clear(ctx); err != nil {
		return Closure{}, fmt.Errorf("clear state: %w", err)
	}

	metrics.RecordTransition(string(state), string(watch.StateIdle))
	metrics.SetArmed(false)
	m.logger.Info().
		Str(plog.FieldEvent, "watch.closed").
		Str("reason", string(reason)).
		Str(plog.FieldOldState, string(state)).
		Str(plog.FieldNewState, string(watch.StateIdle)).
		Int64(plog.FieldGeneration, snap.Timer.Generation()).
		Msg("watch closed")
	return Closure{
		Reason:    reason,
		PetName:   snap.Timer.PetName,
		FromState: state,
		ClosedAt:  m.now(),
	}, nil
}
