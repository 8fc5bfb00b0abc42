// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package scheduler delivers escalation payloads after a delay.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/petwatch/internal/escalation"
)

// ErrClosed is returned by Schedule after Close.
var ErrClosed = errors.New("scheduler closed")

// Handle identifies one scheduled fire.
type Handle string

// Payload is what a fire hands back to the watchdog.
type Payload struct {
	Kind           escalation.Kind `json:"kind"`
	Step           int             `json:"step,omitempty"`
	MinutesOverdue int             `json:"minutesOverdue,omitempty"`
	Generation     int64           `json:"generation"`
}

// PayloadFor builds the payload for one planned event of a window.
func PayloadFor(e escalation.Event, generation int64) Payload {
	return Payload{
		Kind:           e.Kind,
		Step:           e.Step,
		MinutesOverdue: e.MinutesOverdue,
		Generation:     generation,
	}
}

// Validate rejects payloads that cannot belong to any plan.
func (p Payload) Validate() error {
	if !p.Kind.Valid() {
		return fmt.Errorf("unknown event kind %q", p.Kind)
	}
	if p.Kind == escalation.KindFollowUp && (p.Step < 1 || p.Step > escalation.FollowUpCount) {
		return fmt.Errorf("follow-up step %d out of range", p.Step)
	}
	if p.Generation == 0 {
		return errors.New("missing generation")
	}
	return nil
}

// Scheduler is the platform's delayed-delivery facility. Fires may be late,
// duplicated or out of order.
type Scheduler interface {
	Schedule(ctx context.Context, after time.Duration, p Payload) (Handle, error)
	// Cancel is a no-op for unknown handles.
	Cancel(ctx context.Context, h Handle) error
	CancelAll(ctx context.Context) error
}

// Sink receives fired payloads.
type Sink func(ctx context.Context, p Payload)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the subset of *time.Timer used here.
type Timer interface {
	Stop() bool
}

// RealClock implements Clock using the time package.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
