// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package recovery brings the watchdog back in line with the clock after the
// process was not running: missed events are replayed and future ones are
// scheduled again.
package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/petwatch/internal/domain/watch"
	"github.com/ManuGH/petwatch/internal/escalation"
	plog "github.com/ManuGH/petwatch/internal/log"
	"github.com/ManuGH/petwatch/internal/metrics"
	"github.com/ManuGH/petwatch/internal/scheduler"
	"github.com/ManuGH/petwatch/internal/watchdog"
	"github.com/rs/zerolog"
)

// Report summarises one reconcile pass.
type Report struct {
	State       watch.State       `json:"state"`
	Replayed    []escalation.Kind `json:"replayed"`
	Rescheduled int               `json:"rescheduled"`
	Repaired    bool              `json:"repaired"`
}

// Reconciler runs at process start, before any scheduled event is handled.
type Reconciler struct {
	machine *watchdog.Machine
	sched   scheduler.Scheduler
	now     func() time.Time
	logger  zerolog.Logger
}

// New creates a Reconciler. now may be nil.
func New(m *watchdog.Machine, sched scheduler.Scheduler, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		machine: m,
		sched:   sched,
		now:     now,
		logger:  plog.WithComponent("recovery"),
	}
}

// Reconcile repairs the record, replays what was missed and reschedules the
// rest. Older due follow-ups collapse into the latest one.
func (r *Reconciler) Reconcile(ctx context.Context) (Report, error) {
	rep := Report{Replayed: []escalation.Kind{}}

	repaired, err := r.machine.Repair(ctx)
	if err != nil {
		return rep, fmt.Errorf("repair: %w", err)
	}
	rep.Repaired = repaired

	snap, err := r.machine.Snapshot(ctx)
	if err != nil {
		return rep, err
	}
	if snap.Timer == nil {
		if err := r.sched.CancelAll(ctx); err != nil {
			return rep, fmt.Errorf("cancel stale events: %w", err)
		}
		rep.State = watch.StateIdle
		metrics.SetArmed(false)
		r.finish(rep)
		return rep, nil
	}

	now := r.now()
	timer := *snap.Timer
	gen := timer.Generation()
	plan := escalation.Build(timer.ArmedAt, timer.DurationMinutes)

	main, _ := plan.Main()
	mainDue := !main.FireAt.After(now)

	if mainDue && !snap.Alerted() {
		if err := r.replay(ctx, main, gen, &rep); err != nil {
			return rep, err
		}
	}
	if f, ok := plan.LatestDueFollowUp(now); ok {
		if err := r.replay(ctx, f, gen, &rep); err != nil {
			return rep, err
		}
	}
	if !mainDue {
		for _, e := range plan.Due(now) {
			if e.Kind == escalation.KindReminder {
				if err := r.replay(ctx, e, gen, &rep); err != nil {
					return rep, err
				}
			}
		}
	}

	// Replays may have taken a while; schedule relative to the clock now.
	n, err := r.machine.Reschedule(ctx, r.now())
	if err != nil {
		return rep, err
	}
	rep.Rescheduled = n

	st, err := r.machine.Status(ctx)
	if err != nil {
		return rep, err
	}
	rep.State = st.State
	r.finish(rep)
	return rep, nil
}

func (r *Reconciler) replay(ctx context.Context, e escalation.Event, gen int64, rep *Report) error {
	out, err := r.machine.OnScheduledEvent(ctx, scheduler.PayloadFor(e, gen))
	if err != nil {
		return fmt.Errorf("replay %s: %w", e, err)
	}
	rep.Replayed = append(rep.Replayed, e.Kind)
	metrics.IncRecoveryReplay(string(e.Kind))
	r.logger.Info().
		Str(plog.FieldEvent, "recovery.replayed").
		Str(plog.FieldKind, string(e.Kind)).
		Int(plog.FieldStep, e.Step).
		Str("outcome", string(out)).
		Msg("missed event replayed")
	return nil
}

func (r *Reconciler) finish(rep Report) {
	metrics.IncRecoveryRun(string(rep.State))
	r.logger.Info().
		Str(plog.FieldEvent, "recovery.completed").
		Str(plog.FieldNewState, string(rep.State)).
		Int("replayed", len(rep.Replayed)).
		Int("rescheduled", rep.Rescheduled).
		Bool("repaired", rep.Repaired).
		Msg("recovery completed")
}
