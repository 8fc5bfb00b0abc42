// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package watchdog implements the dead-man's-switch lifecycle: arming a
// window, reacting to scheduled escalation events, and closing the window on
// check-in or cancel. It is the only writer of the durable timer state.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/petwatch/internal/compose"
	"github.com/ManuGH/petwatch/internal/domain/watch"
	"github.com/ManuGH/petwatch/internal/escalation"
	plog "github.com/ManuGH/petwatch/internal/log"
	"github.com/ManuGH/petwatch/internal/metrics"
	"github.com/ManuGH/petwatch/internal/scheduler"
	"github.com/ManuGH/petwatch/internal/timerstate"
	"github.com/rs/zerolog"
)

const tracerName = "github.com/ManuGH/petwatch/internal/watchdog"

// RetryPolicy decides when follow-ups re-dispatch.
type RetryPolicy string

const (
	// RetryTotalFailure retries only when nobody was reached.
	RetryTotalFailure RetryPolicy = "total_failure"
	// RetryPerRecipient retries whoever is still in FailedTo.
	RetryPerRecipient RetryPolicy = "per_recipient"
)

// ErrInvalidPayload is returned for events that cannot belong to any plan.
var ErrInvalidPayload = errors.New("invalid scheduled event")

// Dispatcher sends the alert. Failure is reported in the result.
type Dispatcher interface {
	Dispatch(ctx context.Context, recipients []watch.Recipient, template string) watch.DeliveryResult
}

// ArmRequest describes a new window.
type ArmRequest struct {
	DurationMinutes int
	PetName         string
	Recipients      []watch.Recipient
	Care            watch.CareSnapshot
}

// Option customises a Machine.
type Option func(*Machine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(m *Machine) { m.now = now } }

// WithNotifier sets the local notification sink.
func WithNotifier(n Notifier) Option { return func(m *Machine) { m.notifier = n } }

// WithComposer sets the message composer.
func WithComposer(c compose.Composer) Option { return func(m *Machine) { m.composer = c } }

// WithRetryPolicy selects the follow-up retry behaviour.
func WithRetryPolicy(p RetryPolicy) Option { return func(m *Machine) { m.retry = p } }

// WithDispatchTimeout sets how long a dispatch may run before its pending
// result counts as abandoned. It should match the scheduler fire timeout.
func WithDispatchTimeout(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.dispatchTimeout = d
		}
	}
}

// DefaultDispatchTimeout matches the default event handler timeout.
const DefaultDispatchTimeout = 2 * time.Minute

// Machine owns the watch lifecycle. mu covers each read-decide-write step
// and is never held across a dispatch.
type Machine struct {
	store    *timerstate.Store
	sched    scheduler.Scheduler
	gateway  Dispatcher
	notifier Notifier
	composer compose.Composer
	retry    RetryPolicy
	now      func() time.Time
	logger   zerolog.Logger

	dispatchTimeout time.Duration

	mu       sync.Mutex
	retrying int64 // generation with a follow-up retry in flight
}

// New creates a Machine.
func New(store *timerstate.Store, sched scheduler.Scheduler, gateway Dispatcher, opts ...Option) *Machine {
	m := &Machine{
		store:    store,
		sched:    sched,
		gateway:  gateway,
		notifier: LogNotifier{},
		retry:    RetryTotalFailure,
		now:      time.Now,
		logger:   plog.WithComponent("watchdog"),

		dispatchTimeout: DefaultDispatchTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns the persisted state as is.
func (m *Machine) Snapshot(ctx context.Context) (timerstate.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Load(ctx)
}

// Arm starts a new window and schedules its escalation plan.
func (m *Machine) Arm(ctx context.Context, req ArmRequest) ([]scheduler.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	state := snap.State()
	switch {
	case req.DurationMinutes <= 0:
		return nil, watch.Reject("arm", state, watch.ErrInvalidDuration)
	case len(req.Recipients) == 0:
		return nil, watch.Reject("arm", state, watch.ErrNoRecipients)
	case state != watch.StateIdle:
		return nil, watch.Reject("arm", state, watch.ErrAlreadyArmed)
	}

	now := m.now()
	timer := watch.Timer{
		ArmedAt:         now,
		DurationMinutes: req.DurationMinutes,
		PetName:         req.PetName,
		Recipients:      watch.CloneRecipients(req.Recipients),
		Care:            req.Care.Clone(),
	}

	if err := m.store.SetAlerted(ctx, false); err != nil {
		return nil, err
	}
	if err := m.store.ClearResult(ctx); err != nil {
		return nil, err
	}
	if err := m.store.PutTimer(ctx, timer); err != nil {
		return nil, err
	}

	plan := escalation.Build(now, req.DurationMinutes)
	handles, err := m.scheduleLocked(ctx, timer.Generation(), plan, now)
	if err != nil {
		m.rollbackArm(ctx)
		return nil, fmt.Errorf("schedule escalation: %w", err)
	}
	if err := m.store.PutHandles(ctx, handleStrings(handles)); err != nil {
		for _, h := range handles {
			_ = m.sched.Cancel(ctx, h)
		}
		m.rollbackArm(ctx)
		return nil, err
	}

	metrics.RecordTransition(string(watch.StateIdle), string(watch.StateArmed))
	metrics.SetArmed(true)
	m.logger.Info().
		Str(plog.FieldEvent, "watch.armed").
		Int64(plog.FieldGeneration, timer.Generation()).
		Int(plog.FieldDuration, req.DurationMinutes).
		Time(plog.FieldExpiresAt, timer.ExpiresAt()).
		Str(plog.FieldPet, timer.PetName).
		Int(plog.FieldRecipients, len(timer.Recipients)).
		Msg("watch armed")
	return handles, nil
}

// rollbackArm drops the record of a window whose arm failed part way.
func (m *Machine) rollbackArm(ctx context.Context) {
	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		m.logger.Error().Err(err).Str(plog.FieldEvent, "watch.arm_rollback_failed").Msg("failed to roll back armed window")
	}
}

// scheduleLocked schedules events relative to now. On failure the handles
// created so far are cancelled.
func (m *Machine) scheduleLocked(ctx context.Context, gen int64, events escalation.Plan, now time.Time) ([]scheduler.Handle, error) {
	handles := make([]scheduler.Handle, 0, len(events))
	for _, e := range events {
		h, err := m.sched.Schedule(ctx, max(0, e.FireAt.Sub(now)), scheduler.PayloadFor(e, gen))
		if err != nil {
			for _, created := range handles {
				_ = m.sched.Cancel(ctx, created)
			}
			return nil, fmt.Errorf("%s: %w", e, err)
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// Reschedule drops the persisted handles and schedules every still-future
// event of the active plan again. It returns the number scheduled.
func (m *Machine) Reschedule(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, err := m.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load state: %w", err)
	}
	if snap.Timer == nil {
		return 0, nil
	}
	m.cancelHandles(ctx, snap.Handles)

	pending := escalation.Build(snap.Timer.ArmedAt, snap.Timer.DurationMinutes).Pending(now)
	handles, err := m.scheduleLocked(ctx, snap.Timer.Generation(), pending, now)
	if err != nil {
		_ = m.store.PutHandles(ctx, nil)
		return 0, fmt.Errorf("reschedule escalation: %w", err)
	}
	if err := m.store.PutHandles(ctx, handleStrings(handles)); err != nil {
		return 0, err
	}
	return len(handles), nil
}

// cancelHandles cancels each handle, or everything when none are known.
// Failures are logged; stale fires are no-ops anyway.
func (m *Machine) cancelHandles(ctx context.Context, handles []string) {
	if len(handles) == 0 {
		if err := m.sched.CancelAll(ctx); err != nil {
			m.logger.Warn().Err(err).Str(plog.FieldEvent, "watch.cancel_all_failed").Msg("cancel all scheduled events failed")
		}
		return
	}
	for _, h := range handles {
		if err := m.sched.Cancel(ctx, scheduler.Handle(h)); err != nil {
			m.logger.Warn().Err(err).
				Str(plog.FieldEvent, "watch.cancel_failed").
				Str(plog.FieldHandle, h).
				Msg("cancel scheduled event failed")
		}
	}
}

func handleStrings(hs []scheduler.Handle) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = string(h)
	}
	return out
}
