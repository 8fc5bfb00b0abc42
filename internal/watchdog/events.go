// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/petwatch/internal/domain/watch"
	"github.com/ManuGH/petwatch/internal/escalation"
	plog "github.com/ManuGH/petwatch/internal/log"
	"github.com/ManuGH/petwatch/internal/metrics"
	"github.com/ManuGH/petwatch/internal/scheduler"
	"github.com/ManuGH/petwatch/internal/telemetry"
	"github.com/ManuGH/petwatch/internal/timerstate"
	"go.opentelemetry.io/otel/attribute"
)

// Outcome says what handling a scheduled event did.
type Outcome string

const (
	OutcomeStale      Outcome = "stale"      // generation mismatch or no window
	OutcomeDuplicate  Outcome = "duplicate"  // main expiry already processed
	OutcomeNotified   Outcome = "notified"   // local notification only
	OutcomeDispatched Outcome = "dispatched" // main alert sent
	OutcomeRetried    Outcome = "retried"    // failed recipients retried
)

const (
	msgDispatchPending     = "Emergency alert dispatch in progress"
	msgDispatchInterrupted = "Alert dispatch was interrupted before completion"
)

// commitTimeout bounds writing a dispatch outcome. The write runs detached
// from the event context, which the dispatch may already have used up.
const commitTimeout = 10 * time.Second

// OnScheduledEvent handles one fire. Fires may be late, duplicated or out of
// order; stale generations are ignored and the alerted flag keeps the main
// alert from going out twice.
func (m *Machine) OnScheduledEvent(ctx context.Context, p scheduler.Payload) (Outcome, error) {
	if err := p.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	ctx = plog.ContextWithGeneration(ctx, p.Generation)
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "watchdog.event")
	defer span.End()
	span.SetAttributes(telemetry.EventAttributes(string(p.Kind), p.Step, p.Generation)...)

	var (
		out Outcome
		err error
	)
	switch p.Kind {
	case escalation.KindReminder:
		out, err = m.onReminder(ctx, p)
	case escalation.KindMainExpiry:
		out, err = m.onMainExpiry(ctx, p)
	default:
		out, err = m.onFollowUp(ctx, p)
	}

	if err != nil {
		telemetry.RecordError(span, err, "watchdog")
		metrics.IncScheduledEvent(string(p.Kind), "error")
		return "", err
	}
	span.SetAttributes(attribute.String("watch.outcome", string(out)))
	metrics.IncScheduledEvent(string(p.Kind), string(out))

	logger := plog.WithContext(ctx, m.logger)
	logger.Info().
		Str(plog.FieldEvent, "watch.event_handled").
		Str(plog.FieldKind, string(p.Kind)).
		Int(plog.FieldStep, p.Step).
		Str("outcome", string(out)).
		Msg("scheduled event handled")
	return out, nil
}

// current loads the snapshot and reports whether p belongs to it.
func (m *Machine) current(ctx context.Context, p scheduler.Payload) (timerstate.Snapshot, bool, error) {
	snap, err := m.store.Load(ctx)
	if err != nil {
		return snap, false, fmt.Errorf("load state: %w", err)
	}
	if snap.Timer == nil || snap.Timer.Generation() != p.Generation {
		return snap, false, nil
	}
	return snap, true, nil
}

func (m *Machine) onReminder(ctx context.Context, p scheduler.Payload) (Outcome, error) {
	m.mu.Lock()
	snap, live, err := m.current(ctx, p)
	m.mu.Unlock()
	if err != nil {
		return "", err
	}
	if !live {
		return OutcomeStale, nil
	}
	if snap.Alerted() {
		return OutcomeDuplicate, nil
	}
	m.notify(ctx, escalation.KindReminder, snap.Timer.PetName, 0)
	return OutcomeNotified, nil
}

func (m *Machine) onMainExpiry(ctx context.Context, p scheduler.Payload) (Outcome, error) {
	timer, out, err := m.beginAlert(ctx, p)
	if err != nil || out != "" {
		return out, err
	}

	m.notify(ctx, escalation.KindMainExpiry, timer.PetName, 0)
	res := m.gateway.Dispatch(ctx, timer.Recipients, m.composer.AlertTemplate(timer))
	if err := m.commitResult(ctx, p.Generation, func(watch.DeliveryResult) watch.DeliveryResult { return res }); err != nil {
		return "", err
	}
	return OutcomeDispatched, nil
}

// beginAlert performs the armed to alerting transition. A non-empty outcome
// means there is nothing to dispatch.
func (m *Machine) beginAlert(ctx context.Context, p scheduler.Payload) (watch.Timer, Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, live, err := m.current(ctx, p)
	if err != nil {
		return watch.Timer{}, "", err
	}
	if !live {
		return watch.Timer{}, OutcomeStale, nil
	}
	if snap.Alerted() {
		return watch.Timer{}, OutcomeDuplicate, nil
	}

	timer := snap.Timer.Clone()
	timer.Alerted = true
	if err := m.store.PutTimer(ctx, timer); err != nil {
		return watch.Timer{}, "", err
	}
	if err := m.store.SetAlerted(ctx, true); err != nil {
		return watch.Timer{}, "", err
	}
	// Pending keeps SentTo and FailedTo a partition of the recipients until
	// the real result lands.
	pending := watch.DeliveryResult{
		SentTo:    []string{},
		FailedTo:  timer.Phones(),
		Message:   msgDispatchPending,
		Timestamp: m.now(),
		Pending:   true,
	}
	if err := m.store.PutResult(ctx, pending); err != nil {
		return watch.Timer{}, "", err
	}

	metrics.RecordTransition(string(watch.StateArmed), string(watch.StateAlerting))
	m.logger.Warn().
		Str(plog.FieldEvent, "watch.expired").
		Int64(plog.FieldGeneration, p.Generation).
		Str(plog.FieldPet, timer.PetName).
		Int(plog.FieldRecipients, len(timer.Recipients)).
		Msg("watch expired without check-in, alerting contacts")
	return timer, "", nil
}

// commitResult persists a dispatch outcome unless the window it belongs to
// was closed while the dispatch ran.
func (m *Machine) commitResult(ctx context.Context, gen int64, build func(prev watch.DeliveryResult) watch.DeliveryResult) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	snap, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if snap.Timer == nil || snap.Timer.Generation() != gen {
		m.logger.Info().
			Str(plog.FieldEvent, "watch.result_discarded").
			Int64(plog.FieldGeneration, gen).
			Msg("window closed during dispatch, result discarded")
		return nil
	}
	var prev watch.DeliveryResult
	if snap.Result != nil {
		prev = *snap.Result
	}
	res := build(prev)
	if err := m.store.PutResult(ctx, res); err != nil {
		return fmt.Errorf("commit result: %w", err)
	}
	if res.Reach() == watch.ReachNobody {
		m.logger.Error().
			Str(plog.FieldEvent, "watch.alert_undelivered").
			Int64(plog.FieldGeneration, gen).
			Str(plog.FieldBackend, string(res.Backend)).
			Msg("alert reached nobody, act manually")
	}
	return nil
}

func (m *Machine) onFollowUp(ctx context.Context, p scheduler.Payload) (Outcome, error) {
	m.mu.Lock()
	snap, live, err := m.current(ctx, p)
	if err != nil || !live {
		m.mu.Unlock()
		if err != nil {
			return "", err
		}
		return OutcomeStale, nil
	}

	if !snap.Alerted() {
		// The main expiry fire has not arrived yet.
		m.mu.Unlock()
		main := scheduler.Payload{Kind: escalation.KindMainExpiry, Generation: p.Generation}
		out, err := m.onMainExpiry(ctx, main)
		if err != nil {
			return "", err
		}
		if out == OutcomeDispatched {
			m.notify(ctx, escalation.KindFollowUp, snap.Timer.PetName, p.MinutesOverdue)
			return OutcomeDispatched, nil
		}
		// Lost a race with the main expiry; fall through as a plain follow-up.
		m.mu.Lock()
		snap, live, err = m.current(ctx, p)
		if err != nil || !live {
			m.mu.Unlock()
			if err != nil {
				return "", err
			}
			return OutcomeStale, nil
		}
	}

	targets := m.retryTargets(snap)
	if len(targets) > 0 {
		if m.retrying == p.Generation {
			targets = nil
		} else {
			m.retrying = p.Generation
		}
	}
	timer := snap.Timer.Clone()
	m.mu.Unlock()

	m.notify(ctx, escalation.KindFollowUp, timer.PetName, p.MinutesOverdue)
	if len(targets) == 0 {
		return OutcomeNotified, nil
	}

	defer func() {
		m.mu.Lock()
		m.retrying = 0
		m.mu.Unlock()
	}()

	retry := m.gateway.Dispatch(ctx, targets, m.composer.AlertTemplate(timer))
	m.logger.Info().
		Str(plog.FieldEvent, "watch.retried").
		Int64(plog.FieldGeneration, p.Generation).
		Int(plog.FieldStep, p.Step).
		Int(plog.FieldRecipients, len(targets)).
		Int(plog.FieldSent, len(retry.SentTo)).
		Msg("follow-up retry dispatched")

	err = m.commitResult(ctx, p.Generation, func(prev watch.DeliveryResult) watch.DeliveryResult {
		return prev.Merge(retry)
	})
	if err != nil {
		return "", err
	}
	return OutcomeRetried, nil
}

// retryTargets picks the recipients a follow-up should retry under the
// configured policy. A pending result is only retried once abandoned.
func (m *Machine) retryTargets(snap timerstate.Snapshot) []watch.Recipient {
	r := snap.Result
	if r == nil || len(r.FailedTo) == 0 {
		return nil
	}
	if r.Pending && !m.abandoned(*r) {
		return nil
	}
	if m.retry != RetryPerRecipient && !r.TotalFailure() {
		return nil
	}
	return watch.FilterRecipients(snap.Timer.Recipients, r.FailedTo)
}

// abandoned reports whether a pending result has outlived any dispatch that
// could still finish it. Its FailedTo already lists every recipient.
func (m *Machine) abandoned(r watch.DeliveryResult) bool {
	return r.Pending && m.now().Sub(r.Timestamp) > m.dispatchTimeout+commitTimeout
}

func (m *Machine) notify(ctx context.Context, kind escalation.Kind, pet string, minutesOverdue int) {
	n := m.composer.Notification(kind, pet, minutesOverdue)
	if err := m.notifier.Notify(ctx, n); err != nil {
		m.logger.Warn().Err(err).
			Str(plog.FieldEvent, "watch.notify_failed").
			Str(plog.FieldKind, string(kind)).
			Msg("local notification failed")
	}
}
