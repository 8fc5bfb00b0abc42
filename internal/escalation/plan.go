// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package escalation computes the timed events that follow one arm action.
package escalation

import (
	"fmt"
	"sort"
	"time"
)

const (
	// ReminderLead is how long before expiry the reminder fires.
	ReminderLead = 5 * time.Minute
	// ReminderThresholdMinutes is the shortest window that gets a reminder.
	ReminderThresholdMinutes = 60
	// FollowUpInterval separates consecutive follow-ups after expiry.
	FollowUpInterval = 5 * time.Minute
	// FollowUpCount is the number of follow-ups after expiry.
	FollowUpCount = 6
)

// Kind is the type of a planned event.
type Kind string

const (
	KindReminder   Kind = "reminder"
	KindMainExpiry Kind = "main_expiry"
	KindFollowUp   Kind = "follow_up"
)

func (k Kind) order() int {
	switch k {
	case KindReminder:
		return 0
	case KindMainExpiry:
		return 1
	default:
		return 2
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindReminder, KindMainExpiry, KindFollowUp:
		return true
	}
	return false
}

// Event is one planned fire time.
// Step is n for FollowUp(n) and zero otherwise.
type Event struct {
	FireAt         time.Time `json:"fireAt"`
	Kind           Kind      `json:"kind"`
	Step           int       `json:"step,omitempty"`
	MinutesOverdue int       `json:"minutesOverdue,omitempty"`
}

func (e Event) String() string {
	if e.Kind == KindFollowUp {
		return fmt.Sprintf("%s(%d)@%s", e.Kind, e.Step, e.FireAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("%s@%s", e.Kind, e.FireAt.Format(time.RFC3339))
}

// Plan is the ordered set of events for one armed window.
type Plan []Event

// Build computes the escalation plan for a window. It is a pure function of
// its inputs, so a lost schedule can always be regenerated from armedAt.
func Build(armedAt time.Time, durationMinutes int) Plan {
	expiresAt := armedAt.Add(time.Duration(durationMinutes) * time.Minute)

	plan := make(Plan, 0, FollowUpCount+2)
	if durationMinutes >= ReminderThresholdMinutes {
		plan = append(plan, Event{FireAt: expiresAt.Add(-ReminderLead), Kind: KindReminder})
	}
	plan = append(plan, Event{FireAt: expiresAt, Kind: KindMainExpiry})
	for n := 1; n <= FollowUpCount; n++ {
		offset := time.Duration(n) * FollowUpInterval
		plan = append(plan, Event{
			FireAt:         expiresAt.Add(offset),
			Kind:           KindFollowUp,
			Step:           n,
			MinutesOverdue: int(offset / time.Minute),
		})
	}

	sort.SliceStable(plan, func(i, j int) bool {
		if !plan[i].FireAt.Equal(plan[j].FireAt) {
			return plan[i].FireAt.Before(plan[j].FireAt)
		}
		if plan[i].Kind.order() != plan[j].Kind.order() {
			return plan[i].Kind.order() < plan[j].Kind.order()
		}
		return plan[i].Step < plan[j].Step
	})
	return plan
}

// Main returns the main expiry event.
func (p Plan) Main() (Event, bool) {
	for _, e := range p {
		if e.Kind == KindMainExpiry {
			return e, true
		}
	}
	return Event{}, false
}

// Due returns the events whose fire time is at or before now. They must fire
// immediately, never be dropped.
func (p Plan) Due(now time.Time) Plan {
	var out Plan
	for _, e := range p {
		if !e.FireAt.After(now) {
			out = append(out, e)
		}
	}
	return out
}

// Pending returns the events that are still in the future.
func (p Plan) Pending(now time.Time) Plan {
	var out Plan
	for _, e := range p {
		if e.FireAt.After(now) {
			out = append(out, e)
		}
	}
	return out
}

// LatestDueFollowUp returns the most recent follow-up that is already due.
func (p Plan) LatestDueFollowUp(now time.Time) (Event, bool) {
	var (
		latest Event
		found  bool
	)
	for _, e := range p.Due(now) {
		if e.Kind == KindFollowUp && (!found || e.Step > latest.Step) {
			latest = e
			found = true
		}
	}
	return latest, found
}
