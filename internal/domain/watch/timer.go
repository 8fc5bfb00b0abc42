// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package watch holds the persisted records of the pet safety watchdog.
package watch

import (
	"time"
)

// State is the externally visible lifecycle of the watchdog.
type State string

const (
	StateIdle     State = "idle"
	StateArmed    State = "armed"
	StateAlerting State = "alerting"
)

// Recipient is an emergency contact that receives the SMS alert.
type Recipient struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Timer is the single armed-window record.
// ArmedAt, DurationMinutes and the snapshot fields never change after arming;
// Alerted only ever moves from false to true.
type Timer struct {
	ArmedAt         time.Time    `json:"armedAt"`
	DurationMinutes int          `json:"durationMinutes"`
	Alerted         bool         `json:"alerted"`
	PetName         string       `json:"petName"`
	Recipients      []Recipient  `json:"recipients"`
	Care            CareSnapshot `json:"careSnapshot"`
}

// ExpiresAt is derived from ArmedAt and DurationMinutes and never stored.
func (t Timer) ExpiresAt() time.Time {
	return t.ArmedAt.Add(time.Duration(t.DurationMinutes) * time.Minute)
}

// Generation identifies the armed window. Scheduled events carry it so that
// fires belonging to a checked-in window can be recognised as stale.
func (t Timer) Generation() int64 {
	return t.ArmedAt.UnixNano()
}

// State reports armed or alerting for an existing record.
func (t Timer) State() State {
	if t.Alerted {
		return StateAlerting
	}
	return StateArmed
}

// Phones returns recipient phone numbers in recipient order.
func (t Timer) Phones() []string {
	return Phones(t.Recipients)
}

// Clone returns a deep copy so callers never share slices with a stored record.
func (t Timer) Clone() Timer {
	out := t
	out.Recipients = CloneRecipients(t.Recipients)
	out.Care = t.Care.Clone()
	return out
}

// Phones returns the phone numbers of recipients in order.
func Phones(recipients []Recipient) []string {
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		out = append(out, r.Phone)
	}
	return out
}

// CloneRecipients copies a recipient list.
func CloneRecipients(in []Recipient) []Recipient {
	if in == nil {
		return nil
	}
	out := make([]Recipient, len(in))
	copy(out, in)
	return out
}

// FilterRecipients returns the recipients whose phone is in phones, in recipient order.
func FilterRecipients(recipients []Recipient, phones []string) []Recipient {
	want := make(map[string]struct{}, len(phones))
	for _, p := range phones {
		want[p] = struct{}{}
	}
	var out []Recipient
	for _, r := range recipients {
		if _, ok := want[r.Phone]; ok {
			out = append(out, r)
		}
	}
	return out
}
