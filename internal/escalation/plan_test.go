// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package escalation

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var armedAt = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func TestBuild_ThirtyMinuteWindow(t *testing.T) {
	got := Build(armedAt, 30)
	expiry := armedAt.Add(30 * time.Minute)

	want := Plan{
		{FireAt: expiry, Kind: KindMainExpiry},
		{FireAt: expiry.Add(5 * time.Minute), Kind: KindFollowUp, Step: 1, MinutesOverdue: 5},
		{FireAt: expiry.Add(10 * time.Minute), Kind: KindFollowUp, Step: 2, MinutesOverdue: 10},
		{FireAt: expiry.Add(15 * time.Minute), Kind: KindFollowUp, Step: 3, MinutesOverdue: 15},
		{FireAt: expiry.Add(20 * time.Minute), Kind: KindFollowUp, Step: 4, MinutesOverdue: 20},
		{FireAt: expiry.Add(25 * time.Minute), Kind: KindFollowUp, Step: 5, MinutesOverdue: 25},
		{FireAt: expiry.Add(30 * time.Minute), Kind: KindFollowUp, Step: 6, MinutesOverdue: 30},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_HourWindowHasReminder(t *testing.T) {
	got := Build(armedAt, 60)
	require.Len(t, got, 8)
	assert.Equal(t, KindReminder, got[0].Kind)
	assert.Equal(t, armedAt.Add(55*time.Minute), got[0].FireAt)
	assert.Equal(t, KindMainExpiry, got[1].Kind)
}

func TestBuild_ShortWindowStillHasSixFollowUps(t *testing.T) {
	got := Build(armedAt, 1)
	assert.Equal(t, 6, got.count(KindFollowUp))
	assert.Equal(t, 0, got.count(KindReminder))
	last, ok := got.followUp(6)
	require.True(t, ok)
	assert.Equal(t, armedAt.Add(31*time.Minute), last.FireAt)
}

func TestBuild_IsDeterministic(t *testing.T) {
	if diff := cmp.Diff(Build(armedAt, 240), Build(armedAt, 240)); diff != "" {
		t.Errorf("two builds differ:\n%s", diff)
	}
}

func TestPlan_DueAndPending(t *testing.T) {
	p := Build(armedAt, 30)
	now := armedAt.Add(42 * time.Minute) // 12 minutes past expiry

	due := p.Due(now)
	pending := p.Pending(now)
	assert.Len(t, due, 3) // main, follow-up 1, follow-up 2
	assert.Len(t, pending, 4)
	assert.Equal(t, len(p), len(due)+len(pending))

	latest, ok := p.LatestDueFollowUp(now)
	require.True(t, ok)
	assert.Equal(t, 2, latest.Step)
	assert.Equal(t, 10, latest.MinutesOverdue)

	_, ok = p.LatestDueFollowUp(armedAt)
	assert.False(t, ok)
}

func TestPlan_DueIncludesExactFireTime(t *testing.T) {
	p := Build(armedAt, 30)
	main, ok := p.Main()
	require.True(t, ok)
	due := p.Due(main.FireAt)
	require.Len(t, due, 1)
	assert.Equal(t, KindMainExpiry, due[0].Kind)
}

func TestKind_Valid(t *testing.T) {
	assert.True(t, KindFollowUp.Valid())
	assert.False(t, Kind("snooze").Valid())
}

func TestBuild_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("exactly one main expiry and six follow-ups", prop.ForAll(
		func(minutes int) bool {
			p := Build(armedAt, minutes)
			return p.count(KindMainExpiry) == 1 && p.count(KindFollowUp) == FollowUpCount
		},
		gen.IntRange(1, 7*24*60),
	))

	properties.Property("reminder iff duration is at least an hour", prop.ForAll(
		func(minutes int) bool {
			p := Build(armedAt, minutes)
			return (p.count(KindReminder) == 1) == (minutes >= ReminderThresholdMinutes)
		},
		gen.IntRange(1, 7*24*60),
	))

	properties.Property("events are ordered and anchored on expiry", prop.ForAll(
		func(minutes int) bool {
			p := Build(armedAt, minutes)
			expiry := armedAt.Add(time.Duration(minutes) * time.Minute)
			for i := 1; i < len(p); i++ {
				if p[i].FireAt.Before(p[i-1].FireAt) {
					return false
				}
			}
			for _, e := range p {
				if e.Kind == KindFollowUp && !e.FireAt.Equal(expiry.Add(time.Duration(e.MinutesOverdue)*time.Minute)) {
					return false
				}
			}
			main, ok := p.Main()
			return ok && main.FireAt.Equal(expiry)
		},
		gen.IntRange(1, 7*24*60),
	))

	properties.TestingRun(t)
}

// count returns the number of events of the given kind.
func (p Plan) count(kind Kind) int {
	n := 0
	for _, e := range p {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// followUp returns the follow-up event with the given step.
func (p Plan) followUp(step int) (Event, bool) {
	for _, e := range p {
		if e.Kind == KindFollowUp && e.Step == step {
			return e, true
		}
	}
	return Event{}, false
}
