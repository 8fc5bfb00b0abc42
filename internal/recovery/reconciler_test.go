// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/petwatch/internal/delivery"
	"github.com/ManuGH/petwatch/internal/domain/watch"
	"github.com/ManuGH/petwatch/internal/escalation"
	"github.com/ManuGH/petwatch/internal/scheduler/schedulertest"
	"github.com/ManuGH/petwatch/internal/timerstate"
	"github.com/ManuGH/petwatch/internal/watchdog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var armedAt = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type countingBackend struct {
	mu     sync.Mutex
	calls  int
	fail   bool
	during func()
}

func (b *countingBackend) Name() watch.Backend { return watch.BackendSimulated }

func (b *countingBackend) Send(_ context.Context, recipients []watch.Recipient, _ string) delivery.Outcome {
	if b.during != nil {
		b.during()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.fail {
		return delivery.Outcome{}
	}
	return delivery.Outcome{SentTo: watch.Phones(recipients)}
}

type fixture struct {
	store   *timerstate.Store
	sched   *schedulertest.Recorder
	backend *countingBackend
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   timerstate.NewStore(timerstate.NewMemory(), "memory"),
		sched:   schedulertest.New(),
		backend: &countingBackend{},
		now:     armedAt,
	}
	t.Cleanup(func() { _ = f.store.Close() })
	return f
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) machine() *watchdog.Machine {
	chain := delivery.NewChain(delivery.Config{}, delivery.WithBackend(f.backend))
	return watchdog.New(f.store, f.sched, chain, watchdog.WithClock(f.clock))
}

func (f *fixture) armAt(t *testing.T, minutes int) {
	t.Helper()
	f.now = armedAt
	_, err := f.machine().Arm(context.Background(), watchdog.ArmRequest{
		DurationMinutes: minutes,
		PetName:         "Rex",
		Recipients:      []watch.Recipient{{Name: "Ana", Phone: "+15551110001"}, {Name: "Bo", Phone: "+15551110002"}},
	})
	require.NoError(t, err)
	f.sched.Reset()
}

func (f *fixture) reconcileAt(t *testing.T, at time.Time) Report {
	t.Helper()
	f.now = at
	rep, err := New(f.machine(), f.sched, f.clock).Reconcile(context.Background())
	require.NoError(t, err)
	return rep
}

func TestReconcile_Idle(t *testing.T) {
	f := newFixture(t)
	rep := f.reconcileAt(t, armedAt)

	assert.Equal(t, watch.StateIdle, rep.State)
	assert.Empty(t, rep.Replayed)
	assert.Equal(t, 0, rep.Rescheduled)
	assert.Equal(t, 1, f.sched.CancelAllCalls())
}

func TestReconcile_ExpiryTwelveMinutesAgo(t *testing.T) {
	f := newFixture(t)
	f.armAt(t, 30)

	rep := f.reconcileAt(t, armedAt.Add(42*time.Minute))

	assert.Equal(t, watch.StateAlerting, rep.State)
	assert.Equal(t, []escalation.Kind{escalation.KindMainExpiry, escalation.KindFollowUp}, rep.Replayed)
	assert.Equal(t, 4, rep.Rescheduled)

	snap, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Alerted())
	require.NotNil(t, snap.Result)
	assert.True(t, snap.Result.Sent)
	assert.Equal(t, 1, f.backend.calls)

	steps := []int{}
	for _, e := range f.sched.Scheduled() {
		steps = append(steps, e.Payload.Step)
	}
	assert.Equal(t, []int{3, 4, 5, 6}, steps)
}

func TestReconcile_ReschedulesAfterSlowReplay(t *testing.T) {
	f := newFixture(t)
	f.armAt(t, 30)
	f.backend.during = func() { f.now = f.now.Add(4 * time.Minute) }

	rep := f.reconcileAt(t, armedAt.Add(42*time.Minute))
	assert.Equal(t, 3, rep.Rescheduled)

	entries := f.sched.Scheduled()
	require.Len(t, entries, 3)
	assert.Equal(t, 4, entries[0].Payload.Step)
	assert.Equal(t, 4*time.Minute, entries[0].After)
}

func TestReconcile_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.armAt(t, 30)
	f.reconcileAt(t, armedAt.Add(42*time.Minute))

	rep := f.reconcileAt(t, armedAt.Add(43*time.Minute))
	assert.Equal(t, []escalation.Kind{escalation.KindFollowUp}, rep.Replayed)
	assert.Equal(t, 1, f.backend.calls)
}

func TestReconcile_TotalFailureRetriedByLatestFollowUp(t *testing.T) {
	f := newFixture(t)
	f.armAt(t, 30)
	f.backend.fail = true
	f.reconcileAt(t, armedAt.Add(31*time.Minute))
	assert.Equal(t, 1, f.backend.calls)

	f.backend.fail = false
	rep := f.reconcileAt(t, armedAt.Add(52*time.Minute))
	assert.Equal(t, []escalation.Kind{escalation.KindFollowUp}, rep.Replayed)
	assert.Equal(t, 2, f.backend.calls)

	snap, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, watch.ReachAll, snap.Result.Reach())
	assert.Equal(t, 2, snap.Result.Attempts)
}

func TestReconcile_DueReminderReplayedBeforeExpiry(t *testing.T) {
	f := newFixture(t)
	f.armAt(t, 60)

	rep := f.reconcileAt(t, armedAt.Add(57*time.Minute))
	assert.Equal(t, watch.StateArmed, rep.State)
	assert.Equal(t, []escalation.Kind{escalation.KindReminder}, rep.Replayed)
	assert.Equal(t, 7, rep.Rescheduled)
	assert.Equal(t, 0, f.backend.calls)
}

func TestReconcile_ReminderSkippedAfterExpiry(t *testing.T) {
	f := newFixture(t)
	f.armAt(t, 60)

	rep := f.reconcileAt(t, armedAt.Add(61*time.Minute))
	assert.Equal(t, []escalation.Kind{escalation.KindMainExpiry}, rep.Replayed)
	assert.Equal(t, 6, rep.Rescheduled)
}

func TestReconcile_NothingDue(t *testing.T) {
	f := newFixture(t)
	f.armAt(t, 30)

	rep := f.reconcileAt(t, armedAt.Add(10*time.Minute))
	assert.Equal(t, watch.StateArmed, rep.State)
	assert.Empty(t, rep.Replayed)
	assert.Equal(t, 7, rep.Rescheduled)
}

func TestReconcile_RepairsInterruptedDispatch(t *testing.T) {
	f := newFixture(t)
	f.armAt(t, 30)
	ctx := context.Background()

	snap, err := f.store.Load(ctx)
	require.NoError(t, err)
	timer := *snap.Timer
	timer.Alerted = true
	require.NoError(t, f.store.PutTimer(ctx, timer))
	require.NoError(t, f.store.PutResult(ctx, watch.DeliveryResult{
		SentTo: []string{}, FailedTo: timer.Phones(), Pending: true, Timestamp: armedAt.Add(30 * time.Minute),
	}))

	rep := f.reconcileAt(t, armedAt.Add(36*time.Minute))
	assert.True(t, rep.Repaired)
	assert.Equal(t, []escalation.Kind{escalation.KindFollowUp}, rep.Replayed)
	assert.Equal(t, 1, f.backend.calls)

	snap, err = f.store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Result.Pending)
	assert.Equal(t, watch.ReachAll, snap.Result.Reach())
}
