// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package timerstate

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/petwatch/internal/domain/watch"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTimer() watch.Timer {
	return watch.Timer{
		ArmedAt:         time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
		PetName:         "Rex",
		Recipients: []watch.Recipient{
			{Name: "A", Phone: "5550000001"},
			{Name: "B", Phone: "5550000002"},
		},
		Care: watch.CareSnapshot{FoodType: "kibble", Medications: []watch.Medication{{Name: "Heartworm"}}},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemory(), "memory")

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, watch.StateIdle, snap.State())
	assert.Nil(t, snap.Timer)

	tm := sampleTimer()
	res := watch.DeliveryResult{
		Sent:      true,
		SentTo:    []string{"5550000001"},
		FailedTo:  []string{"5550000002"},
		Message:   "SMS sent to 1 of 2 contacts",
		Timestamp: tm.ExpiresAt(),
		Backend:   watch.BackendBatch,
		Attempts:  1,
	}
	require.NoError(t, s.PutTimer(ctx, tm))
	require.NoError(t, s.PutHandles(ctx, []string{"h1", "h2"}))
	require.NoError(t, s.PutResult(ctx, res))

	snap, err = s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.Timer)
	if diff := cmp.Diff(tm, *snap.Timer); diff != "" {
		t.Errorf("timer mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(res, *snap.Result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"h1", "h2"}, snap.Handles)
	assert.Equal(t, watch.StateArmed, snap.State())
}

func TestStore_LegacyAlertedFlag(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	s := NewStore(kv, "memory")
	require.NoError(t, s.PutTimer(ctx, sampleTimer()))

	for _, raw := range []string{`true`, `"true"`, `TRUE`} {
		require.NoError(t, kv.Put(ctx, KeyTimerAlerted, []byte(raw)))
		snap, err := s.Load(ctx)
		require.NoError(t, err)
		assert.True(t, snap.LegacyAlerted, raw)
		assert.True(t, snap.Alerted())
		assert.False(t, snap.Timer.Alerted)
		assert.Equal(t, watch.StateAlerting, snap.State())
	}

	require.NoError(t, s.SetAlerted(ctx, false))
	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Alerted())
}

func TestStore_ClearRemovesEverything(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	s := NewStore(kv, "memory")
	require.NoError(t, s.PutTimer(ctx, sampleTimer()))
	require.NoError(t, s.SetAlerted(ctx, true))
	require.NoError(t, s.PutResult(ctx, watch.DeliveryResult{}))
	require.NoError(t, s.PutHandles(ctx, nil))

	require.NoError(t, s.Clear(ctx))
	for _, key := range Keys {
		_, ok, err := kv.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
}

func TestStore_CorruptRecord(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	require.NoError(t, kv.Put(ctx, KeyActiveTimer, []byte("{not json")))

	_, err := NewStore(kv, "memory").Load(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestStore_EmptyHandlesEncodeAsArray(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	require.NoError(t, NewStore(kv, "memory").PutHandles(ctx, nil))

	raw, ok, err := kv.Get(ctx, KeyActiveEventIDs)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[]", string(raw))
}
