// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timerstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuGH/petwatch/internal/domain/watch"
	"github.com/ManuGH/petwatch/internal/metrics"
)

// ErrCorrupt wraps a value that could not be decoded.
var ErrCorrupt = errors.New("timerstate: corrupt record")

// Snapshot is the decoded content of all record keys.
type Snapshot struct {
	Timer         *watch.Timer
	LegacyAlerted bool
	Result        *watch.DeliveryResult
	Handles       []string
}

// Alerted ORs the record flag with the standalone legacy flag.
func (s Snapshot) Alerted() bool {
	return s.LegacyAlerted || (s.Timer != nil && s.Timer.Alerted)
}

// State derives the lifecycle state from the snapshot.
func (s Snapshot) State() watch.State {
	switch {
	case s.Timer == nil:
		return watch.StateIdle
	case s.Alerted():
		return watch.StateAlerting
	default:
		return watch.StateArmed
	}
}

// Store is the typed layer over a KV backend.
type Store struct {
	kv      KV
	backend string
}

// NewStore wraps kv. backend labels metrics.
func NewStore(kv KV, backend string) *Store {
	if backend == "" {
		backend = "custom"
	}
	return &Store{kv: kv, backend: backend}
}

// Close closes the backend.
func (s *Store) Close() error { return s.kv.Close() }

// Load decodes every record key.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	var timer watch.Timer
	ok, err := s.get(ctx, KeyActiveTimer, &timer)
	if err != nil {
		return snap, err
	}
	if ok {
		snap.Timer = &timer
	}

	raw, ok, err := s.raw(ctx, KeyTimerAlerted)
	if err != nil {
		return snap, err
	}
	if ok {
		snap.LegacyAlerted = parseFlag(raw)
	}

	var result watch.DeliveryResult
	ok, err = s.get(ctx, KeyLastDeliveryResult, &result)
	if err != nil {
		return snap, err
	}
	if ok {
		snap.Result = &result
	}

	if _, err := s.get(ctx, KeyActiveEventIDs, &snap.Handles); err != nil {
		return snap, err
	}
	return snap, nil
}

// PutTimer replaces the active timer record.
func (s *Store) PutTimer(ctx context.Context, t watch.Timer) error {
	return s.put(ctx, KeyActiveTimer, t)
}

// SetAlerted writes the legacy standalone flag.
func (s *Store) SetAlerted(ctx context.Context, alerted bool) error {
	if !alerted {
		return s.del(ctx, KeyTimerAlerted)
	}
	return s.put(ctx, KeyTimerAlerted, true)
}

// PutResult replaces the last delivery result.
func (s *Store) PutResult(ctx context.Context, r watch.DeliveryResult) error {
	return s.put(ctx, KeyLastDeliveryResult, r)
}

// ClearResult removes the last delivery result.
func (s *Store) ClearResult(ctx context.Context) error {
	return s.del(ctx, KeyLastDeliveryResult)
}

// PutHandles replaces the list of scheduled event handles.
func (s *Store) PutHandles(ctx context.Context, handles []string) error {
	if handles == nil {
		handles = []string{}
	}
	return s.put(ctx, KeyActiveEventIDs, handles)
}

// Clear deletes every record key. The timer goes first so that an
// interrupted Clear never leaves an armed window behind.
func (s *Store) Clear(ctx context.Context) error {
	for _, key := range Keys {
		if err := s.del(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) raw(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := s.kv.Get(ctx, key)
	metrics.RecordStoreOp(s.backend, "get", err)
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}
	return v, ok, nil
}

func (s *Store) get(ctx context.Context, key string, out any) (bool, error) {
	v, ok, err := s.raw(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(v, out); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

func (s *Store) put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	err = s.kv.Put(ctx, key, data)
	metrics.RecordStoreOp(s.backend, "put", err)
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func (s *Store) del(ctx context.Context, key string) error {
	err := s.kv.Delete(ctx, key)
	metrics.RecordStoreOp(s.backend, "delete", err)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// parseFlag accepts JSON true as well as the bare and quoted "true" strings
// written by older builds.
func parseFlag(raw []byte) bool {
	v := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	return strings.EqualFold(v, "true")
}
