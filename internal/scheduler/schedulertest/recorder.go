// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package schedulertest provides a recording Scheduler for tests.
package schedulertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/petwatch/internal/scheduler"
)

// ErrInjected is returned once FailAfter schedules have succeeded.
var ErrInjected = errors.New("injected schedule failure")

// Entry is one recorded Schedule call.
type Entry struct {
	Handle  scheduler.Handle
	After   time.Duration
	Payload scheduler.Payload
}

// Recorder records calls and never fires anything by itself.
type Recorder struct {
	mu        sync.Mutex
	next      int
	live      map[scheduler.Handle]Entry
	scheduled []Entry
	cancelled []scheduler.Handle
	cancelAll int

	// FailAfter makes Schedule fail after this many successes when > 0.
	FailAfter int
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{live: make(map[scheduler.Handle]Entry)}
}

func (r *Recorder) Schedule(_ context.Context, after time.Duration, p scheduler.Payload) (scheduler.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAfter > 0 && len(r.scheduled) >= r.FailAfter {
		return "", ErrInjected
	}
	r.next++
	e := Entry{Handle: scheduler.Handle(fmt.Sprintf("h%d", r.next)), After: after, Payload: p}
	r.scheduled = append(r.scheduled, e)
	r.live[e.Handle] = e
	return e.Handle, nil
}

func (r *Recorder) Cancel(_ context.Context, h scheduler.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, h)
	delete(r.live, h)
	return nil
}

func (r *Recorder) CancelAll(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelAll++
	clear(r.live)
	return nil
}

// Scheduled returns every Schedule call so far.
func (r *Recorder) Scheduled() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.scheduled...)
}

// Live returns the number of scheduled entries not cancelled.
func (r *Recorder) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Cancelled returns every handle passed to Cancel.
func (r *Recorder) Cancelled() []scheduler.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]scheduler.Handle(nil), r.cancelled...)
}

// CancelAllCalls counts CancelAll invocations.
func (r *Recorder) CancelAllCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelAll
}

// Reset forgets recorded calls. Live entries are dropped too.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = nil
	r.cancelled = nil
	r.cancelAll = 0
	clear(r.live)
}
