// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scheduler

import (
	"context"
	"sync"
	"time"

	plog "github.com/ManuGH/petwatch/internal/log"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LocalOption customises a Local scheduler.
type LocalOption func(*Local)

// WithClock replaces the real clock.
func WithClock(c Clock) LocalOption { return func(l *Local) { l.clock = c } }

// WithFireTimeout bounds each sink invocation. Zero means no bound.
func WithFireTimeout(d time.Duration) LocalOption { return func(l *Local) { l.fireTimeout = d } }

// Local is an in-process Scheduler backed by timers.
type Local struct {
	clock       Clock
	sink        Sink
	fireTimeout time.Duration
	logger      zerolog.Logger

	mu     sync.Mutex
	timers map[Handle]Timer
	closed bool
	wg     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewLocal creates a scheduler delivering fires to sink.
func NewLocal(sink Sink, opts ...LocalOption) *Local {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Local{
		clock:  RealClock{},
		sink:   sink,
		logger: plog.WithComponent("scheduler"),
		timers: make(map[Handle]Timer),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Schedule arms a fire after the delay. Negative delays fire immediately.
func (l *Local) Schedule(_ context.Context, after time.Duration, p Payload) (Handle, error) {
	if after < 0 {
		after = 0
	}
	h := Handle(uuid.NewString())

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return "", ErrClosed
	}
	l.timers[h] = l.clock.AfterFunc(after, func() { l.fire(h, p) })

	l.logger.Debug().
		Str(plog.FieldEvent, "scheduler.scheduled").
		Str(plog.FieldHandle, string(h)).
		Str(plog.FieldKind, string(p.Kind)).
		Int(plog.FieldStep, p.Step).
		Dur(plog.FieldDuration, after).
		Msg("event scheduled")
	return h, nil
}

func (l *Local) fire(h Handle, p Payload) {
	l.mu.Lock()
	if _, ok := l.timers[h]; !ok || l.closed {
		l.mu.Unlock()
		return
	}
	delete(l.timers, h)
	// Add under the lock so Close never waits before registration.
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		ctx := l.ctx
		if l.fireTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, l.fireTimeout)
			defer cancel()
		}
		l.logger.Debug().
			Str(plog.FieldEvent, "scheduler.fired").
			Str(plog.FieldHandle, string(h)).
			Str(plog.FieldKind, string(p.Kind)).
			Msg("event fired")
		l.sink(ctx, p)
	}()
}

// Cancel stops a pending fire.
func (l *Local) Cancel(_ context.Context, h Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.timers[h]; ok {
		t.Stop()
		delete(l.timers, h)
	}
	return nil
}

// CancelAll stops every pending fire.
func (l *Local) CancelAll(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for h, t := range l.timers {
		t.Stop()
		delete(l.timers, h)
	}
	return nil
}

// Close stops all timers, cancels in-flight sinks and waits for them.
func (l *Local) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	for h, t := range l.timers {
		t.Stop()
		delete(l.timers, h)
	}
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
	return nil
}
