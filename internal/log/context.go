// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package log provides structured logging on top of zerolog.
package log

import (
	"context"

	"github.com/rs/zerolog"
)

// trail is the set of correlation values carried through a context. It is
// copied on every change so parent contexts are never mutated.
type trail struct {
	requestID     string
	correlationID string
	generation    int64
}

type trailKey struct{}

func trailFrom(ctx context.Context) trail {
	if ctx == nil {
		return trail{}
	}
	t, _ := ctx.Value(trailKey{}).(trail)
	return t
}

func withTrail(ctx context.Context, edit func(*trail)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	t := trailFrom(ctx)
	edit(&t)
	return context.WithValue(ctx, trailKey{}, t)
}

// ContextWithRequestID tags ctx with the HTTP request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withTrail(ctx, func(t *trail) { t.requestID = id })
}

// ContextWithCorrelationID tags ctx with a caller-chosen correlation id.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return withTrail(ctx, func(t *trail) { t.correlationID = id })
}

// ContextWithGeneration tags ctx with the watch generation being handled.
func ContextWithGeneration(ctx context.Context, gen int64) context.Context {
	return withTrail(ctx, func(t *trail) { t.generation = gen })
}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string { return trailFrom(ctx).requestID }

// CorrelationIDFromContext returns the correlation id or "".
func CorrelationIDFromContext(ctx context.Context) string { return trailFrom(ctx).correlationID }

// GenerationFromContext returns the watch generation or 0.
func GenerationFromContext(ctx context.Context) int64 { return trailFrom(ctx).generation }

// WithContext adds the correlation values present in ctx to logger.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	t := trailFrom(ctx)
	if t == (trail{}) {
		return logger
	}
	lc := logger.With()
	if t.requestID != "" {
		lc = lc.Str(FieldRequestID, t.requestID)
	}
	if t.correlationID != "" {
		lc = lc.Str(FieldCorrelationID, t.correlationID)
	}
	if t.generation != 0 {
		lc = lc.Int64(FieldGeneration, t.generation)
	}
	return lc.Logger()
}

// WithComponentFromContext is WithComponent enriched from ctx.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
