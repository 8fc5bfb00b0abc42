// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package watchdog

import (
	"context"

	"github.com/ManuGH/petwatch/internal/compose"
	plog "github.com/ManuGH/petwatch/internal/log"
)

// Notifier posts a local user notification.
type Notifier interface {
	Notify(ctx context.Context, n compose.Notification) error
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n compose.Notification) error {
	logger := plog.WithComponentFromContext(ctx, "notify")
	logger.Warn().
		Str(plog.FieldEvent, "notify.local").
		Str("title", n.Title).
		Str("priority", string(n.Priority)).
		Bool("sticky", n.Sticky).
		Msg(n.Body)
	return nil
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n compose.Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n compose.Notification) error { return f(ctx, n) }
