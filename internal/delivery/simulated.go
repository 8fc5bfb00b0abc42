// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package delivery

import (
	"context"
	"fmt"

	"github.com/ManuGH/petwatch/internal/domain/watch"
	plog "github.com/ManuGH/petwatch/internal/log"
)

// Simulated reports every recipient as sent without contacting anyone.
type Simulated struct{}

func (Simulated) Name() watch.Backend { return watch.BackendSimulated }

func (Simulated) Send(ctx context.Context, recipients []watch.Recipient, _ string) Outcome {
	phones := watch.Phones(recipients)
	logger := plog.WithComponentFromContext(ctx, "delivery.simulated")
	logger.Warn().
		Str(plog.FieldEvent, "delivery.simulated").
		Strs(plog.FieldRecipients, plog.MaskPhones(phones)).
		Msg("no SMS service configured, simulating delivery")
	return Outcome{
		SentTo:  phones,
		Message: fmt.Sprintf("No SMS service configured; simulated SMS to %d contacts", len(recipients)),
	}
}
