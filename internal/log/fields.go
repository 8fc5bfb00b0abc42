// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldGeneration    = "generation"
	FieldHandle        = "handle"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Watch fields
	FieldKind           = "kind"
	FieldStep           = "step"
	FieldMinutesOverdue = "minutes_overdue"
	FieldDuration       = "duration_minutes"
	FieldExpiresAt      = "expires_at"
	FieldPet            = "pet"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Delivery fields
	FieldBackend    = "backend"
	FieldRecipients = "recipients"
	FieldSent       = "sent"
	FieldFailed     = "failed"
	FieldPhone      = "phone"

	// Storage fields
	FieldStore = "store"
	FieldKey   = "key"
	FieldPath  = "path"
)
