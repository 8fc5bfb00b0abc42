// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package watch

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyArmed is returned when arming while a window is active.
	ErrAlreadyArmed = errors.New("watch already armed")

	// ErrNoRecipients is returned when arming without emergency contacts.
	ErrNoRecipients = errors.New("no emergency contacts to notify")

	// ErrInvalidDuration is returned when arming with a non-positive duration.
	ErrInvalidDuration = errors.New("duration must be a positive number of minutes")

	// ErrNotArmed is returned when checking in or cancelling without an active window.
	ErrNotArmed = errors.New("watch is not armed")
)

// TransitionError is a rejected state transition. No state was mutated.
type TransitionError struct {
	Op    string
	State State
	Err   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s rejected in state %s: %v", e.Op, e.State, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// Reject builds a TransitionError.
func Reject(op string, state State, err error) error {
	return &TransitionError{Op: op, State: state, Err: err}
}
