// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package watch

import "time"

// Backend names the delivery mechanism that produced a result.
type Backend string

const (
	BackendNone      Backend = "none"
	BackendTwilio    Backend = "twilio"
	BackendBatch     Backend = "backend"
	BackendSimulated Backend = "simulated"
)

// Reach classifies a delivery outcome for the UI.
type Reach string

const (
	ReachNone   Reach = "none"   // no alert dispatched yet
	ReachAll    Reach = "all"    // alert sent to everyone
	ReachSome   Reach = "some"   // alert sent to some contacts
	ReachNobody Reach = "nobody" // alert could not be sent, act manually
)

// DeliveryResult is the persisted outcome of an alert dispatch.
// SentTo and FailedTo partition the recipient phones.
type DeliveryResult struct {
	Sent      bool      `json:"sent"`
	SentTo    []string  `json:"sentTo"`
	FailedTo  []string  `json:"failedTo"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Backend   Backend   `json:"backend,omitempty"`
	Attempts  int       `json:"attempts,omitempty"`
	// Pending marks a dispatch that was started but whose outcome is not recorded yet.
	Pending bool `json:"pending,omitempty"`
}

// TotalFailure reports whether nobody was reached although someone should have been.
func (r DeliveryResult) TotalFailure() bool {
	return len(r.SentTo) == 0 && len(r.FailedTo) > 0
}

// Reach classifies the result.
func (r *DeliveryResult) Reach() Reach {
	if r == nil || r.Pending {
		return ReachNone
	}
	switch {
	case len(r.SentTo) == 0:
		return ReachNobody
	case len(r.FailedTo) == 0:
		return ReachAll
	default:
		return ReachSome
	}
}

// Clone returns a deep copy of the result.
func (r DeliveryResult) Clone() DeliveryResult {
	out := r
	out.SentTo = append([]string{}, r.SentTo...)
	out.FailedTo = append([]string{}, r.FailedTo...)
	return out
}

// Merge folds a retry outcome into r: phones that succeeded move from FailedTo
// to SentTo, phones still failing stay in FailedTo.
func (r DeliveryResult) Merge(retry DeliveryResult) DeliveryResult {
	out := r.Clone()
	recovered := make(map[string]struct{}, len(retry.SentTo))
	for _, p := range retry.SentTo {
		recovered[p] = struct{}{}
	}
	failed := out.FailedTo[:0]
	for _, p := range out.FailedTo {
		if _, ok := recovered[p]; ok {
			out.SentTo = append(out.SentTo, p)
			continue
		}
		failed = append(failed, p)
	}
	out.FailedTo = failed
	out.Sent = len(out.SentTo) > 0
	out.Message = retry.Message
	out.Timestamp = retry.Timestamp
	out.Backend = retry.Backend
	out.Attempts = r.Attempts + 1
	out.Pending = false
	return out
}
