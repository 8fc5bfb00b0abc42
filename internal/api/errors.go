// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/petwatch/internal/domain/watch"
	"github.com/ManuGH/petwatch/internal/log"
	"github.com/ManuGH/petwatch/internal/watchdog"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error     string   `json:"error"`
	Detail    string   `json:"detail,omitempty"`
	Fields    []string `json:"fields,omitempty"`
	RequestID string   `json:"requestId,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain sentinels to HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, watch.ErrAlreadyArmed):
		return http.StatusConflict, "already_armed"
	case errors.Is(err, watch.ErrNotArmed):
		return http.StatusConflict, "not_armed"
	case errors.Is(err, watch.ErrInvalidDuration):
		return http.StatusUnprocessableEntity, "invalid_duration"
	case errors.Is(err, watch.ErrNoRecipients):
		return http.StatusUnprocessableEntity, "no_recipients"
	case errors.Is(err, watchdog.ErrInvalidPayload):
		return http.StatusBadRequest, "invalid_event"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError writes the envelope for err. Internal errors are logged and
// their detail withheld.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := statusFor(err)
	body := errorBody{Error: kind, RequestID: log.RequestIDFromContext(r.Context())}
	if code == http.StatusInternalServerError {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str(log.FieldEvent, "api.internal_error").
			Str(log.FieldPath, r.URL.Path).
			Msg("request failed")
	} else {
		body.Detail = err.Error()
	}
	writeJSON(w, code, body)
}

// writeBadRequest writes a 400 for a body that could not be decoded.
func writeBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Error:     "bad_request",
		Detail:    detail,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

// writeValidation writes a 422 naming the offending fields.
func writeValidation(w http.ResponseWriter, r *http.Request, fields []string) {
	writeJSON(w, http.StatusUnprocessableEntity, errorBody{
		Error:     "validation_failed",
		Fields:    fields,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}
