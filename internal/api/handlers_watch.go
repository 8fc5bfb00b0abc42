// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ManuGH/petwatch/internal/domain/watch"
	"github.com/ManuGH/petwatch/internal/scheduler"
	"github.com/ManuGH/petwatch/internal/watchdog"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 64 << 10

type armRecipient struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required"`
}

type armBody struct {
	DurationMinutes int                 `json:"duration_minutes"`
	PetName         string              `json:"pet_name,omitempty"`
	Recipients      []armRecipient      `json:"recipients,omitempty" validate:"omitempty,dive"`
	Care            *watch.CareSnapshot `json:"care,omitempty"`
}

type armResponse struct {
	Handles []scheduler.Handle `json:"handles"`
}

type eventResponse struct {
	Outcome watchdog.Outcome `json:"outcome"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// armRequest fills fields the caller left out from the profile snapshot.
func (s *Server) armRequest(b armBody) watchdog.ArmRequest {
	req := watchdog.ArmRequest{DurationMinutes: b.DurationMinutes, PetName: b.PetName}
	for _, rc := range b.Recipients {
		req.Recipients = append(req.Recipients, watch.Recipient{Name: rc.Name, Phone: rc.Phone})
	}
	if b.Care != nil {
		req.Care = b.Care.Clone()
	}
	if s.profiles == nil {
		return req
	}
	p, ok := s.profiles.Snapshot()
	if !ok {
		return req
	}
	if req.PetName == "" {
		req.PetName = p.Pet.Name
	}
	if len(req.Recipients) == 0 {
		req.Recipients = p.Recipients()
	}
	if b.Care == nil {
		req.Care = p.Care.Clone()
	}
	return req
}

func (s *Server) handleArm(w http.ResponseWriter, r *http.Request) {
	var body armBody
	if err := decodeBody(w, r, &body); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	if err := s.validate.Struct(body); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace())
			}
			writeValidation(w, r, fields)
			return
		}
		writeBadRequest(w, r, err.Error())
		return
	}

	handles, err := s.machine.Arm(r.Context(), s.armRequest(body))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, armResponse{Handles: handles})
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	c, err := s.machine.CheckIn(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	c, err := s.machine.Cancel(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.machine.Status(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleEvent accepts fires from an external scheduler.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var p scheduler.Payload
	if err := decodeBody(w, r, &p); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	out, err := s.machine.OnScheduledEvent(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, eventResponse{Outcome: out})
}
