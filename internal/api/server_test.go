// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/petwatch/internal/delivery"
	"github.com/ManuGH/petwatch/internal/domain/watch"
	"github.com/ManuGH/petwatch/internal/health"
	"github.com/ManuGH/petwatch/internal/profile"
	"github.com/ManuGH/petwatch/internal/scheduler/schedulertest"
	"github.com/ManuGH/petwatch/internal/timerstate"
	"github.com/ManuGH/petwatch/internal/watchdog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type staticProfile struct {
	p  profile.Profile
	ok bool
}

func (s staticProfile) Snapshot() (profile.Profile, bool) { return s.p.Clone(), s.ok }

type fixture struct {
	srv   *Server
	store *timerstate.Store
	sched *schedulertest.Recorder
	now   time.Time
}

func newFixture(t *testing.T, profiles ProfileSource) *fixture {
	t.Helper()
	f := &fixture{
		store: timerstate.NewStore(timerstate.NewMemory(), "memory"),
		sched: schedulertest.New(),
		now:   t0,
	}
	clock := func() time.Time { return f.now }
	chain := delivery.NewChain(delivery.Config{}, delivery.WithClock(clock))
	m := watchdog.New(f.store, f.sched, chain, watchdog.WithClock(clock))
	f.srv = New(Config{Version: "test", Gatherer: prometheus.NewRegistry()}, m, profiles)
	t.Cleanup(func() { _ = f.store.Close() })
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const armTwo = `{"duration_minutes":30,"pet_name":"Rex","recipients":[{"name":"Ann","phone":"5551112222"},{"name":"Bob","phone":"5553334444"}]}`

func TestArm_Created(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/watch", armTwo)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[armResponse](t, rec)
	assert.Len(t, resp.Handles, 7, "main expiry plus six follow-ups")
	assert.Equal(t, 7, f.sched.Live())

	st := decode[watchdog.Status](t, f.do(t, http.MethodGet, "/api/v1/watch", ""))
	assert.Equal(t, watch.StateArmed, st.State)
	assert.Equal(t, "Rex", st.PetName)
	assert.Equal(t, 30*time.Minute, st.TimeRemaining)
}

func TestArm_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"zero duration", `{"duration_minutes":0,"recipients":[{"name":"A","phone":"1"}]}`, http.StatusUnprocessableEntity, "invalid_duration"},
		{"no recipients", `{"duration_minutes":10}`, http.StatusUnprocessableEntity, "no_recipients"},
		{"recipient without phone", `{"duration_minutes":10,"recipients":[{"name":"A"}]}`, http.StatusUnprocessableEntity, "validation_failed"},
		{"unknown field", `{"duration_minutes":10,"colour":"red"}`, http.StatusBadRequest, "bad_request"},
		{"empty body", ``, http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			rec := f.do(t, http.MethodPost, "/api/v1/watch", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, decode[errorBody](t, rec).Error)
			assert.Empty(t, f.sched.Scheduled(), "rejected arm must not schedule")
		})
	}
}

func TestArm_AlreadyArmed(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/watch", armTwo).Code)

	f.now = t0.Add(2 * time.Hour)
	rec := f.do(t, http.MethodPost, "/api/v1/watch", armTwo)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_armed", decode[errorBody](t, rec).Error)
}

func TestArm_DefaultsFromProfile(t *testing.T) {
	p := profile.Profile{
		Pet:      profile.Pet{Name: "Mochi"},
		Contacts: []profile.Contact{{ID: "c1", Name: "Dee", Phone: "+15557778888"}},
		Care:     watch.CareSnapshot{FoodType: "kibble"},
	}
	f := newFixture(t, staticProfile{p: p, ok: true})

	rec := f.do(t, http.MethodPost, "/api/v1/watch", `{"duration_minutes":90}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, decode[armResponse](t, rec).Handles, 8, "reminder is planned for 90 minutes")

	snap, err := f.store.Load(t.Context())
	require.NoError(t, err)
	require.NotNil(t, snap.Timer)
	assert.Equal(t, "Mochi", snap.Timer.PetName)
	assert.Equal(t, []watch.Recipient{{Name: "Dee", Phone: "+15557778888"}}, snap.Timer.Recipients)
	assert.Equal(t, "kibble", snap.Timer.Care.FoodType)
}

func TestCloseEndpoints(t *testing.T) {
	for _, tc := range []struct {
		path   string
		reason watchdog.Reason
	}{
		{"/api/v1/watch/check-in", watchdog.ReasonCheckedIn},
		{"/api/v1/watch/cancel", watchdog.ReasonCancelled},
	} {
		t.Run(tc.path, func(t *testing.T) {
			f := newFixture(t, nil)

			rec := f.do(t, http.MethodPost, tc.path, "")
			assert.Equal(t, http.StatusConflict, rec.Code)
			assert.Equal(t, "not_armed", decode[errorBody](t, rec).Error)

			require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/watch", armTwo).Code)
			rec = f.do(t, http.MethodPost, tc.path, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			c := decode[watchdog.Closure](t, rec)
			assert.Equal(t, tc.reason, c.Reason)
			assert.Equal(t, watch.StateArmed, c.FromState)

			st := decode[watchdog.Status](t, f.do(t, http.MethodGet, "/api/v1/watch", ""))
			assert.Equal(t, watch.StateIdle, st.State)
		})
	}
}

func TestEvents(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/watch", armTwo).Code)
	gen := t0.UnixNano()

	f.now = t0.Add(30 * time.Minute)
	body := fmt.Sprintf(`{"kind":"main_expiry","generation":%d}`, gen)
	rec := f.do(t, http.MethodPost, "/api/v1/events", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, watchdog.OutcomeDispatched, decode[eventResponse](t, rec).Outcome)

	rec = f.do(t, http.MethodPost, "/api/v1/events", body)
	assert.Equal(t, watchdog.OutcomeDuplicate, decode[eventResponse](t, rec).Outcome)

	st := decode[watchdog.Status](t, f.do(t, http.MethodGet, "/api/v1/watch", ""))
	assert.Equal(t, watch.StateAlerting, st.State)
	require.NotNil(t, st.LastDeliveryResult)
	assert.True(t, st.LastDeliveryResult.Sent)
	assert.Equal(t, watch.ReachAll, st.Reach)

	rec = f.do(t, http.MethodPost, "/api/v1/events", fmt.Sprintf(`{"kind":"main_expiry","generation":%d}`, gen+1))
	assert.Equal(t, watchdog.OutcomeStale, decode[eventResponse](t, rec).Outcome)
}

func TestEvents_InvalidPayload(t *testing.T) {
	f := newFixture(t, nil)
	for _, body := range []string{
		`{"kind":"bogus","generation":1}`,
		`{"kind":"follow_up","step":9,"generation":1}`,
		`{"kind":"main_expiry"}`,
	} {
		rec := f.do(t, http.MethodPost, "/api/v1/events", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "invalid_event", decode[errorBody](t, rec).Error, body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	h := decode[health.HealthResponse](t, rec)
	assert.Equal(t, health.StatusHealthy, h.Status)
	assert.Equal(t, "test", h.Version)

	rec = f.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[health.ReadinessResponse](t, rec)
	assert.True(t, ready.Ready)
	assert.Equal(t, health.StatusHealthy, ready.Checks["state_store"].Status)
	assert.Equal(t, health.StatusDegraded, ready.Checks["profile"].Status, "no profile source")
	assert.Equal(t, "idle", ready.Checks["alert_delivery"].Message)

	rec = f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResponsesCarryRequestID(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/watch/cancel", bytes.NewReader(nil))
	req.Header.Set("X-Request-ID", "abc-1")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc-1", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "abc-1", decode[errorBody](t, rec).RequestID)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
