// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ManuGH/petwatch/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecordTransition_UpdatesArmedGauge(t *testing.T) {
	metrics.RecordTransition("idle", "armed")
	out := scrape(t)
	assert.Contains(t, out, `petwatch_transitions_total{from="idle",to="armed"}`)
	assert.Contains(t, out, "petwatch_armed 1")

	metrics.RecordTransition("armed", "idle")
	assert.Contains(t, scrape(t), "petwatch_armed 0")
}

func TestRecordDispatch(t *testing.T) {
	metrics.RecordDispatch("backend", "some", 1, 1, 0.2)
	metrics.RecordDispatch("backend", "all", 2, 0, 0.1)

	out := scrape(t)
	assert.Contains(t, out, `petwatch_dispatch_total{backend="backend",reach="some"} 1`)
	assert.Contains(t, out, `petwatch_dispatch_recipients_total{backend="backend",outcome="sent"} 3`)
	assert.Contains(t, out, `petwatch_dispatch_recipients_total{backend="backend",outcome="failed"} 1`)
	assert.True(t, strings.Contains(out, "petwatch_dispatch_duration_seconds_bucket"))
}

func TestRecordStoreOp(t *testing.T) {
	metrics.RecordStoreOp("memory", "put", nil)
	metrics.RecordStoreOp("memory", "put", errors.New("boom"))

	out := scrape(t)
	assert.Contains(t, out, `petwatch_store_operations_total{backend="memory",op="put",outcome="success"} 1`)
	assert.Contains(t, out, `petwatch_store_operations_total{backend="memory",op="put",outcome="error"} 1`)
}

func TestCountersLint(t *testing.T) {
	metrics.IncScheduledEvent("main_expiry", "dispatched")
	metrics.IncRecoveryReplay("follow_up")
	metrics.IncRecoveryRun("alerting")

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	require.NoError(t, err)
	for _, p := range problems {
		if strings.HasPrefix(p.Metric, "petwatch_") {
			t.Errorf("lint %s: %s", p.Metric, p.Text)
		}
	}
}

// counterValue reads one labelled series from the default registry.
func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m.GetLabel(), labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if want[p.GetName()] != p.GetValue() {
			return false
		}
	}
	return true
}

func TestIncScheduledEvent_Delta(t *testing.T) {
	labels := map[string]string{"kind": "reminder", "outcome": "stale"}
	before := counterValue(t, "petwatch_scheduled_events_total", labels)
	metrics.IncScheduledEvent("reminder", "stale")
	metrics.IncScheduledEvent("reminder", "stale")
	assert.Equal(t, before+2, counterValue(t, "petwatch_scheduled_events_total", labels))
}
