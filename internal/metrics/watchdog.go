// SPDX-License-Identifier: MIT

// Package metrics exposes the Prometheus instruments of petwatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Watchdog lifecycle
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petwatch_transitions_total",
		Help: "State machine transitions by source and target state",
	}, []string{"from", "to"})

	armed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "petwatch_armed",
		Help: "Whether a watch window is active (1) or not (0)",
	})

	scheduledEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petwatch_scheduled_events_total",
		Help: "Scheduled events handled by kind and outcome",
	}, []string{"kind", "outcome"}) // outcome=stale|duplicate|notified|dispatched|retried

	recoveryReplaysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petwatch_recovery_replays_total",
		Help: "Events replayed by the reconciler on start-up",
	}, []string{"kind"})

	recoveryRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petwatch_recovery_runs_total",
		Help: "Reconciler runs by resulting state",
	}, []string{"state"})

	// Delivery
	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petwatch_dispatch_total",
		Help: "Alert dispatches by backend and reach",
	}, []string{"backend", "reach"}) // reach=all|some|nobody

	recipientsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petwatch_dispatch_recipients_total",
		Help: "Recipient send attempts by backend and outcome",
	}, []string{"backend", "outcome"}) // outcome=sent|failed

	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "petwatch_dispatch_duration_seconds",
		Help:    "Wall time of one alert dispatch",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"backend"})

	// Persistence
	storeOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petwatch_store_operations_total",
		Help: "Timer state store operations by backend, operation and outcome",
	}, []string{"backend", "op", "outcome"}) // outcome=success|error
)

// RecordTransition counts a state change and updates the armed gauge.
func RecordTransition(from, to string) {
	transitionsTotal.WithLabelValues(from, to).Inc()
	SetArmed(to != "idle")
}

// SetArmed sets the armed gauge.
func SetArmed(active bool) {
	if active {
		armed.Set(1)
		return
	}
	armed.Set(0)
}

func IncScheduledEvent(kind, outcome string) {
	scheduledEventsTotal.WithLabelValues(kind, outcome).Inc()
}

func IncRecoveryReplay(kind string) { recoveryReplaysTotal.WithLabelValues(kind).Inc() }
func IncRecoveryRun(state string)   { recoveryRuns.WithLabelValues(state).Inc() }

// RecordDispatch records the aggregate of one dispatch.
func RecordDispatch(backend, reach string, sent, failed int, seconds float64) {
	dispatchTotal.WithLabelValues(backend, reach).Inc()
	recipientsTotal.WithLabelValues(backend, "sent").Add(float64(sent))
	recipientsTotal.WithLabelValues(backend, "failed").Add(float64(failed))
	dispatchDuration.WithLabelValues(backend).Observe(seconds)
}

// RecordStoreOp counts a persistence operation.
func RecordStoreOp(backend, op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	storeOpsTotal.WithLabelValues(backend, op, outcome).Inc()
}
