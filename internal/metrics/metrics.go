// Package metrics exposes Prometheus counters for the fault pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Suppression reasons.
const (
	ReasonThrottled  = "throttled"
	ReasonThrow      = "throw"
	ReasonIneligible = "ineligible"
)

// Metrics holds the pipeline counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	FaultsRecorded      prometheus.Counter
	FaultsInvalid       prometheus.Counter
	FirstOccurrences    prometheus.Counter
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
	Suppressed          *prometheus.CounterVec
	SummariesSent       prometheus.Counter
	StoreDegraded       prometheus.Counter
}

// New creates the counters on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FaultsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "faultwatch",
			Name:      "faults_recorded_total",
			Help:      "Faults recorded in the stats store.",
		}),
		FaultsInvalid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "faultwatch",
			Name:      "faults_invalid_total",
			Help:      "Faults rejected for missing classification fields.",
		}),
		FirstOccurrences: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "faultwatch",
			Name:      "first_occurrences_total",
			Help:      "Faults seen for the first time.",
		}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "faultwatch",
			Name:      "notifications_sent_total",
			Help:      "Single-fault notifications delivered.",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "faultwatch",
			Name:      "notifications_failed_total",
			Help:      "Notifications the transport failed to deliver.",
		}),
		Suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faultwatch",
			Name:      "notifications_suppressed_total",
			Help:      "Faults that did not produce a notification, by reason.",
		}, []string{"reason"}),
		SummariesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "faultwatch",
			Name:      "summaries_sent_total",
			Help:      "Shutdown summaries delivered.",
		}),
		StoreDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "faultwatch",
			Name:      "store_degraded_total",
			Help:      "Times the stats store fell back to memory-only mode.",
		}),
	}
	m.registry.MustRegister(
		m.FaultsRecorded,
		m.FaultsInvalid,
		m.FirstOccurrences,
		m.NotificationsSent,
		m.NotificationsFailed,
		m.Suppressed,
		m.SummariesSent,
		m.StoreDegraded,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Recorded(first bool) {
	if m == nil {
		return
	}
	m.FaultsRecorded.Inc()
	if first {
		m.FirstOccurrences.Inc()
	}
}

func (m *Metrics) Invalid() {
	if m == nil {
		return
	}
	m.FaultsInvalid.Inc()
}

func (m *Metrics) Sent() {
	if m == nil {
		return
	}
	m.NotificationsSent.Inc()
}

func (m *Metrics) Failed() {
	if m == nil {
		return
	}
	m.NotificationsFailed.Inc()
}

func (m *Metrics) Suppress(reason string) {
	if m == nil {
		return
	}
	m.Suppressed.WithLabelValues(reason).Inc()
}

func (m *Metrics) Summary() {
	if m == nil {
		return
	}
	m.SummariesSent.Inc()
}

func (m *Metrics) Degraded() {
	if m == nil {
		return
	}
	m.StoreDegraded.Inc()
}
