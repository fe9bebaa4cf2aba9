package itable

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "intervaltree"
	metricsSubsystem = "table"

	claimResultOK       = "ok"
	claimResultConflict = "conflict"
	claimResultInvalid  = "invalid"
)

type metrics struct {
	entries  prometheus.Gauge
	claims   *prometheus.CounterVec
	releases prometheus.Counter
}

// newMetrics creates the table metrics and registers them with reg. A nil reg
// leaves them unregistered.
func newMetrics(name string, reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	constLabels := prometheus.Labels{"table": name}
	return &metrics{
		entries: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        "entries",
			Help:        "Number of intervals stored in the table.",
			ConstLabels: constLabels,
		}),
		claims: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        "claims_total",
			Help:        "Number of claims by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		releases: f.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        "releases_total",
			Help:        "Number of intervals released.",
			ConstLabels: constLabels,
		}),
	}
}

// the methods accept a nil receiver, clones do not report metrics

func (m *metrics) claimed(result string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(result).Inc()
}

func (m *metrics) released(n int) {
	if m == nil {
		return
	}
	m.releases.Add(float64(n))
}

func (m *metrics) setEntries(n int) {
	if m == nil {
		return
	}
	m.entries.Set(float64(n))
}
