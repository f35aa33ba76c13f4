package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chansync"

// Metrics holds the collectors exported on /metrics
type Metrics struct {
	registry *prometheus.Registry

	PollTicks         *prometheus.CounterVec
	FetchErrors       *prometheus.CounterVec
	DecodeErrors      *prometheus.CounterVec
	Reconciliations   prometheus.Counter
	DraftsRetired     prometheus.Counter
	ShortClipsDeleted prometheus.Counter
	ProbeFailures     prometheus.Counter
	DisplayedItems    prometheus.Gauge
	ActiveLoops       prometheus.Gauge
}

// New creates the collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Background poller iterations by loop kind.",
		}, []string{"kind"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed backend calls by operation.",
		}, []string{"operation"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Malformed content pages treated as empty, by operation.",
		}, []string{"operation"}),
		Reconciliations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Reconciliation passes applied to the displayed list.",
		}),
		DraftsRetired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drafts_retired_total",
			Help:      "Drafts replaced by their processed server item.",
		}),
		ShortClipsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "short_clips_deleted_total",
			Help:      "Videos deleted by the short-clip sweep.",
		}),
		ProbeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duration_probe_failures_total",
			Help:      "Media duration probes that failed.",
		}),
		DisplayedItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "displayed_items",
			Help:      "Items in the current displayed list.",
		}),
		ActiveLoops: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_loops",
			Help:      "Background loops currently running.",
		}),
	}

	m.registry.MustRegister(
		m.PollTicks,
		m.FetchErrors,
		m.DecodeErrors,
		m.Reconciliations,
		m.DraftsRetired,
		m.ShortClipsDeleted,
		m.ProbeFailures,
		m.DisplayedItems,
		m.ActiveLoops,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
