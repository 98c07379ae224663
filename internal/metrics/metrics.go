// Package metrics exposes the Prometheus counters and gauges emitted
// across the pipeline. Grounded on
// backend/ingest/internal/metrics/metrics.go's flat counter-struct
// style, extended with the gauges the analyzer/analytics stages need.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter and gauge the pipeline reports.
type Metrics struct {
	EventsTotal          prometheus.Counter
	EventsInvalidTotal   prometheus.Counter
	EventsDroppedAnalysisTotal prometheus.Counter
	StoreFailuresTotal   prometheus.Counter
	AlertsTotal          *prometheus.CounterVec // by severity
	ProbesAttemptedTotal prometheus.Counter
	ProbesSkippedTotal   prometheus.Counter
	ProbesConfirmedTotal prometheus.Counter
	BlocksInstalledTotal prometheus.Counter
	BrokerDroppedTotal   prometheus.Counter
	QueueDepth           *prometheus.GaugeVec // by worker id
}

// New registers and returns the full metric set against the default
// registry.
func New() *Metrics {
	return &Metrics{
		EventsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shadowhunter_events_total",
			Help: "Total flow events consumed from the telemetry topic.",
		}),
		EventsInvalidTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shadowhunter_events_invalid_total",
			Help: "Flow events dropped for failing schema validation.",
		}),
		EventsDroppedAnalysisTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shadowhunter_events_dropped_analysis_total",
			Help: "Events whose detection pass failed and was not surfaced to the producer.",
		}),
		StoreFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shadowhunter_store_failures_total",
			Help: "Graph store upserts that exhausted their retry budget.",
		}),
		AlertsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "shadowhunter_alerts_total",
			Help: "Alerts emitted, by severity.",
		}, []string{"severity"}),
		ProbesAttemptedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shadowhunter_probes_attempted_total",
			Help: "Active-defense probes actually dispatched.",
		}),
		ProbesSkippedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shadowhunter_probes_skipped_total",
			Help: "Active-defense probes refused by a safety guard.",
		}),
		ProbesConfirmedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shadowhunter_probes_confirmed_total",
			Help: "Active-defense probes that confirmed an AI service.",
		}),
		BlocksInstalledTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shadowhunter_blocks_installed_total",
			Help: "Blocklist entries installed by the response manager.",
		}),
		BrokerDroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shadowhunter_broker_dropped_total",
			Help: "Messages dropped by the broker for a slow subscriber.",
		}),
		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "shadowhunter_worker_queue_depth",
			Help: "Current buffered event count per analyzer worker.",
		}, []string{"worker"}),
	}
}
