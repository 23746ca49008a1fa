// Package metrics provides Prometheus instrumentation for the scan core.
// Collectors are registered on an injected registry so tests can assert on
// isolated instances.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the core's collectors.
type Metrics struct {
	SnapshotsProcessed prometheus.Counter
	DeliveryErrors     prometheus.Counter
	SessionsStarted    prometheus.Counter

	ExportsTotal   *prometheus.CounterVec
	ReportsSkipped prometheus.Counter
	ExportDuration prometheus.Histogram
}

// New registers the scan core collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SnapshotsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomscan_snapshots_processed_total",
			Help: "Snapshots delivered by the capture engine and measured",
		}),
		DeliveryErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomscan_delivery_errors_total",
			Help: "Recoverable snapshot delivery errors",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomscan_sessions_started_total",
			Help: "Scan sessions started",
		}),
		ExportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "roomscan_exports_total",
			Help: "Export invocations by outcome",
		}, []string{"status"}),
		ReportsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomscan_reports_skipped_total",
			Help: "Report artifacts skipped after soft generation failures",
		}),
		ExportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "roomscan_export_duration_seconds",
			Help:    "Wall time of export invocations",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		}),
	}
}

// Nop returns metrics bound to a throwaway registry, for callers that do not
// care about instrumentation.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
