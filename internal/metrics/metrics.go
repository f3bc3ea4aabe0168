// Package metrics exposes import progress as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rlch/neoimport"
)

// Registry holds the import metrics. It implements [neoimport.Observer].
type Registry struct {
	OperationsTotal      *prometheus.CounterVec
	OperationDuration    *prometheus.HistogramVec
	RowsSkippedTotal     *prometheus.CounterVec
	NodesCreated         *prometheus.CounterVec
	RelationshipsCreated *prometheus.CounterVec
	PropertiesSet        *prometheus.CounterVec
	LastRunSuccess       prometheus.Gauge
	LastRunTimestamp     prometheus.Gauge

	registry *prometheus.Registry
}

var _ neoimport.Observer = (*Registry)(nil)

// NewRegistry creates a registry with every import metric registered.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	f := promauto.With(r.registry)

	r.OperationsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neoimport_operations_total",
			Help: "Bulk operations executed, by phase and status",
		},
		[]string{"phase", "operation", "status"},
	)
	r.OperationDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neoimport_operation_duration_seconds",
			Help:    "Bulk operation duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		},
		[]string{"phase", "operation"},
	)
	r.RowsSkippedTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neoimport_rows_skipped_total",
			Help: "CSV rows skipped because of a missing or unparseable key",
		},
		[]string{"file", "operation"},
	)
	r.NodesCreated = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neoimport_nodes_created_total",
			Help: "Nodes created by the server",
		},
		[]string{"operation"},
	)
	r.RelationshipsCreated = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neoimport_relationships_created_total",
			Help: "Relationships created by the server",
		},
		[]string{"operation"},
	)
	r.PropertiesSet = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neoimport_properties_set_total",
			Help: "Properties set by the server",
		},
		[]string{"operation"},
	)
	r.LastRunSuccess = f.NewGauge(prometheus.GaugeOpts{
		Name: "neoimport_last_run_success",
		Help: "1 if the last run finished its selected phases without failures",
	})
	r.LastRunTimestamp = f.NewGauge(prometheus.GaugeOpts{
		Name: "neoimport_last_run_timestamp_seconds",
		Help: "Unix time the last run finished",
	})
	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ObserveOperation records a finished bulk operation.
func (r *Registry) ObserveOperation(op neoimport.OpResult) {
	phase := string(op.Phase)
	status := "ok"
	switch {
	case op.Cancelled:
		status = "cancelled"
	case op.Failed():
		status = "failed"
	}
	r.OperationsTotal.WithLabelValues(phase, op.Name, status).Inc()
	r.OperationDuration.WithLabelValues(phase, op.Name).Observe(op.Duration.Seconds())
	if op.Failed() {
		return
	}
	r.RowsSkippedTotal.WithLabelValues(op.File, op.Name).Add(float64(op.Skipped))
	r.NodesCreated.WithLabelValues(op.Name).Add(float64(op.Counters.NodesCreated))
	r.RelationshipsCreated.WithLabelValues(op.Name).Add(float64(op.Counters.RelationshipsCreated))
	r.PropertiesSet.WithLabelValues(op.Name).Add(float64(op.Counters.PropertiesSet))
}

// ObserveReport records the outcome of a run. A run that completed the phases
// it selected without a failed operation counts as a success.
func (r *Registry) ObserveReport(report *neoimport.Report) {
	if report.Fatal != "" || report.Failed() {
		r.LastRunSuccess.Set(0)
	} else {
		r.LastRunSuccess.Set(1)
	}
	r.LastRunTimestamp.Set(float64(report.Finished.Unix()))
}

// WriteTextfile writes the metrics in the text exposition format, for the
// node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
