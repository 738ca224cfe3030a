// Package observability exposes Prometheus metrics for the ingestion pipeline.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	ingestRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gymdashsync",
		Subsystem: "ingest",
		Name:      "records_total",
		Help:      "Ingested records by kind and outcome.",
	}, []string{"kind", "outcome"})

	ingestBatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gymdashsync",
		Subsystem: "ingest",
		Name:      "batches_total",
		Help:      "Ingestion batches by kind and final status.",
	}, []string{"kind", "status"})
)

func init() {
	prometheus.MustRegister(ingestRecords, ingestBatches)
}

// RecordBatch tallies the outcome of one ingestion batch.
func RecordBatch(kind, status string, inserted, duplicates, warnings, errors int) {
	ingestRecords.WithLabelValues(kind, "inserted").Add(float64(inserted))
	ingestRecords.WithLabelValues(kind, "duplicate").Add(float64(duplicates))
	ingestRecords.WithLabelValues(kind, "warning").Add(float64(warnings))
	ingestRecords.WithLabelValues(kind, "error").Add(float64(errors))
	ingestBatches.WithLabelValues(kind, status).Inc()
}
