// Package metrics exposes Prometheus counters and histograms for the
// ingestion and retrieval engine, registered once per process with the
// default registry. internal/httpapi serves them at /metrics on the HTTP
// listener when metrics_port is non-zero; metrics_port itself is not
// listened on.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	global *Metrics
	once   sync.Once
)

// Metrics holds the process-wide Prometheus collectors. The success counters
// on the add-file path (files processed, chunks inserted) increment only on
// successful full processing of a file; FilesFailedTotal counts the add-file
// calls that did not complete.
type Metrics struct {
	FilesProcessedTotal *prometheus.CounterVec
	FilesFailedTotal    *prometheus.CounterVec
	FileProcessDuration *prometheus.HistogramVec

	ChunksInsertedTotal *prometheus.CounterVec
	BatchInsertDuration *prometheus.HistogramVec

	SearchRequestsTotal  *prometheus.CounterVec
	SearchResultsCount   prometheus.Histogram
	DeleteRequestsTotal  *prometheus.CounterVec
	IsolatedWorkersTotal *prometheus.CounterVec
}

// New returns the process-wide Metrics instance, registering its
// collectors with the default registry on first call.
func New() *Metrics {
	once.Do(func() {
		global = &Metrics{
			FilesProcessedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "reis_engine_files_processed_total",
					Help: "Total number of files successfully ingested, labeled by format.",
				},
				[]string{"format"},
			),

			FilesFailedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "reis_engine_files_failed_total",
					Help: "Total number of files that failed ingestion, labeled by error kind.",
				},
				[]string{"kind"},
			),

			FileProcessDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "reis_engine_file_process_duration_seconds",
					Help:    "Duration of add-file orchestration, labeled by format.",
					Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
				},
				[]string{"format"},
			),

			ChunksInsertedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "reis_engine_chunks_inserted_total",
					Help: "Total number of chunks inserted into the vector store, labeled by format.",
				},
				[]string{"format"},
			),

			BatchInsertDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "reis_engine_batch_insert_duration_seconds",
					Help:    "Duration of a single vector-store batch insert.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"store"},
			),

			SearchRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "reis_engine_search_requests_total",
					Help: "Total number of similarity-search requests, labeled by outcome.",
				},
				[]string{"outcome"},
			),

			SearchResultsCount: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "reis_engine_search_results_count",
					Help:    "Number of chunks returned per similarity-search request.",
					Buckets: prometheus.LinearBuckets(0, 5, 10),
				},
			),

			DeleteRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "reis_engine_delete_requests_total",
					Help: "Total number of delete-file requests, labeled by outcome.",
				},
				[]string{"outcome"},
			),

			IsolatedWorkersTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "reis_engine_isolated_workers_total",
					Help: "Total number of provider operations run in a spawned worker process, labeled by operation.",
				},
				[]string{"op"},
			),
		}
	})
	return global
}

// RecordFileProcessed increments the success counter and duration histogram
// for a completed add-file call.
func (m *Metrics) RecordFileProcessed(format string, durationSeconds float64) {
	m.FilesProcessedTotal.WithLabelValues(format).Inc()
	m.FileProcessDuration.WithLabelValues(format).Observe(durationSeconds)
}

// RecordFileFailed increments the failure counter for an add-file call that
// did not complete.
func (m *Metrics) RecordFileFailed(kind string) {
	m.FilesFailedTotal.WithLabelValues(kind).Inc()
}

// RecordChunksInserted increments the chunk-insertion counter by n for format.
func (m *Metrics) RecordChunksInserted(format string, n int) {
	m.ChunksInsertedTotal.WithLabelValues(format).Add(float64(n))
}

// RecordBatchInsert records the duration of a single vector-store batch insert.
func (m *Metrics) RecordBatchInsert(store string, durationSeconds float64) {
	m.BatchInsertDuration.WithLabelValues(store).Observe(durationSeconds)
}

// RecordSearch increments the search counter for outcome and records the
// number of results returned.
func (m *Metrics) RecordSearch(outcome string, resultCount int) {
	m.SearchRequestsTotal.WithLabelValues(outcome).Inc()
	m.SearchResultsCount.Observe(float64(resultCount))
}

// RecordDelete increments the delete-request counter for outcome.
func (m *Metrics) RecordDelete(outcome string) {
	m.DeleteRequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordIsolatedWorker increments the isolated-worker counter for op.
func (m *Metrics) RecordIsolatedWorker(op string) {
	m.IsolatedWorkersTotal.WithLabelValues(op).Inc()
}
