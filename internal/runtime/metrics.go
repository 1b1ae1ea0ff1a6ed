package runtime

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storageReadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "provex_storage_read_duration_seconds",
			Help:    "Duration of point reads against the local store",
			Buckets: prometheus.DefBuckets,
		},
	)

	storageCommitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "provex_storage_batch_commit_duration_seconds",
			Help:    "Duration of batch commits against the local store",
			Buckets: prometheus.DefBuckets,
		},
	)

	storageCommitBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provex_storage_batch_commit_bytes_total",
			Help: "Total bytes committed to the local store in batches",
		},
	)
)

// storageMetrics feeds the store's latency observations into Prometheus.
type storageMetrics struct{}

func (storageMetrics) ObserveRead(elapsed time.Duration, bytes int) {
	storageReadDuration.Observe(elapsed.Seconds())
}

func (storageMetrics) ObserveBatchCommit(elapsed time.Duration, bytes int) {
	storageCommitDuration.Observe(elapsed.Seconds())
	storageCommitBytes.Add(float64(bytes))
}
