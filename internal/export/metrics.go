package export

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchesDeliveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provex_export_batches_delivered_total",
			Help: "Total number of provenance batches committed by the collector",
		},
	)

	eventsDeliveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provex_export_events_delivered_total",
			Help: "Total number of provenance events delivered",
		},
	)

	eventsFilteredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provex_export_events_filtered_total",
			Help: "Total number of scanned events excluded by the event filter",
		},
	)

	deliveryFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provex_export_delivery_failures_total",
			Help: "Total number of batch deliveries aborted by a transport failure",
		},
	)

	sessionUnavailableTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provex_export_session_unavailable_total",
			Help: "Total number of cycles skipped because no transactional session was obtainable",
		},
	)

	deliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "provex_export_delivery_duration_seconds",
			Help:    "Duration of successful batch deliveries in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	cursorOrdinal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "provex_export_cursor_ordinal",
			Help: "Ordinal of the last event covered by a committed delivery",
		},
	)
)
