package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tidepool_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// NotificationsCreated counts notifications emitted by type.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tidepool_notifications_created_total",
		Help: "Total notifications created by type",
	}, []string{"type"})

	// NotificationsSwept counts read notifications removed by the
	// retention sweeper.
	NotificationsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tidepool_notifications_swept_total",
		Help: "Total read notifications deleted by the retention sweeper",
	})

	// MediaUploads counts object store uploads by outcome.
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tidepool_media_uploads_total",
		Help: "Total media uploads by outcome",
	}, []string{"outcome"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
