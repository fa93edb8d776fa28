// Package metrics holds the Prometheus instruments shared by the publisher
// and the HTTP server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	uploadsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reelqueue_uploads_total",
		Help: "Total number of uploads in the queue",
	})

	publishesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reelqueue_publishes_total",
		Help: "Total number of publish attempts",
	}, []string{"status"})

	publishDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reelqueue_publish_duration_seconds",
		Help:    "Duration of remote publish operations in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(uploadsTotal)
	prometheus.MustRegister(publishesTotal)
	prometheus.MustRegister(publishDurationSeconds)
}

// SetUploadCount updates the uploads_total gauge
func SetUploadCount(count int64) {
	uploadsTotal.Set(float64(count))
}

// RecordPublish records a publish attempt outcome
func RecordPublish(status string) {
	publishesTotal.WithLabelValues(status).Inc()
}

// ObservePublishDuration records how long a remote publish took
func ObservePublishDuration(d time.Duration) {
	publishDurationSeconds.Observe(d.Seconds())
}
