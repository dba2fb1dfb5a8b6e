package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(conversionJobsTotal, conversionJobDuration, conversionRejectionsTotal, conversionTrimmedTotal)
}

var (
	conversionJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversion_jobs_total",
			Help: "Conversion jobs that reached a terminal state, by operation and status.",
		},
		[]string{"operation", "status"}, // status: done | failed
	)

	conversionJobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conversion_job_duration_seconds",
			Help:    "Wall time from admission to terminal state.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160, 320},
		},
		[]string{"operation"},
	)

	conversionRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversion_rejections_total",
			Help: "Jobs rejected during validation, by reason.",
		},
		[]string{"reason"}, // too_large | kind_mismatch | unsupported
	)

	conversionTrimmedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "conversion_trimmed_total",
			Help: "Video notes whose source exceeded the duration cap.",
		},
	)
)

func ObserveJob(operation, status string, elapsed time.Duration) {
	conversionJobsTotal.WithLabelValues(norm(operation), norm(status)).Inc()
	conversionJobDuration.WithLabelValues(norm(operation)).Observe(elapsed.Seconds())
}

func IncRejection(reason string) {
	conversionRejectionsTotal.WithLabelValues(norm(reason)).Inc()
}

func IncTrimmed() {
	conversionTrimmedTotal.Inc()
}
