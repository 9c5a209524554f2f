package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	completionsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "prodigy",
		Subsystem: "progress",
		Name:      "occurrences_completed_total",
		Help:      "Number of activity occurrences recorded.",
	})
	completionsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prodigy",
		Subsystem: "progress",
		Name:      "completions_rejected_total",
		Help:      "Completion attempts that recorded nothing, labeled by reason.",
	}, []string{"reason"})
	lastCompletionGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "prodigy",
		Subsystem: "progress",
		Name:      "last_completion_timestamp_seconds",
		Help:      "Unix timestamp of the most recent recorded occurrence.",
	})
	scheduleMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prodigy",
		Subsystem: "schedule",
		Name:      "mutations_total",
		Help:      "Scheduled activity rows written by regeneration, labeled by operation.",
	}, []string{"op"})
	regenerationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "prodigy",
		Subsystem: "schedule",
		Name:      "regeneration_duration_seconds",
		Help:      "Time spent applying one program's schedule diff.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	})
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prodigy",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, labeled by route pattern and status code.",
	}, []string{"route", "code"})
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "prodigy",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency, labeled by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

// Rejection reasons for RecordCompletionRejected.
const (
	RejectAllCompleted = "all_completed"
	RejectRace         = "unique_race"
	RejectRetryable    = "retryable"
)

func init() {
	prometheus.MustRegister(
		completionsRecorded,
		completionsRejected,
		lastCompletionGauge,
		scheduleMutations,
		regenerationDuration,
		httpRequests,
		httpDuration,
	)
}

// RecordCompletion counts a recorded occurrence and advances the watermark gauge.
func RecordCompletion(ts time.Time) {
	completionsRecorded.Inc()
	if ts.IsZero() {
		return
	}
	lastCompletionGauge.Set(float64(ts.Unix()))
}

// RecordCompletionRejected counts a completion attempt that recorded nothing.
func RecordCompletionRejected(reason string) {
	completionsRejected.WithLabelValues(reason).Inc()
}

// RecordScheduleMutations counts rows written by one regeneration run.
func RecordScheduleMutations(created, updated, retired, deleted int, elapsed time.Duration) {
	scheduleMutations.WithLabelValues("create").Add(float64(created))
	scheduleMutations.WithLabelValues("update").Add(float64(updated))
	scheduleMutations.WithLabelValues("retire").Add(float64(retired))
	scheduleMutations.WithLabelValues("delete").Add(float64(deleted))
	regenerationDuration.Observe(elapsed.Seconds())
}

// RecordHTTPRequest observes one served request. Unmatched requests use the route "unmatched".
func RecordHTTPRequest(route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
