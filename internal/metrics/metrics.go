// Package metrics exposes Prometheus instrumentation for the scan
// coordination service: HTTP surface traffic, the job queue, result-cache
// efficiency, outbound circuit breaker state, and credential refresh health.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scan_http_active_requests",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	// Recognition Pipeline Metrics
	RecognitionResultCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_result_cache_hits_total",
			Help: "Total number of result-store lookups (initial and each poll) that returned a valid stored result",
		},
	)

	RecognitionResultCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_result_cache_misses_total",
			Help: "Total number of result-store lookups (initial and each poll) that found no valid stored result",
		},
	)

	RecognitionResultSelfHealed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_result_self_healed_total",
			Help: "Total number of stored results found invalid and deleted on read",
		},
	)

	RecognitionJobsEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_jobs_enqueued_total",
			Help: "Total number of job descriptors sent to the work queue",
		},
	)

	RecognitionPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scan_recognition_poll_duration_seconds",
			Help:    "Time from the start of a cache-missing recognition request until its poll loop returns a result or times out",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 15, 30, 60},
		},
	)

	RecognitionTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_recognition_timeouts_total",
			Help: "Total number of requests that exhausted the poll budget without a result",
		},
	)

	// Queue Metrics
	QueueSendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_queue_send_errors_total",
			Help: "Total number of failures enqueueing a job descriptor",
		},
		[]string{"queue"},
	)

	QueueLeaseAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_queue_lease_attempts_total",
			Help: "Total number of worker lease polling attempts",
		},
		[]string{"outcome"}, // "leased", "empty", "malformed", "already_done"
	)

	// Worker / Storage Metrics
	ObjectStoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_objectstore_operations_total",
			Help: "Total number of object store operations",
		},
		[]string{"operation", "result"}, // operation: "put","get","delete"; result: "ok","error"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scan_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Credential Cache Metrics
	CredentialRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_credential_refreshes_total",
			Help: "Total number of outbound credential refresh attempts",
		},
		[]string{"result"}, // "ok", "error"
	)

	CredentialAgeSeconds = promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "scan_credential_age_seconds",
			Help: "Seconds since the outbound credential was last refreshed successfully",
		},
		func() float64 {
			last := credentialLastRefresh.Load()
			if last == 0 {
				return 0
			}
			return time.Since(time.Unix(0, last)).Seconds()
		},
	)
)

// credentialLastRefresh holds the UnixNano time of the last successful
// credential refresh, read by CredentialAgeSeconds at scrape time.
var credentialLastRefresh atomic.Int64

// RecordHTTPRequest records a completed HTTP request's count and duration.
func RecordHTTPRequest(method, path, statusCode string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight HTTP request gauge.
func TrackActiveRequest(active bool) {
	if active {
		HTTPActiveRequests.Inc()
	} else {
		HTTPActiveRequests.Dec()
	}
}

// RecordCacheLookup records a recognition result cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		RecognitionResultCacheHits.Inc()
	} else {
		RecognitionResultCacheMisses.Inc()
	}
}

// RecordSelfHeal records a stored result found invalid and purged on read.
func RecordSelfHeal() {
	RecognitionResultSelfHealed.Inc()
}

// RecordJobEnqueued records a job descriptor successfully sent to the queue.
func RecordJobEnqueued() {
	RecognitionJobsEnqueued.Inc()
}

// RecordRecognitionOutcome records the poll duration and whether the
// request ultimately timed out waiting for a worker result.
func RecordRecognitionOutcome(duration time.Duration, timedOut bool) {
	RecognitionPollDuration.Observe(duration.Seconds())
	if timedOut {
		RecognitionTimeouts.Inc()
	}
}

// RecordQueueSendError records a failed enqueue attempt for the named queue.
func RecordQueueSendError(queue string) {
	QueueSendErrors.WithLabelValues(queue).Inc()
}

// RecordLeaseAttempt records the outcome of one worker lease polling attempt.
func RecordLeaseAttempt(outcome string) {
	QueueLeaseAttempts.WithLabelValues(outcome).Inc()
}

// RecordObjectStoreOperation records an object store call's outcome.
func RecordObjectStoreOperation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ObjectStoreOperations.WithLabelValues(operation, result).Inc()
}

// circuit breaker states, matching gobreaker's State enumeration order.
const (
	breakerStateClosed   = 0
	breakerStateHalfOpen = 1
	breakerStateOpen     = 2
)

// RecordCircuitBreakerTransition records a named circuit breaker's state
// change and updates its current-state gauge.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()

	var state float64
	switch to {
	case "closed":
		state = breakerStateClosed
	case "half-open":
		state = breakerStateHalfOpen
	case "open":
		state = breakerStateOpen
	}
	CircuitBreakerState.WithLabelValues(name).Set(state)
}

// RecordCredentialRefresh records the outcome of a credential cache refresh
// and, on success, resets the credential-age gauge.
func RecordCredentialRefresh(err error) {
	if err != nil {
		CredentialRefreshes.WithLabelValues("error").Inc()
		return
	}
	CredentialRefreshes.WithLabelValues("ok").Inc()
	credentialLastRefresh.Store(time.Now().UnixNano())
}
