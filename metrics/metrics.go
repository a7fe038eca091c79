// Package metrics exposes Prometheus instrumentation for both services.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Detection pipeline
	FramesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomscout_frames_processed_total",
			Help: "Frames passed through the object detector",
		},
	)

	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomscout_frames_dropped_total",
			Help: "Frames skipped because capture or inference failed",
		},
		[]string{"stage"}, // "capture", "inference"
	)

	InferenceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roomscout_inference_duration_seconds",
			Help:    "Latency of calls to the detection model",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	Analyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomscout_analyses_total",
			Help: "Room analyses produced, by detected room type",
		},
		[]string{"room_type"},
	)

	SessionRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roomscout_detection_running",
			Help: "1 while a detection session is running",
		},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roomscout_websocket_connections",
			Help: "Connected push channel subscribers",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomscout_websocket_messages_sent_total",
			Help: "Messages queued to push channel subscribers",
		},
	)

	// External services
	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roomscout_external_call_duration_seconds",
			Help:    "Latency of calls to external services",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomscout_cache_lookups_total",
			Help: "Cache lookups by cache and result",
		},
		[]string{"cache", "result"}, // result: "hit", "miss"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roomscout_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomscout_api_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roomscout_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomscout_recommendations_total",
			Help: "Recommendation requests by whether weather data was available",
		},
		[]string{"weather"}, // "present", "absent"
	)
)

func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordExternalCall(service string, err error, duration time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	ExternalCallDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
}

func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordAnalysis counts one analysis; a nil room type is labeled "none".
func RecordAnalysis(roomType *string) {
	label := "none"
	if roomType != nil {
		label = *roomType
	}
	Analyses.WithLabelValues(label).Inc()
}
