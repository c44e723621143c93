// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// AnswerStreamDuration tracks end-to-end answer stream duration.
	AnswerStreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "answer_stream_duration_seconds",
			Help:    "Answer stream duration from first to last event",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"status"},
	)

	// AnswerChunksTotal tracks answer chunks emitted to clients.
	AnswerChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "answer_chunks_total",
			Help: "Total answer chunks emitted",
		},
	)

	// StreamFailuresTotal tracks terminal stream failures by classified kind.
	StreamFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_failures_total",
			Help: "Terminal answer stream failures by error kind",
		},
		[]string{"kind"},
	)

	// ConversationsExtended tracks persisted conversation turns.
	ConversationsExtended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_extended_total",
			Help: "Total conversation turns persisted",
		},
	)

	// FeedbackTotal tracks feedback entries by vote.
	FeedbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_total",
			Help: "Total feedback entries created",
		},
		[]string{"vote"},
	)

	// RetrievalsTotal tracks document retrieval tool invocations.
	RetrievalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrievals_total",
			Help: "Total retrieval tool invocations",
		},
		[]string{"status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordAnswerStream records the duration of a completed answer stream.
func RecordAnswerStream(status string, duration float64) {
	AnswerStreamDuration.WithLabelValues(status).Observe(duration)
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
