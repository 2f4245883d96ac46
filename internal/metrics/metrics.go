// Package metrics provides Prometheus metrics for the energy queue.
// It tracks rows read and published by the emitter, and messages handled,
// logged and acknowledged by the listener.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "energy_queue"
)

// Result label values for MessagesConsumedTotal.
const (
	ResultProcessed = "processed"
	ResultDiscarded = "discarded"
	ResultDuplicate = "duplicate"
	ResultFailed    = "failed"
)

// Emitter metrics track the publish pipeline.
var (
	// RowsReadTotal counts data rows read from the source.
	RowsReadTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Total number of data rows read from the source",
		},
	)

	// MessagesPublishedTotal counts messages confirmed by the broker.
	MessagesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Total number of messages published to the queue",
		},
		[]string{"queue"},
	)

	// RowFailuresTotal counts rows that could not be published.
	RowFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "row_failures_total",
			Help:      "Total number of rows that failed to publish",
		},
		[]string{"reason"}, // reason: read, format, publish
	)

	// QueuePublishLatency measures time to publish and confirm a message.
	QueuePublishLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_publish_latency_seconds",
			Help:      "Time to publish a message to the queue in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

// Listener metrics track message handling.
var (
	// MessagesConsumedTotal counts messages handled, labeled by result.
	MessagesConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total number of messages handled by the listener",
		},
		[]string{"queue", "result"},
	)

	// MessageProcessingLatency measures time to handle a single message.
	MessageProcessingLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_processing_latency_seconds",
			Help:      "Time to handle a single message in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// EstimatedCostTotal sums the estimated cost of every logged reading.
	EstimatedCostTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimated_cost_dollars_total",
			Help:      "Sum of estimated energy cost of logged readings in dollars",
		},
	)
)

// Storage metrics track sink and dedup store operations.
var (
	// StorageOperationLatency measures latency of storage operations.
	StorageOperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_latency_seconds",
			Help:      "Latency of storage operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"store", "operation"}, // store: csvfile, postgres, redis, memory
	)

	// StorageOperationsTotal counts storage operations.
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Total number of storage operations",
		},
		[]string{"store", "operation", "status"}, // status: success, failure
	)
)

// ObserveStorage records the outcome of one storage operation.
func ObserveStorage(store, operation string, seconds float64, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	StorageOperationLatency.WithLabelValues(store, operation).Observe(seconds)
	StorageOperationsTotal.WithLabelValues(store, operation, status).Inc()
}
