// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/parisxmas/OxiForms/internal/docstore"
)

const namespace = "oxiforms"

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern, method and status.",
	}, []string{"route", "method", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	BatchExecutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batch_executions_total",
		Help:      "Partition batch executions by operation and outcome.",
	}, []string{"operation", "outcome"})

	SeededQuestionTypes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "question_types_seeded_total",
		Help:      "Question type catalog entries inserted by the seeder.",
	})

	BootTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "boot_time",
		Help:      "Server startup time in unix milliseconds.",
	})
)

// Registry is the registry served on /metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		HTTPRequests,
		HTTPDuration,
		BatchExecutions,
		SeededQuestionTypes,
		BootTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	BootTime.Set(float64(time.Now().UnixMilli()))
}

// Outcome classifies a batch result for BatchExecutions.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, docstore.ErrPreconditionFailed), errors.Is(err, docstore.ErrConflict):
		return "conflict"
	case errors.Is(err, docstore.ErrBatchTooLarge):
		return "too_large"
	}
	return "error"
}

// ObserveBatch records the outcome of one batch execution.
func ObserveBatch(operation string, err error) {
	BatchExecutions.WithLabelValues(operation, Outcome(err)).Inc()
}
