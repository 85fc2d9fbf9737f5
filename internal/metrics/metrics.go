// Package metrics exposes Prometheus collectors for the attention and
// normalization layers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ForwardTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gptcore_forward_total",
		Help: "Total number of forward passes per layer",
	}, []string{"layer"})

	ForwardDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gptcore_forward_duration_seconds",
		Help:    "Histogram of forward pass durations per layer",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
	}, []string{"layer"})

	SequenceLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gptcore_sequence_length_tokens",
		Help:    "Distribution of sequence lengths seen by attention",
		Buckets: []float64{1, 4, 16, 64, 128, 256, 512, 1024, 2048},
	})

	ValidationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gptcore_validation_errors_total",
		Help: "Total number of rejected inputs or configurations",
	}, []string{"operation", "error_type"})

	NumericalInstability = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gptcore_numerical_instability_total",
		Help: "Total number of forward outputs containing NaN or Inf values",
	}, []string{"layer"})
)

// RecordForward counts one forward pass of layer and its duration.
func RecordForward(layer string, duration time.Duration) {
	ForwardTotal.WithLabelValues(layer).Inc()
	ForwardDuration.WithLabelValues(layer).Observe(duration.Seconds())
}

func RecordSequenceLength(tokens int) {
	SequenceLength.Observe(float64(tokens))
}

func RecordValidationError(operation, errorType string) {
	ValidationErrors.WithLabelValues(operation, errorType).Inc()
}

func RecordNumericalInstability(layer string) {
	NumericalInstability.WithLabelValues(layer).Inc()
}
