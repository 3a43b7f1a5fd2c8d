package llm

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// metricsOnce ensures metrics are registered only once
	metricsOnce sync.Once

	// classificationRequestsTotal tracks classification requests by status and reason
	classificationRequestsTotal *prometheus.CounterVec

	// classificationDuration tracks latency of classification calls
	classificationDuration prometheus.Histogram

	// llmAPIErrorsTotal tracks LLM API errors by type
	llmAPIErrorsTotal *prometheus.CounterVec

	// confidenceScores tracks distribution of computed confidence scores
	confidenceScores prometheus.Histogram

	// routingDecisionsTotal tracks routing outcomes
	routingDecisionsTotal *prometheus.CounterVec

	// normalizationAdjustmentsTotal tracks classifier-output fields corrected before scoring
	normalizationAdjustmentsTotal *prometheus.CounterVec
)

// InitMetrics registers all Prometheus metrics for the triage pipeline.
// This should be called once at application startup.
func InitMetrics() {
	metricsOnce.Do(func() {
		classificationRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtriage_classification_requests_total",
				Help: "Total number of email classification requests by status and reason",
			},
			[]string{"status", "reason"},
		)

		classificationDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailtriage_classification_duration_seconds",
				Help:    "Duration of email classification calls in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
			},
		)

		llmAPIErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtriage_llm_api_errors_total",
				Help: "Total number of LLM API errors by error type",
			},
			[]string{"error_type"},
		)

		confidenceScores = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailtriage_confidence_score",
				Help:    "Distribution of computed confidence scores (0-100)",
				Buckets: []float64{0, 10, 25, 50, 70, 80, 90, 95, 100},
			},
		)

		routingDecisionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtriage_routing_decisions_total",
				Help: "Total number of routing decisions by outcome",
			},
			[]string{"outcome"},
		)

		normalizationAdjustmentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtriage_normalization_adjustments_total",
				Help: "Total number of classifier output fields corrected before scoring",
			},
			[]string{"field"},
		)
	})
}

// RecordClassificationRequest records a classification request with status and reason
// status: "success", "error", "skipped"
// reason: "llm", "parse", "disabled", etc.
func RecordClassificationRequest(status, reason string) {
	if classificationRequestsTotal != nil {
		classificationRequestsTotal.WithLabelValues(status, reason).Inc()
	}
}

// RecordClassificationDuration records the duration of a classification call
func RecordClassificationDuration(duration time.Duration) {
	if classificationDuration != nil {
		classificationDuration.Observe(duration.Seconds())
	}
}

// RecordError records an LLM API error by type
// errorType: "timeout", "auth", "rate_limit", "server_error", "connection", "parse", "circuit_open"
func RecordError(errorType string) {
	if llmAPIErrorsTotal != nil {
		llmAPIErrorsTotal.WithLabelValues(errorType).Inc()
	}
}

// RecordScore records a computed confidence score
func RecordScore(score int) {
	if confidenceScores != nil {
		confidenceScores.Observe(float64(score))
	}
}

// RecordRoutingDecision records a routing outcome ("auto_respond", "agent_review")
func RecordRoutingDecision(outcome string) {
	if routingDecisionsTotal != nil {
		routingDecisionsTotal.WithLabelValues(outcome).Inc()
	}
}

// RecordNormalization records a corrected classifier output field
// field: "factor_value", "topic_count", "category", "greeting", "suggested_response"
func RecordNormalization(field string) {
	if normalizationAdjustmentsTotal != nil {
		normalizationAdjustmentsTotal.WithLabelValues(field).Inc()
	}
}

// ClassificationTimer is a helper for timing classification calls
type ClassificationTimer struct {
	start time.Time
}

// StartTimer creates a new timer for measuring classification duration
func StartTimer() *ClassificationTimer {
	return &ClassificationTimer{start: time.Now()}
}

// ObserveDuration records the elapsed time since the timer started
func (t *ClassificationTimer) ObserveDuration() {
	if t != nil {
		RecordClassificationDuration(time.Since(t.start))
	}
}
