// Package observability provides Prometheus metrics and OpenTelemetry tracing
// for the refinement engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// LOOP METRICS
// =============================================================================

var (
	loopExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ontoloom_loop_executions_total",
			Help: "Total number of refinement loop runs",
		},
		[]string{"status"}, // status: pass, fail, iterate, error
	)

	loopDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ontoloom_loop_duration_seconds",
			Help:    "Refinement loop run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	loopIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ontoloom_loop_iterations",
			Help:    "Number of iterations per loop run",
			Buckets: []float64{1, 2, 3, 4, 5, 7, 10},
		},
	)

	checkFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ontoloom_check_failures_total",
			Help: "Total checklist failures by check code",
		},
		[]string{"code", "severity"},
	)
)

// =============================================================================
// LLM METRICS
// =============================================================================

var (
	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ontoloom_llm_calls_total",
			Help: "Total number of LLM API calls",
		},
		[]string{"provider", "phase", "status"}, // phase: generate, critique, refine
	)

	llmDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ontoloom_llm_duration_seconds",
			Help:    "LLM call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "phase"},
	)

	llmTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ontoloom_llm_tokens_total",
			Help: "Total tokens consumed by LLM calls",
		},
		[]string{"provider", "direction"}, // direction: prompt, completion
	)
)

// =============================================================================
// BATCH METRICS
// =============================================================================

var (
	batchExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ontoloom_batch_executions_total",
			Help: "Total number of batch runs",
		},
		[]string{"status"}, // status: success, partial, error
	)

	batchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ontoloom_batch_items_total",
			Help: "Total batch items by outcome",
		},
		[]string{"outcome"}, // outcome: passed, failed, errored, skipped
	)

	batchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ontoloom_batch_duration_seconds",
			Help:    "Batch run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 300, 600, 1800},
		},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordLoopExecution records loop run metrics. Called after a run completes.
func RecordLoopExecution(status string, iterations int, durationMS int) {
	loopExecutionsTotal.WithLabelValues(status).Inc()
	loopDurationSeconds.WithLabelValues(status).Observe(float64(durationMS) / 1000.0)
	loopIterations.Observe(float64(iterations))
}

// RecordCheckFailure records one failing checklist item.
func RecordCheckFailure(code string, severity string) {
	checkFailuresTotal.WithLabelValues(code, severity).Inc()
}

// RecordLLMCall records LLM call metrics. Called after each provider call.
func RecordLLMCall(provider string, phase string, status string, durationMS int) {
	llmCallsTotal.WithLabelValues(provider, phase, status).Inc()
	llmDurationSeconds.WithLabelValues(provider, phase).Observe(float64(durationMS) / 1000.0)
}

// RecordLLMTokens records token usage for an LLM call.
func RecordLLMTokens(provider string, promptTokens, completionTokens int) {
	llmTokensTotal.WithLabelValues(provider, "prompt").Add(float64(promptTokens))
	llmTokensTotal.WithLabelValues(provider, "completion").Add(float64(completionTokens))
}

// RecordBatchExecution records batch run metrics. Called after Process returns.
func RecordBatchExecution(status string, durationMS int) {
	batchExecutionsTotal.WithLabelValues(status).Inc()
	batchDurationSeconds.Observe(float64(durationMS) / 1000.0)
}

// RecordBatchItem records the outcome of a single batch item.
func RecordBatchItem(outcome string) {
	batchItemsTotal.WithLabelValues(outcome).Inc()
}
