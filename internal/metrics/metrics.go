package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interview_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_llm_calls_total",
			Help: "Total number of LLM calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	LLMLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interview_llm_call_duration_seconds",
			Help:    "Duration of LLM calls in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)

	QuestionsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "interview_questions_generated_total",
			Help: "Total number of interview questions stored after generation",
		},
	)

	EvaluationsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "interview_evaluations_completed_total",
			Help: "Total number of interviews evaluated",
		},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_jobs_processed_total",
			Help: "Background jobs processed by type and outcome",
		},
		[]string{"type", "outcome"},
	)
)

// ObserveLLM records one LLM call.
func ObserveLLM(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	LLMCalls.WithLabelValues(operation, outcome).Inc()
	LLMLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
