// Package metrics provides Prometheus metrics for the Valkyrie backend
// (HTTP RED + OSINT pipeline + analysis engine). Scrapeable at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "valkyrie"

var (
	// HTTPRequestTotal counts requests by method, path, status (RED: rate).
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is request latency histogram (RED: duration).
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~9.3s
		},
		[]string{"method", "path"},
	)

	// ToolRunsTotal counts tool adapter invocations by tool and outcome.
	ToolRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_runs_total",
			Help:      "Total tool adapter invocations by tool name and status (ok|error|skipped).",
		},
		[]string{"tool", "status"},
	)

	// EntityRunDurationSeconds is full per-entity run latency (dispatch + cross-ref + persist).
	EntityRunDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "entity_run_duration_seconds",
			Help:      "Per-entity OSINT run duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
	)

	// CrossRefLinksTotal counts cross-reference links attached to findings.
	CrossRefLinksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crossref_links_total",
			Help:      "Total cross-reference links discovered.",
		},
	)

	// AnalysisDurationSeconds is LLM analysis latency including the backend call.
	AnalysisDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Investigation analysis duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~256s
		},
	)

	// PatternsCreatedTotal counts patterns materialized from analysis runs.
	PatternsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patterns_created_total",
			Help:      "Total patterns created by the analysis engine.",
		},
	)

	// LLMFailuresTotal counts inference backend failures (timeouts included).
	LLMFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_failures_total",
			Help:      "Total inference backend call failures.",
		},
	)
)
