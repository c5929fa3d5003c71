// Package metrics holds the Prometheus collectors for the compliance pipeline.
// Collectors are registered once on the default registry and served at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clausecheck"

var (
	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "verifier",
		Name:      "verifications_total",
		Help:      "Clause verifications by provider and outcome (compliant, non_compliant, parse_error, provider_error).",
	}, []string{"provider", "outcome"})

	verificationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "verifier",
		Name:      "verification_duration_seconds",
		Help:      "Latency of a single clause verification including the provider call.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
	}, []string{"provider"})

	retrievalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "retriever",
		Name:      "retrievals_total",
		Help:      "Clause retrievals by backend and result (ok, degraded).",
	}, []string{"backend", "result"})

	riskClassificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "classifier",
		Name:      "classifications_total",
		Help:      "Risk explanations by category and severity.",
	}, []string{"category", "severity"})

	documentsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "documents_processed_total",
		Help:      "Documents processed by final status.",
	}, []string{"status"})

	chatTurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "turns_total",
		Help:      "Chat turns by detected intent.",
	}, []string{"intent"})
)

// ObserveVerification records one clause verification
func ObserveVerification(provider, outcome string, elapsed time.Duration) {
	verificationsTotal.WithLabelValues(provider, outcome).Inc()
	verificationDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveRetrieval records retrieval results for n clauses
func ObserveRetrieval(backend string, degraded bool, n int) {
	result := "ok"
	if degraded {
		result = "degraded"
	}
	retrievalsTotal.WithLabelValues(backend, result).Add(float64(n))
}

// ObserveRisk records one risk classification. Unclassified results use "unclassified".
func ObserveRisk(category, severity string) {
	riskClassificationsTotal.WithLabelValues(category, severity).Inc()
}

// ObserveDocument records a finished document
func ObserveDocument(status string) {
	documentsProcessedTotal.WithLabelValues(status).Inc()
}

// ObserveChatTurn records a chat turn
func ObserveChatTurn(intent string) {
	chatTurnsTotal.WithLabelValues(intent).Inc()
}
