// Package metrics exposes the Prometheus collectors for the Integrity
// Spine: storage pool saturation, policy decisions, anchor retries, and
// audit-chain verification outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "integrity_spine"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests handled, by method, route, and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests, by method and route.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	// DatabaseConnectionsGauge mirrors the storage adapter's session pool
	// state (open/idle/in_use), sampled periodically.
	DatabaseConnectionsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "connections",
			Help:      "Storage adapter connection pool state.",
		},
		[]string{"state"},
	)

	// StorageCircuitState tracks the storage adapter circuit breaker
	// (0=closed, 1=half-open, 2=open).
	StorageCircuitState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "circuit_state",
			Help:      "Storage adapter circuit breaker state (0=closed, 1=half-open, 2=open).",
		},
	)

	// PolicyDecisions counts consent/policy check outcomes.
	PolicyDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "policy",
			Name:      "decisions_total",
			Help:      "Policy engine decisions, by outcome (allow|deny|escalate).",
		},
		[]string{"outcome"},
	)

	// AnchorRetries records dual-ledger anchor submission attempts per chain.
	AnchorRetries = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "anchor",
			Name:      "attempts",
			Help:      "Number of attempts taken to anchor a scan to a ledger.",
			Buckets:   prometheus.LinearBuckets(1, 1, 6),
		},
		[]string{"chain"},
	)

	// AuditChainVerifications counts audit-chain verify outcomes.
	AuditChainVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "chain_verifications_total",
			Help:      "Audit chain verification outcomes (intact|broken).",
		},
		[]string{"result"},
	)

	// EscalationsOpen tracks the number of escalations awaiting governance decision.
	EscalationsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "governance",
			Name:      "escalations_open",
			Help:      "Number of escalations currently awaiting a governance decision.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		DatabaseConnectionsGauge,
		StorageCircuitState,
		PolicyDecisions,
		AnchorRetries,
		AuditChainVerifications,
		EscalationsOpen,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes the registered collectors for scraping at /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one completed HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordPolicyDecision increments the policy decision counter.
func RecordPolicyDecision(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	PolicyDecisions.WithLabelValues(outcome).Inc()
}

// RecordAnchorAttempts records how many attempts an anchor submission took
// on a given chain before succeeding or exhausting retries.
func RecordAnchorAttempts(chain string, attempts int) {
	if chain == "" {
		chain = "unknown"
	}
	AnchorRetries.WithLabelValues(chain).Observe(float64(attempts))
}

// RecordAuditChainVerification records a chain verification outcome.
func RecordAuditChainVerification(intact bool) {
	result := "intact"
	if !intact {
		result = "broken"
	}
	AuditChainVerifications.WithLabelValues(result).Inc()
}
