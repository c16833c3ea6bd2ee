package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	loginAttemptsTotal   *prometheus.CounterVec
	auditWritesTotal     *prometheus.CounterVec
	thesisLifecycleTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors exposed on the metrics endpoint.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thesis_http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "thesis_http_latency_seconds",
			Help:    "Latency distribution for HTTP requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		loginAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thesis_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"})

		auditWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thesis_audit_writes_total",
			Help: "Audit log writes by result. Failed writes never abort the audited operation.",
		}, []string{"result"})

		thesisLifecycleTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thesis_lifecycle_events_total",
			Help: "Thesis lifecycle operations by operation and resulting status.",
		}, []string{"operation", "status"})

		prometheus.MustRegister(httpRequestsTotal, httpLatencySeconds, loginAttemptsTotal, auditWritesTotal, thesisLifecycleTotal)
	})
}

func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

func LoginAttempts() *prometheus.CounterVec {
	RegisterMetrics()
	return loginAttemptsTotal
}

func AuditWrites() *prometheus.CounterVec {
	RegisterMetrics()
	return auditWritesTotal
}

func ThesisLifecycle() *prometheus.CounterVec {
	RegisterMetrics()
	return thesisLifecycleTotal
}

// MetricsHandler exposes the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}
