package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry         *prometheus.Registry
	requests         *prometheus.CounterVec   // inbound relay requests
	requestDuration  *prometheus.HistogramVec // time to answer a relay request
	upstreamRequests *prometheus.CounterVec   // dns provider requests
	auditWrites      *prometheus.CounterVec   // badgerdb journal writes
	ddnsRuns         *prometheus.CounterVec   // ddns update cycles
}

// Public interface for metrics operations
func (m *Metrics) IncRequest(action string, code int) {
	m.requests.WithLabelValues(actionLabel(action), strconv.Itoa(code)).Inc()
}

func (m *Metrics) ObserveRequestDuration(action string, duration time.Duration) {
	m.requestDuration.WithLabelValues(actionLabel(action)).Observe(duration.Seconds())
}

func (m *Metrics) IncUpstreamRequest(operation string, success bool) {
	if !isValidOperation(operation) {
		return
	}
	status := boolToResult(success)
	m.upstreamRequests.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) IncAuditWrite(success bool) {
	m.auditWrites.WithLabelValues(boolToResult(success)).Inc()
}

func (m *Metrics) IncDDNSRun(success bool) {
	m.ddnsRuns.WithLabelValues(boolToResult(success)).Inc()
}

// Validation helpers
func boolToResult(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}

// actionLabel keeps caller supplied actions from growing label cardinality.
func actionLabel(action string) string {
	switch action {
	case "add", "update", "delete", "preflight":
		return action
	}
	return "other"
}

func isValidOperation(op string) bool {
	switch op {
	case "zone", "record", "create", "update", "delete":
		return true
	}
	return false
}

func New(register bool) *Metrics {
	registry := prometheus.NewRegistry()
	namespace := "dns_relay"

	m := &Metrics{
		registry: registry,

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total relay requests by action and response code",
		}, []string{"action", "code"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of relay requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),

		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total DNS provider requests",
		}, []string{"operation", "status"}),

		auditWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_writes_total",
			Help:      "Total audit journal writes",
		}, []string{"status"}),

		ddnsRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ddns_runs_total",
			Help:      "Total ddns update cycles",
		}, []string{"status"}),
	}

	if register {
		registry.MustRegister(
			m.requests,
			m.requestDuration,
			m.upstreamRequests,
			m.auditWrites,
			m.ddnsRuns,
		)
	}
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
