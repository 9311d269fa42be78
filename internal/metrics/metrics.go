// Package metrics provides Prometheus metrics for the proxy.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"edgemask/internal/config"
)

// Default histogram buckets for request latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Rewrite stages used as label values for RewritesTotal and RewriteFailures.
const (
	StageRequestJSON = "request_json"
	StageRedirect    = "redirect"
	StageCookie      = "cookie"
	StageHTML        = "html"
	StageJSON        = "json"
	StageText        = "text"
	StageDecode      = "decode"
)

// Metrics holds all Prometheus metric collectors for the proxy.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec

	RewritesTotal   *prometheus.CounterVec
	RewriteFailures *prometheus.CounterVec
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgemask_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "path_prefix"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edgemask_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path_prefix"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edgemask_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edgemask_upstream_request_duration_seconds",
			Help:    "Origin call latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method"}),

		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgemask_upstream_responses_total",
			Help: "Total origin responses by method and status code.",
		}, []string{"method", "status_code"}),

		RewritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgemask_rewrites_total",
			Help: "Rewrites applied, by stage.",
		}, []string{"stage"}),

		RewriteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgemask_rewrite_failures_total",
			Help: "Rewrites that failed, by stage.",
		}, []string{"stage"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.RewritesTotal,
		m.RewriteFailures,
	)

	return m
}

// Rewrite counts a rewrite at stage. Safe on a nil receiver.
func (m *Metrics) Rewrite(stage string) {
	if m == nil {
		return
	}
	m.RewritesTotal.WithLabelValues(stage).Inc()
}

// RewriteFailed counts a failed rewrite at stage. Safe on a nil receiver.
func (m *Metrics) RewriteFailed(stage string) {
	if m == nil {
		return
	}
	m.RewriteFailures.WithLabelValues(stage).Inc()
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// adminPaths lists the admin endpoints reported under their own label.
var adminPaths = []string{
	config.AdminPrefix + "/healthz",
	config.AdminPrefix + "/status",
}

// NormalizePath returns a bounded path label for Prometheus metrics.
// Proxied paths belong to the origin's namespace and share one label.
func NormalizePath(path string) string {
	for _, p := range adminPaths {
		if path == p || strings.HasPrefix(path, p+"?") {
			return p
		}
	}
	if path == config.AdminPrefix || strings.HasPrefix(path, config.AdminPrefix+"/") {
		return config.AdminPrefix
	}
	return "proxied"
}
