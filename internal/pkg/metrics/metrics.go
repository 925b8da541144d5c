// Package metrics exposes Prometheus counters for saga starts, facade commands
// and HTTP requests on a private registry served at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status labels.
const (
	StatusSuccess        = "success"
	StatusError          = "error"
	StatusAlreadyStarted = "already_started"
	StatusRejected       = "rejected"
	StatusSkipped        = "skipped"
)

// Recorder records business operations. Domain is a component such as "saga"
// or "payment_aggregate"; operation names the call.
type Recorder interface {
	RecordOperation(domain, operation, status string)
	RecordDuration(domain, operation string, d time.Duration, status string)
}

// Provider owns the registry and the instruments registered on it.
type Provider struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

var _ Recorder = (*Provider)(nil)

// NewProvider registers all instruments under namespace, e.g. "payflow".
func NewProvider(namespace string) *Provider {
	reg := prometheus.NewRegistry()
	p := &Provider{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of business operations.",
		}, []string{"domain", "operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of business operations in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"domain", "operation", "status"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status_code"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.operations, p.durations, p.requests, p.latency,
	)
	return p
}

// Registry returns the underlying registry.
func (p *Provider) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in Prometheus exposition format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordOperation increments the operation counter.
func (p *Provider) RecordOperation(domain, operation, status string) {
	p.operations.WithLabelValues(domain, operation, status).Inc()
}

// RecordDuration observes an operation duration.
func (p *Provider) RecordDuration(domain, operation string, d time.Duration, status string) {
	p.durations.WithLabelValues(domain, operation, status).Observe(d.Seconds())
}

// HTTPMiddleware records request counts and latency. The path label is the
// route pattern, so ids do not blow up cardinality.
func (p *Provider) HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		code := strconv.Itoa(c.Writer.Status())
		p.requests.WithLabelValues(c.Request.Method, path, code).Inc()
		p.latency.WithLabelValues(c.Request.Method, path, code).Observe(time.Since(start).Seconds())
	}
}

// NoOp discards everything.
type NoOp struct{}

func (NoOp) RecordOperation(string, string, string) {}

func (NoOp) RecordDuration(string, string, time.Duration, string) {}
