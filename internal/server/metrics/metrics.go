// Package metrics exposes Prometheus counters for authentication and secret
// handling outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services and HTTP middleware report to. Label values are
// fixed outcome names, never user input.
type Recorder interface {
	RecordRegistration(outcome string)
	RecordLogin(outcome string)
	RecordTokenRejected(reason string)
	RecordPasswordRehash()
	RecordSecretOperation(op, outcome string)
	RecordHTTPRequest(method, route string, status int, d time.Duration)
}

// Collector is the Prometheus Recorder.
type Collector struct {
	registrations *prometheus.CounterVec
	logins        *prometheus.CounterVec
	tokenRejected *prometheus.CounterVec
	rehashes      prometheus.Counter
	secretOps     *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gideon_registrations_total",
			Help: "Registration attempts by outcome.",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gideon_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		tokenRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gideon_token_rejections_total",
			Help: "Session tokens rejected during identity resolution, by reason.",
		}, []string{"reason"}),
		rehashes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gideon_password_rehashes_total",
			Help: "Password digests upgraded to the current scheme on login.",
		}),
		secretOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gideon_secret_operations_total",
			Help: "Encrypted API key operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gideon_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gideon_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.registrations,
		c.logins,
		c.tokenRejected,
		c.rehashes,
		c.secretOps,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

func (c *Collector) RecordRegistration(outcome string) {
	c.registrations.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordTokenRejected(reason string) {
	c.tokenRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordPasswordRehash() {
	c.rehashes.Inc()
}

func (c *Collector) RecordSecretOperation(op, outcome string) {
	c.secretOps.WithLabelValues(op, outcome).Inc()
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRegistration(string)                            {}
func (Nop) RecordLogin(string)                                   {}
func (Nop) RecordTokenRejected(string)                           {}
func (Nop) RecordPasswordRehash()                                {}
func (Nop) RecordSecretOperation(string, string)                 {}
func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}
