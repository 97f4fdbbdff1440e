// Package metrics holds the prometheus collectors restdb exports on /metrics.
//
// Collectors are registered on an explicit registry so that tests and
// multiple servers in one process do not collide on the default one.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg)
//	m.ObserveQuery("mysql", "select", time.Since(start), err)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "restdb"

// Metrics holds all prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Database statement metrics
	QueryTotal    *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec

	// Schema cache metrics
	SchemaLookups *prometheus.CounterVec
	SchemaReloads prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		QueryTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_total",
				Help:      "Total number of SQL statements executed",
			},
			[]string{"driver", "statement", "status"},
		),
		QueryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "SQL statement execution time in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"driver", "statement"},
		),
		SchemaLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_cache_lookups_total",
				Help:      "Schema cache lookups by result (hit, miss)",
			},
			[]string{"result"},
		),
		SchemaReloads: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_reloads_total",
				Help:      "Number of live schema reflections",
			},
		),
	}
}

// ObserveQuery records one SQL statement. statement is the leading SQL
// keyword in lower case (select, insert, ...).
func (m *Metrics) ObserveQuery(driver, statement string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.QueryTotal.WithLabelValues(driver, statement, status(err)).Inc()
	m.QueryDuration.WithLabelValues(driver, statement).Observe(d.Seconds())
}

// ObserveSchemaLookup records a schema cache hit or miss.
func (m *Metrics) ObserveSchemaLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.SchemaLookups.WithLabelValues("hit").Inc()
		return
	}
	m.SchemaLookups.WithLabelValues("miss").Inc()
}

// ObserveSchemaReload counts one live reflection.
func (m *Metrics) ObserveSchemaReload() {
	if m == nil {
		return
	}
	m.SchemaReloads.Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, httpStatus(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func httpStatus(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
