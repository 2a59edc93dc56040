// Package metrics holds the Prometheus collectors for the reference server
// and the console's fetch cycle.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "mdconsole"

// Collector wraps the metric vectors on its own registry.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	Mutations           *prometheus.CounterVec
	Fetches             *prometheus.CounterVec
	FetchDuration       *prometheus.HistogramVec
}

// New creates a Collector. Go runtime and process collectors are included
// when withRuntime is set.
func New(withRuntime bool) *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "mutations_total",
			Help:      "Master-data mutations by entity, action and outcome",
		}, []string{"entity", "action", "outcome"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "console",
			Name:      "fetches_total",
			Help:      "List fetches by entity and outcome",
		}, []string{"entity", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "console",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of list fetches in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity"}),
	}
	reg.MustRegister(c.HTTPRequestsTotal, c.HTTPRequestDuration, c.Mutations, c.Fetches, c.FetchDuration)
	if withRuntime {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request. route is the chi route
// pattern so ids do not explode label cardinality.
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, d time.Duration) {
	c.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordMutation counts a create, update or delete handled by the server.
func (c *Collector) RecordMutation(entity, action, outcome string) {
	c.Mutations.WithLabelValues(entity, action, outcome).Inc()
}

// ObserveFetch implements listflow.FetchObserver.
func (c *Collector) ObserveFetch(entity, outcome string, elapsed time.Duration) {
	c.Fetches.WithLabelValues(entity, outcome).Inc()
	c.FetchDuration.WithLabelValues(entity).Observe(elapsed.Seconds())
}
