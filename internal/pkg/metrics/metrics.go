// Package metrics defines the collector interfaces injected into the
// gateway and the order service, with Prometheus-backed implementations.
//
// Components depend on the small interfaces, never on Prometheus types, so
// tests inject no-op collectors and nothing registers against a process
// global: each implementation owns its own registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GatewayCollector records per-route traffic on the gateway.
type GatewayCollector interface {
	RecordRequest(route string)
	RecordError(route string)
}

// OrderCollector records order-service business events.
type OrderCollector interface {
	RecordOrderCreated(status string)
	RecordStatusChange(from, to string)
	RecordError(errorType string)
	RecordProcessingTime(seconds float64)
}

// Gateway is the Prometheus GatewayCollector.
type Gateway struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
}

func NewGateway() *Gateway {
	g := &Gateway{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_gateway_requests_total",
			Help: "Total number of requests through the API gateway.",
		}, []string{"route"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_gateway_errors_total",
			Help: "Total number of errors in the API gateway.",
		}, []string{"route"}),
	}
	g.registry.MustRegister(g.requests, g.errors)
	return g
}

func (g *Gateway) RecordRequest(route string) { g.requests.WithLabelValues(route).Inc() }

func (g *Gateway) RecordError(route string) { g.errors.WithLabelValues(route).Inc() }

// Handler exposes the gateway registry for a /metrics endpoint.
func (g *Gateway) Handler() http.Handler {
	return promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{})
}

// Order is the Prometheus OrderCollector.
type Order struct {
	registry       *prometheus.Registry
	created        *prometheus.CounterVec
	statusChanged  *prometheus.CounterVec
	errors         *prometheus.CounterVec
	processingTime prometheus.Histogram
}

func NewOrder() *Order {
	o := &Order{
		registry: prometheus.NewRegistry(),
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_service_orders_created_total",
			Help: "Total number of orders created.",
		}, []string{"status"}),
		statusChanged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_service_orders_status_changed_total",
			Help: "Total number of order status changes.",
		}, []string{"from_status", "to_status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_service_errors_total",
			Help: "Total number of errors encountered.",
		}, []string{"error_type"}),
		processingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "order_service_order_processing_seconds",
			Help:    "Time taken to process an order request.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
	o.registry.MustRegister(o.created, o.statusChanged, o.errors, o.processingTime)
	return o
}

func (o *Order) RecordOrderCreated(status string) { o.created.WithLabelValues(status).Inc() }

func (o *Order) RecordStatusChange(from, to string) {
	o.statusChanged.WithLabelValues(from, to).Inc()
}

func (o *Order) RecordError(errorType string) { o.errors.WithLabelValues(errorType).Inc() }

func (o *Order) RecordProcessingTime(seconds float64) { o.processingTime.Observe(seconds) }

// Handler exposes the order registry for a /metrics endpoint.
func (o *Order) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

// NopGateway and NopOrder satisfy the collector interfaces for tests.
type NopGateway struct{}

func (NopGateway) RecordRequest(string) {}

func (NopGateway) RecordError(string) {}

type NopOrder struct{}

func (NopOrder) RecordOrderCreated(string) {}

func (NopOrder) RecordStatusChange(_, _ string) {}

func (NopOrder) RecordError(string) {}

func (NopOrder) RecordProcessingTime(float64) {}
