// Package metrics exposes Prometheus instrumentation for the HTTP surface
// and the ledgers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "commerce"

// Metrics holds every collector the service reports.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests   *prometheus.CounterVec
	HTTPLatencyMS  *prometheus.HistogramVec
	Checkouts      *prometheus.CounterVec
	RefundRequests *prometheus.CounterVec
	RefundIntake   *prometheus.CounterVec
}

// New creates collectors on a private registry, together with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		HTTPLatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		RefundRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refund_requests_total",
			Help:      "Refund ledger requests by decision.",
		}, []string{"decision"}),
		RefundIntake: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refund_intake_total",
			Help:      "Refund intake workflow runs by final state.",
		}, []string{"state"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPLatencyMS,
		m.Checkouts,
		m.RefundRequests,
		m.RefundIntake,
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCheckout counts one checkout outcome. A nil receiver is a no-op so
// services can run without instrumentation.
func (m *Metrics) ObserveCheckout(outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
}

// ObserveRefund counts one ledger decision or failure kind.
func (m *Metrics) ObserveRefund(decision string) {
	if m == nil {
		return
	}
	m.RefundRequests.WithLabelValues(decision).Inc()
}

// ObserveIntake counts one intake run by final state.
func (m *Metrics) ObserveIntake(state string) {
	if m == nil {
		return
	}
	m.RefundIntake.WithLabelValues(state).Inc()
}
