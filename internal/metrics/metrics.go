// Package metrics holds the Prometheus instruments for settlements and the
// oracle.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "web3dona"

// Metrics groups every instrument on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	SettlementsTotal      *prometheus.CounterVec
	SettlementDuration    *prometheus.HistogramVec
	OracleRefreshTotal    *prometheus.CounterVec
	LedgerConfirmDuration *prometheus.HistogramVec
	FeedFetchTotal        *prometheus.CounterVec
	HTTPRequestsTotal     *prometheus.CounterVec
}

// New creates the instruments and registers them with the Go and process
// collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SettlementsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settlements_total",
				Help:      "Settlements by operation and terminal status.",
			},
			[]string{"operation", "status"},
		),

		SettlementDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "settlement_duration_seconds",
				Help:      "End-to-end settlement latency.",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms .. ~2m
			},
			[]string{"operation"},
		),

		OracleRefreshTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "oracle_refresh_total",
				Help:      "Oracle refresh attempts by result.",
			},
			[]string{"result"},
		),

		LedgerConfirmDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ledger_confirmation_seconds",
				Help:      "Time from broadcast to receipt.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 8), // 1s .. 128s
			},
			[]string{"operation"},
		),

		FeedFetchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_fetch_total",
				Help:      "Price feed fetches by result.",
			},
			[]string{"result"},
		),

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code.",
			},
			[]string{"method", "route", "code"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordSettlement counts one finished settlement.
func (m *Metrics) RecordSettlement(operation, status string, took time.Duration) {
	m.SettlementsTotal.WithLabelValues(operation, status).Inc()
	m.SettlementDuration.WithLabelValues(operation).Observe(took.Seconds())
}

// RecordOracleRefresh counts one refresh attempt ("published", "skipped",
// "failed").
func (m *Metrics) RecordOracleRefresh(result string) {
	m.OracleRefreshTotal.WithLabelValues(result).Inc()
}

// ObserveConfirmation records how long a transaction took to be mined.
func (m *Metrics) ObserveConfirmation(operation string, d time.Duration) {
	m.LedgerConfirmDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveFeedFetch counts one price feed fetch.
func (m *Metrics) ObserveFeedFetch(result string) {
	m.FeedFetchTotal.WithLabelValues(result).Inc()
}

// RecordHTTPRequest counts one served request.
func (m *Metrics) RecordHTTPRequest(method, route, code string) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
}
