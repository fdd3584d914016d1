// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring a smolvec server.
package observability

import (
	"time"

	"github.com/dshills/smolvec/core"
	"github.com/prometheus/client_golang/prometheus"
)

// QueryBuckets defines histogram buckets for full-scan queries, ranging
// from 100µs to 10s.
var QueryBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}

// Metrics holds the collectors for store operations and HTTP traffic.
// It implements core.Recorder.
type Metrics struct {
	// AddsTotal counts vectors written by Add and AddBatch, by outcome.
	AddsTotal *prometheus.CounterVec

	// AddDuration records add latency in seconds.
	AddDuration prometheus.Histogram

	// DeletesTotal counts delete operations by outcome.
	DeletesTotal *prometheus.CounterVec

	// QueriesTotal counts queries by outcome.
	QueriesTotal *prometheus.CounterVec

	// QueryDuration records query latency in seconds.
	QueryDuration prometheus.Histogram

	// RecordsScannedTotal counts records decoded and scored by queries.
	RecordsScannedTotal prometheus.Counter

	// RequestsTotal counts HTTP requests by method, route, and status class.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration *prometheus.HistogramVec

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AddsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smolvec_adds_total",
				Help: "Vectors written by add and batch add",
			},
			[]string{"status"},
		),
		AddDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "smolvec_add_duration_seconds",
				Help:    "Vector add latency",
				Buckets: QueryBuckets,
			},
		),
		DeletesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smolvec_deletes_total",
				Help: "Vector delete operations",
			},
			[]string{"status"},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smolvec_queries_total",
				Help: "Similarity queries",
			},
			[]string{"status"},
		),
		QueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "smolvec_query_duration_seconds",
				Help:    "Similarity query latency",
				Buckets: QueryBuckets,
			},
		),
		RecordsScannedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "smolvec_records_scanned_total",
				Help: "Records scored by similarity queries",
			},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smolvec_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smolvec_http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RateLimitRejectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "smolvec_ratelimit_rejected_total",
				Help: "Rate limit rejections",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.AddsTotal,
			m.AddDuration,
			m.DeletesTotal,
			m.QueriesTotal,
			m.QueryDuration,
			m.RecordsScannedTotal,
			m.RequestsTotal,
			m.RequestDuration,
			m.RateLimitRejectedTotal,
		)
	}
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveAdd records an add or batch add of records vectors. The counter
// counts vectors; the histogram observes one duration per call.
func (m *Metrics) ObserveAdd(d time.Duration, records int, err error) {
	m.AddsTotal.WithLabelValues(outcome(err)).Add(float64(records))
	m.AddDuration.Observe(d.Seconds())
}

// ObserveDelete records a delete.
func (m *Metrics) ObserveDelete(err error) {
	m.DeletesTotal.WithLabelValues(outcome(err)).Inc()
}

// ObserveQuery records a query and the number of records it scored.
func (m *Metrics) ObserveQuery(d time.Duration, scanned int, err error) {
	m.QueriesTotal.WithLabelValues(outcome(err)).Inc()
	m.QueryDuration.Observe(d.Seconds())
	m.RecordsScannedTotal.Add(float64(scanned))
}

var _ core.Recorder = (*Metrics)(nil)
