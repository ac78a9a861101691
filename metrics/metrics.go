// Package metrics provides Prometheus metrics for the exchange client.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "exchange_client"

// Refresh and retry outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected" // 401 propagated without a refresh
	OutcomeShared   = "shared"   // waited on a refresh started by another request
)

// Metrics is safe to use as a nil pointer; every Record* becomes a no-op.
type Metrics struct {
	// RequestsTotal counts completed HTTP round trips.
	RequestsTotal *prometheus.CounterVec
	// RequestDuration measures HTTP round trip duration.
	RequestDuration *prometheus.HistogramVec
	// RefreshTotal counts token refresh operations.
	RefreshTotal *prometheus.CounterVec
	// AuthRetryTotal counts how 401 responses were resolved.
	AuthRetryTotal *prometheus.CounterVec
}

// New creates the collectors and registers them with reg (skipped when reg is nil).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests sent to the exchange API",
			},
			[]string{"method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of exchange API requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refresh_total",
				Help:      "Total number of access token refresh operations",
			},
			[]string{"outcome"},
		),
		AuthRetryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_retry_total",
				Help:      "Resolution of requests that failed with 401",
			},
			[]string{"outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.RefreshTotal, m.AuthRetryTotal)
	}
	return m
}

// RecordRequest records a round trip. status 0 means the request never got a response.
func (m *Metrics) RecordRequest(method string, status int, seconds float64) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.RequestsTotal.WithLabelValues(method, label).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(seconds)
}

// RecordRefresh records a token refresh outcome.
func (m *Metrics) RecordRefresh(outcome string) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(outcome).Inc()
}

// RecordAuthRetry records how a 401 was resolved.
func (m *Metrics) RecordAuthRetry(outcome string) {
	if m == nil {
		return
	}
	m.AuthRetryTotal.WithLabelValues(outcome).Inc()
}
