package api

import "github.com/prometheus/client_golang/prometheus"

// Metrics instruments calls against the remote telemetry API.
type Metrics struct {
	Requests     *prometheus.CounterVec
	Latency      *prometheus.HistogramVec
	CacheLookups *prometheus.CounterVec
	Logins       *prometheus.CounterVec
}

// NewMetrics creates the client collectors and registers them with reg when
// it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservoir_api_requests_total",
				Help: "Outbound telemetry API requests by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reservoir_api_request_duration_seconds",
				Help:    "Outbound telemetry API request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservoir_api_cache_lookups_total",
				Help: "Response cache lookups by operation and result.",
			},
			[]string{"operation", "result"},
		),
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservoir_api_logins_total",
				Help: "Login attempts by outcome.",
			},
			[]string{"outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.Requests, m.Latency, m.CacheLookups, m.Logins)
	}

	return m
}
