// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

// Package metrics holds the Prometheus collectors shared by the API client
// and the convergence waiter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the dokeys collectors. A nil *Metrics is valid and records
// nothing, so callers never need to guard their observations.
type Metrics struct {
	APIRequests    *prometheus.CounterVec
	WaiterAttempts prometheus.Histogram
	WaiterSeconds  *prometheus.HistogramVec
}

// New builds a fresh set of collectors; they are not registered yet.
func New() *Metrics {
	return &Metrics{
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dokeys_api_requests_total",
			Help: "Key API calls by operation and outcome",
		}, []string{"op", "outcome"}),
		WaiterAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dokeys_waiter_attempts",
			Help:    "List calls issued before a wait finished",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		WaiterSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dokeys_waiter_seconds",
			Help:    "Time spent waiting for the listing to converge",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"outcome"}),
	}
}

// Register registers the collectors on reg (or the default registerer if
// nil). Already registered collectors are not an error.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{m.APIRequests, m.WaiterAttempts, m.WaiterSeconds} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// ObserveRequest counts one API call.
func (m *Metrics) ObserveRequest(op, outcome string) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(op, outcome).Inc()
}

// ObserveWait records a finished wait.
func (m *Metrics) ObserveWait(attempts int, seconds float64, outcome string) {
	if m == nil {
		return
	}
	m.WaiterAttempts.Observe(float64(attempts))
	m.WaiterSeconds.WithLabelValues(outcome).Observe(seconds)
}
