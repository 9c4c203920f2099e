// Package metrics exposes the orchestration core's Prometheus
// instruments. Instruments register on the default registry; the gateway
// serves them at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts completed queries by outcome: combined,
	// fallback or no_data.
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netsage_queries_total",
		Help: "Completed queries by outcome.",
	}, []string{"outcome"})

	// UnitResults counts work unit outcomes per provider.
	UnitResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netsage_unit_results_total",
		Help: "Work unit outcomes by provider and result.",
	}, []string{"provider", "result"})

	// RetriesTotal counts retry attempts per provider and error kind.
	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netsage_unit_retries_total",
		Help: "Retries by provider and error kind.",
	}, []string{"provider", "kind"})

	// UnitLatency observes end-to-end work unit latency per provider,
	// including retries.
	UnitLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netsage_unit_latency_seconds",
		Help:    "Latency of dispatched work units.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"provider"})

	// ActiveProviders tracks how many providers passed the startup probe.
	ActiveProviders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netsage_active_providers",
		Help: "Providers that passed the startup connection probe.",
	})
)
