// Package metrics holds the application's Prometheus collectors. All
// collectors are registered on the default registry and exposed by the
// server's metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultBuckets provides a common set of histogram buckets in seconds that can
// be reused across the application for latency metrics.
var DefaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10} //nolint: gochecknoglobals

//nolint: gochecknoglobals
var (
	// ScansStarted counts admitted scans by kind and trigger.
	ScansStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "a11yscan_scans_started_total",
		Help: "Number of scans admitted and enqueued.",
	}, []string{"kind", "trigger"})

	// ScansFinished counts scans reaching a terminal status.
	ScansFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "a11yscan_scans_finished_total",
		Help: "Number of scans that reached a terminal status.",
	}, []string{"status"})

	// PaymentWebhooks counts processed payment notifications by outcome.
	PaymentWebhooks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "a11yscan_payment_webhooks_total",
		Help: "Number of payment webhook deliveries by processing outcome.",
	}, []string{"outcome"})

	// SweepItems counts items handled by the maintenance sweeps.
	SweepItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "a11yscan_sweep_items_total",
		Help: "Number of items handled by maintenance sweeps.",
	}, []string{"sweep", "outcome"})

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "a11yscan_rate_limited_total",
		Help: "Number of requests rejected by the rate limiter.",
	}, []string{"policy"})
)
