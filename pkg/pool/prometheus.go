package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/snoekiede/poolkit/pkg/errors"
)

// Operational collectors registered on the default Prometheus registry.
// These track pool activity as it happens; the pull-style rendering of a
// pool's counters for external scrape pipelines lives in export.go.
var (
	acquiresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolkit_acquires_total",
			Help: "Total number of acquire attempts by outcome",
		},
		[]string{"pool", "result"},
	)

	releasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolkit_releases_total",
			Help: "Total number of objects returned to the available set",
		},
		[]string{"pool"},
	)

	discardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolkit_discards_total",
			Help: "Total number of objects discarded instead of pooled",
		},
		[]string{"pool", "reason"},
	)

	evictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolkit_evictions_total",
			Help: "Total number of objects evicted by staleness rule",
		},
		[]string{"pool", "reason"},
	)

	activeObjects = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "poolkit_active_objects",
			Help: "Number of objects currently on loan",
		},
		[]string{"pool"},
	)

	availableObjects = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "poolkit_available_objects",
			Help: "Number of objects currently available for acquisition",
		},
		[]string{"pool"},
	)

	acquireWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poolkit_acquire_wait_seconds",
			Help:    "Time spent waiting in AcquireWait before success",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"pool"},
	)
)

func observeAcquire(pool string, err error) {
	result := "success"
	switch {
	case err == nil:
	case errors.IsType(err, errors.ErrorTypeExhausted):
		result = "exhausted"
	case errors.IsType(err, errors.ErrorTypeUnavailable):
		result = "unavailable"
	case errors.IsType(err, errors.ErrorTypeTimeout):
		result = "timeout"
	case errors.IsType(err, errors.ErrorTypeCancelled):
		result = "cancelled"
	case errors.IsType(err, errors.ErrorTypeNoMatch):
		result = "no_match"
	default:
		result = "error"
	}
	acquiresTotal.WithLabelValues(pool, result).Inc()
}
