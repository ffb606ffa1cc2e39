package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal        *prometheus.CounterVec
	oracleLatency        *prometheus.HistogramVec
	reservationConflicts prometheus.Counter
	dispatchDuration     prometheus.Histogram
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec, prometheus.Counter, prometheus.Histogram) {
	req := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_requests_total",
			Help: "Dispatch requests by outcome",
		},
		[]string{"outcome"},
	)
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_oracle_latency_seconds",
			Help:    "Latency of route oracle calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "result"},
	)
	conf := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_reservation_conflicts_total",
			Help: "Reservations lost to a concurrent request",
		},
	)
	dur := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_duration_seconds",
			Help:    "Wall time of a dispatch decision",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		},
	)
	return req, lat, conf, dur
}

func init() {
	requestsTotal, oracleLatency, reservationConflicts, dispatchDuration = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(requestsTotal, oracleLatency, reservationConflicts, dispatchDuration)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	requestsTotal, oracleLatency, reservationConflicts, dispatchDuration = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
