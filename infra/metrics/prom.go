package metrics

import (
	"strconv"

	coremetrics "github.com/kilianp07/ambudispatch/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records per-unit dispatch activity in Prometheus metrics.
type PromSink struct {
	assignments *prometheus.CounterVec
	routeKm     *prometheus.HistogramVec
	eta         *prometheus.HistogramVec
	calls       *prometheus.CounterVec
	releases    *prometheus.CounterVec
}

// NewPromSink registers sink metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_assignments_total",
		Help: "Units assigned to emergency requests",
	}, []string{"unit_id", "level"})
	routeKm := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_route_distance_km",
		Help:    "Authoritative road distance of assigned units",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	}, []string{"level"})
	eta := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_eta_minutes",
		Help:    "Estimated arrival time of assigned units",
		Buckets: []float64{2, 5, 8, 12, 15, 20, 30, 60},
	}, []string{"level"})
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_oracle_calls_total",
		Help: "Route oracle calls by provider and result",
	}, []string{"provider", "result"})
	releases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_unit_releases_total",
		Help: "Units returned to service",
	}, []string{"unit_id"})

	var err error
	if assignments, err = register(reg, assignments); err != nil {
		return nil, err
	}
	if routeKm, err = register(reg, routeKm); err != nil {
		return nil, err
	}
	if eta, err = register(reg, eta); err != nil {
		return nil, err
	}
	if calls, err = register(reg, calls); err != nil {
		return nil, err
	}
	if releases, err = register(reg, releases); err != nil {
		return nil, err
	}
	return &PromSink{assignments: assignments, routeKm: routeKm, eta: eta, calls: calls, releases: releases}, nil
}

// register returns the already registered collector when one exists so
// several sinks can share a registerer.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordDispatch counts successful assignments and observes their route.
func (s *PromSink) RecordDispatch(m coremetrics.DispatchMetric) error {
	if m.Outcome != coremetrics.OutcomeDispatched {
		return nil
	}
	level := strconv.Itoa(m.Level)
	s.assignments.WithLabelValues(m.UnitID, level).Inc()
	s.routeKm.WithLabelValues(level).Observe(m.RouteKm)
	s.eta.WithLabelValues(level).Observe(m.ETAMinutes)
	return nil
}

// RecordOracleCalls counts oracle calls by result.
func (s *PromSink) RecordOracleCalls(calls []coremetrics.OracleCall) error {
	for _, c := range calls {
		s.calls.WithLabelValues(c.Provider, c.Result).Inc()
	}
	return nil
}

// RecordRelease counts units returned to service.
func (s *PromSink) RecordRelease(ev coremetrics.ReleaseEvent) error {
	s.releases.WithLabelValues(ev.UnitID).Inc()
	return nil
}
