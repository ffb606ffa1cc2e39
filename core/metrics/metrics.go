package metrics

import (
	"time"
)

// Outcome values reported for a dispatch decision.
const (
	OutcomeDispatched = "dispatched"
)

// DispatchMetric summarizes one dispatch decision for observability.
// Outcome is OutcomeDispatched or the dispatch error kind.
type DispatchMetric struct {
	DispatchID string
	CallerID   string
	Level      int
	UnitID     string
	Outcome    string
	Candidates int
	Conflicts  int
	RouteKm    float64
	ETAMinutes float64
	Duration   time.Duration
	Time       time.Time
}

// MetricsSink records dispatch decisions for observability purposes.
type MetricsSink interface {
	RecordDispatch(m DispatchMetric) error
}

// OracleCall is the result of one route oracle call within a dispatch.
// Result is "ok" or the routing failure kind.
type OracleCall struct {
	DispatchID string
	UnitID     string
	Provider   string
	Result     string
	Latency    time.Duration
	Time       time.Time
}

// OracleCallRecorder is implemented by sinks able to record oracle calls.
type OracleCallRecorder interface {
	RecordOracleCalls(calls []OracleCall) error
}

// ReleaseEvent records a unit returning to service.
type ReleaseEvent struct {
	UnitID string
	Time   time.Time
}

// ReleaseRecorder records unit releases.
type ReleaseRecorder interface {
	RecordRelease(ev ReleaseEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordDispatch(DispatchMetric) error  { return nil }
func (NopSink) RecordOracleCalls([]OracleCall) error { return nil }
func (NopSink) RecordRelease(ReleaseEvent) error     { return nil }
