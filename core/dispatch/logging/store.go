package logging

import (
	"context"
	"time"

	"github.com/kilianp07/ambudispatch/core/model"
)

// Status values of a DecisionRecord.
const (
	StatusDispatched = "dispatched"
	StatusFailed     = "failed"
)

// DecisionRecord captures one dispatch decision: the shortlist, every
// oracle result, the chosen unit and the timing breakdown.
type DecisionRecord struct {
	DispatchID string                 `json:"dispatch_id"`
	Timestamp  time.Time              `json:"timestamp"`
	Request    model.EmergencyRequest `json:"request"`
	Status     string                 `json:"status"`
	// ErrorKind is empty for dispatched records.
	ErrorKind string               `json:"error_kind,omitempty"`
	Message   string               `json:"message,omitempty"`
	Shortlist []Candidate          `json:"shortlist"`
	Routes    []RouteResult        `json:"routes"`
	UnitID    string               `json:"unit_id,omitempty"`
	Route     *model.RouteEstimate `json:"route,omitempty"`
	Conflicts []string             `json:"conflicts,omitempty"`
	Timing    model.Timing         `json:"timing"`
}

// Candidate is a shortlisted unit with its great-circle distance.
type Candidate struct {
	UnitID      string  `json:"unit_id"`
	Level       int     `json:"level"`
	HaversineKm float64 `json:"haversine_km"`
}

// RouteResult is the oracle outcome for one candidate. Failure holds the
// routing failure kind when the call did not produce an estimate.
type RouteResult struct {
	UnitID     string  `json:"unit_id"`
	DistanceKm float64 `json:"distance_km,omitempty"`
	ETAMinutes float64 `json:"eta_minutes,omitempty"`
	LatencyMs  float64 `json:"latency_ms"`
	Failure    string  `json:"failure,omitempty"`
}

// involves reports whether unitID was shortlisted, routed or chosen.
func (r DecisionRecord) involves(unitID string) bool {
	if r.UnitID == unitID {
		return true
	}
	for _, c := range r.Shortlist {
		if c.UnitID == unitID {
			return true
		}
	}
	for _, id := range r.Conflicts {
		if id == unitID {
			return true
		}
	}
	return false
}

// LogQuery defines filters for retrieving records. Kind matches the
// record status for dispatched decisions and the error kind otherwise.
type LogQuery struct {
	Start    time.Time
	End      time.Time
	UnitID   string
	CallerID string
	Kind     string
}

func (q LogQuery) matches(r DecisionRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.CallerID != "" && r.Request.CallerID != q.CallerID {
		return false
	}
	if q.Kind != "" && r.kind() != q.Kind {
		return false
	}
	if q.UnitID != "" && !r.involves(q.UnitID) {
		return false
	}
	return true
}

func (r DecisionRecord) kind() string {
	if r.ErrorKind != "" {
		return r.ErrorKind
	}
	return r.Status
}

// Recorder persists decision records.
type Recorder interface {
	Record(ctx context.Context, rec DecisionRecord) error
}

// LogStore persists DecisionRecords and supports querying.
type LogStore interface {
	Recorder
	Query(ctx context.Context, q LogQuery) ([]DecisionRecord, error)
	Close() error
}
