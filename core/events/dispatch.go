package events

import (
	"time"

	"github.com/kilianp07/ambudispatch/core/model"
)

// DispatchEvent is published once a unit has been reserved.
type DispatchEvent struct {
	DispatchID string
	Request    model.EmergencyRequest
	Unit       model.Unit
	Route      model.RouteEstimate
	Time       time.Time
}

// ConflictEvent is published when a reservation attempt finds the unit
// already taken.
type ConflictEvent struct {
	DispatchID string
	UnitID     string
}

// FailureEvent is published when a request ends without a reserved unit.
// Kind carries the dispatch error kind name.
type FailureEvent struct {
	DispatchID string
	CallerID   string
	Kind       string
	Err        error
}

// ReleaseEvent is published when a unit returns to service.
type ReleaseEvent struct {
	UnitID string
	Time   time.Time
}
