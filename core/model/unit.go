package model

import (
	"fmt"
	"strings"

	"github.com/kilianp07/ambudispatch/core/geo"
)

// Capability levels accepted for units and requests.
const (
	MinLevel = 1
	MaxLevel = 4
)

// Status defines the lifecycle state of a unit.
type Status int32

const (
	StatusAvailable Status = iota
	StatusDispatched
	StatusUnavailable
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusDispatched:
		return "dispatched"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// ParseStatus maps a normalized status string to a Status.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "available":
		return StatusAvailable, nil
	case "dispatched":
		return StatusDispatched, nil
	case "unavailable":
		return StatusUnavailable, nil
	default:
		return 0, fmt.Errorf("unknown unit status %q", s)
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Unit represents an ambulance in the shared fleet.
type Unit struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
	// Position is nil when the unit location is unknown.
	Position *geo.Point `json:"position,omitempty"`
	Status   Status     `json:"status"`

	// Descriptive metadata carried from the fleet source.
	Category string `json:"category,omitempty"`
	Region   string `json:"region,omitempty"`
}

// Capable reports whether the unit can serve a request of the given level.
func (u Unit) Capable(level int) bool { return u.Level >= level }

// ValidLevel reports whether lvl is a known capability level.
func ValidLevel(lvl int) bool { return lvl >= MinLevel && lvl <= MaxLevel }
