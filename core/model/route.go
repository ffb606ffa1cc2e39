package model

import "time"

// RouteEstimate is the authoritative road distance and ETA from a unit to
// the emergency location.
type RouteEstimate struct {
	UnitID     string        `json:"unit_id"`
	DistanceKm float64       `json:"distance_km"`
	ETAMinutes float64       `json:"eta_minutes"`
	Latency    time.Duration `json:"latency"`
}
