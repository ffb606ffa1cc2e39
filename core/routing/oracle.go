// Package routing defines the contract for authoritative road-network
// distance providers.
package routing

import (
	"context"
	"math"
	"time"

	"github.com/kilianp07/ambudispatch/core/geo"
)

// DefaultCallTimeout bounds a single provider call.
const DefaultCallTimeout = 10 * time.Second

// Estimate is a driving distance and duration between two points.
type Estimate struct {
	DistanceKm float64
	ETAMinutes float64
}

// Oracle returns authoritative driving estimates. Implementations report
// every fault as a *Failure.
type Oracle interface {
	Estimate(ctx context.Context, origin, destination geo.Point) (Estimate, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, origin, destination geo.Point) (Estimate, error)

func (f OracleFunc) Estimate(ctx context.Context, origin, destination geo.Point) (Estimate, error) {
	return f(ctx, origin, destination)
}

// RoundKm converts meters to kilometers rounded to two decimals.
func RoundKm(meters float64) float64 { return math.Round(meters/1000*100) / 100 }

// RoundMinutes converts seconds to minutes rounded to one decimal.
func RoundMinutes(seconds float64) float64 { return math.Round(seconds/60*10) / 10 }
