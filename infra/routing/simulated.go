package routing

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kilianp07/ambudispatch/core/geo"
	"github.com/kilianp07/ambudispatch/core/routing"
)

// ErrSimulatedFailure is returned for the configured share of calls.
var ErrSimulatedFailure = errors.New("simulated provider failure")

// SimulatedConfig tunes the development oracle.
type SimulatedConfig struct {
	SpeedKmh     float64 `json:"speed_kmh"`
	DetourFactor float64 `json:"detour_factor"`
	LatencyMS    int     `json:"latency_ms"`
	FailureRatio float64 `json:"failure_ratio"`
	Seed         uint64  `json:"seed"`
}

// SetDefaults applies default values.
func (c *SimulatedConfig) SetDefaults() {
	if c.SpeedKmh == 0 {
		c.SpeedKmh = 40
	}
	if c.DetourFactor == 0 {
		c.DetourFactor = 1.3
	}
}

// Validate checks the configuration values.
func (c SimulatedConfig) Validate() error {
	if c.SpeedKmh <= 0 {
		return fmt.Errorf("routing.simulated.speed_kmh must be positive")
	}
	if c.DetourFactor < 1 {
		return fmt.Errorf("routing.simulated.detour_factor must be >= 1")
	}
	if c.FailureRatio < 0 || c.FailureRatio > 1 {
		return fmt.Errorf("routing.simulated.failure_ratio must be within [0,1]")
	}
	return nil
}

// Simulated derives road estimates from the great-circle distance. It
// stands in for a real provider in development and tests.
type Simulated struct {
	cfg SimulatedConfig

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulated(cfg SimulatedConfig) (*Simulated, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Simulated{cfg: cfg}
	if cfg.Seed != 0 {
		s.rng = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	}
	return s, nil
}

func (s *Simulated) roll() float64 {
	if s.rng == nil {
		return rand.Float64()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *Simulated) Name() string { return "simulated" }

func (s *Simulated) Estimate(ctx context.Context, origin, destination geo.Point) (routing.Estimate, error) {
	if s.cfg.LatencyMS > 0 {
		t := time.NewTimer(time.Duration(s.cfg.LatencyMS) * time.Millisecond)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return routing.Estimate{}, routing.Timeout(s.Name(), ctx.Err())
		case <-t.C:
		}
	}
	if s.cfg.FailureRatio > 0 && s.roll() < s.cfg.FailureRatio {
		return routing.Estimate{}, routing.ProviderError(s.Name(), ErrSimulatedFailure)
	}
	meters := geo.DistanceKm(origin, destination) * s.cfg.DetourFactor * 1000
	seconds := meters / 1000 / s.cfg.SpeedKmh * 3600
	return routing.Estimate{
		DistanceKm: routing.RoundKm(meters),
		ETAMinutes: routing.RoundMinutes(seconds),
	}, nil
}
