package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"github.com/kilianp07/ambudispatch/core/geo"
	"github.com/kilianp07/ambudispatch/core/routing"
)

// GoogleConfig configures the Google Directions provider.
type GoogleConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type directionsClient interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// Google queries the Google Maps Directions API.
type Google struct {
	client directionsClient
}

// NewGoogle builds the provider from an API key.
func NewGoogle(cfg GoogleConfig) (*Google, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("routing.api_key is required for google")
	}
	opts := []maps.ClientOption{maps.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.BaseURL))
	}
	c, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create google maps client: %w", err)
	}
	return &Google{client: c}, nil
}

func (g *Google) Name() string { return "google" }

func latLng(p geo.Point) string { return fmt.Sprintf("%f,%f", p.Lat, p.Lng) }

// Estimate sums the legs of the first returned route.
func (g *Google) Estimate(ctx context.Context, origin, destination geo.Point) (routing.Estimate, error) {
	routes, _, err := g.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      latLng(origin),
		Destination: latLng(destination),
		Mode:        maps.TravelModeDriving,
	})
	if err != nil {
		if ctx.Err() != nil {
			return routing.Estimate{}, routing.Timeout(g.Name(), err)
		}
		return routing.Estimate{}, routing.ProviderError(g.Name(), err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return routing.Estimate{}, routing.Malformed(g.Name(), errors.New("no routes in response"))
	}
	var meters int
	var dur time.Duration
	for _, leg := range routes[0].Legs {
		if leg == nil {
			return routing.Estimate{}, routing.Malformed(g.Name(), errors.New("nil leg"))
		}
		meters += leg.Meters
		dur += leg.Duration
	}
	return routing.Estimate{
		DistanceKm: routing.RoundKm(float64(meters)),
		ETAMinutes: routing.RoundMinutes(dur.Seconds()),
	}, nil
}
