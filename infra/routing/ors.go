package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kilianp07/ambudispatch/core/geo"
	"github.com/kilianp07/ambudispatch/core/routing"
)

const (
	DefaultORSURL           = "https://api.openrouteservice.org"
	DefaultORSProfile       = "driving-car"
	DefaultSnapRadiusMeters = 2000
)

// ORSConfig configures the OpenRouteService provider.
type ORSConfig struct {
	BaseURL          string  `json:"base_url"`
	APIKey           string  `json:"api_key"`
	Profile          string  `json:"profile"`
	SnapRadiusMeters float64 `json:"snap_radius_meters"`
	// OAuth2 replaces the API key with bearer tokens when TokenURL is set.
	OAuth2 OAuth2Config `json:"oauth2"`
}

// SetDefaults applies default values.
func (c *ORSConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultORSURL
	}
	if c.Profile == "" {
		c.Profile = DefaultORSProfile
	}
	if c.SnapRadiusMeters == 0 {
		c.SnapRadiusMeters = DefaultSnapRadiusMeters
	}
}

// Validate checks the configuration values.
func (c ORSConfig) Validate() error {
	if c.APIKey == "" && !c.OAuth2.Enabled() {
		return fmt.Errorf("routing.api_key is required for ors")
	}
	if err := c.OAuth2.Validate(); err != nil {
		return err
	}
	if c.SnapRadiusMeters < 0 {
		return fmt.Errorf("routing.snap_radius_meters must not be negative")
	}
	return nil
}

// ORS queries the OpenRouteService directions API.
type ORS struct {
	cfg    ORSConfig
	client *http.Client
}

// NewORS returns an ORS provider. A nil client uses http.DefaultClient;
// call deadlines come from the context.
func NewORS(cfg ORSConfig, client *http.Client) (*ORS, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.OAuth2.Enabled() {
		client = cfg.OAuth2.Client(client)
	} else if client == nil {
		client = http.DefaultClient
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &ORS{cfg: cfg, client: client}, nil
}

func (o *ORS) Name() string { return "ors" }

type orsRequest struct {
	Coordinates [][2]float64 `json:"coordinates"`
	Radiuses    []float64    `json:"radiuses"`
}

type orsResponse struct {
	Routes []struct {
		Summary struct {
			Distance *float64 `json:"distance"`
			Duration *float64 `json:"duration"`
		} `json:"summary"`
	} `json:"routes"`
}

// Estimate returns the driving distance and duration from origin to
// destination.
func (o *ORS) Estimate(ctx context.Context, origin, destination geo.Point) (routing.Estimate, error) {
	body, err := json.Marshal(orsRequest{
		Coordinates: [][2]float64{{origin.Lng, origin.Lat}, {destination.Lng, destination.Lat}},
		Radiuses:    []float64{o.cfg.SnapRadiusMeters, o.cfg.SnapRadiusMeters},
	})
	if err != nil {
		return routing.Estimate{}, routing.ProviderError(o.Name(), err)
	}
	url := o.cfg.BaseURL + "/v2/directions/" + o.cfg.Profile
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return routing.Estimate{}, routing.ProviderError(o.Name(), err)
	}
	if o.cfg.APIKey != "" && !o.cfg.OAuth2.Enabled() {
		req.Header.Set("Authorization", o.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return routing.Estimate{}, routing.Timeout(o.Name(), err)
		}
		return routing.Estimate{}, routing.ProviderError(o.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return routing.Estimate{}, routing.ProviderError(o.Name(), fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}
	var out orsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return routing.Estimate{}, routing.Timeout(o.Name(), err)
		}
		return routing.Estimate{}, routing.Malformed(o.Name(), err)
	}
	if len(out.Routes) == 0 {
		return routing.Estimate{}, routing.Malformed(o.Name(), errors.New("no routes in response"))
	}
	sum := out.Routes[0].Summary
	if sum.Distance == nil || sum.Duration == nil || *sum.Distance < 0 || *sum.Duration < 0 {
		return routing.Estimate{}, routing.Malformed(o.Name(), errors.New("route summary lacks distance or duration"))
	}
	return routing.Estimate{
		DistanceKm: routing.RoundKm(*sum.Distance),
		ETAMinutes: routing.RoundMinutes(*sum.Duration),
	}, nil
}
