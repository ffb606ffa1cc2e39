// Package routing provides the road-network oracles: OpenRouteService,
// Google Directions and a simulated provider for development.
package routing

import (
	"fmt"
	"slices"

	"github.com/kilianp07/ambudispatch/core/factory"
	"github.com/kilianp07/ambudispatch/core/routing"
)

// Config selects and configures the route provider.
type Config struct {
	Provider         string          `json:"provider"`
	BaseURL          string          `json:"base_url"`
	APIKey           string          `json:"api_key"`
	SnapRadiusMeters float64         `json:"snap_radius_meters"`
	OAuth2           OAuth2Config    `json:"oauth2"`
	Simulated        SimulatedConfig `json:"simulated"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "ors"
	}
	if c.SnapRadiusMeters == 0 {
		c.SnapRadiusMeters = DefaultSnapRadiusMeters
	}
	c.Simulated.SetDefaults()
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.SnapRadiusMeters < 0 {
		return fmt.Errorf("routing.snap_radius_meters must not be negative")
	}
	switch c.Provider {
	case "ors":
		if c.APIKey == "" && !c.OAuth2.Enabled() {
			return fmt.Errorf("routing.api_key is required for ors")
		}
		return c.OAuth2.Validate()
	case "google":
		if c.APIKey == "" {
			return fmt.Errorf("routing.api_key is required for google")
		}
	case "simulated":
		return c.Simulated.Validate()
	default:
		if !slices.Contains(providers.Names(), c.Provider) {
			return fmt.Errorf("unknown routing provider %q", c.Provider)
		}
	}
	return nil
}

func (c Config) module() factory.ModuleConfig {
	return factory.ModuleConfig{Type: c.Provider, Conf: map[string]any{
		"base_url":           c.BaseURL,
		"api_key":            c.APIKey,
		"snap_radius_meters": c.SnapRadiusMeters,
		"oauth2": map[string]any{
			"client_id":     c.OAuth2.ClientID,
			"client_secret": c.OAuth2.ClientSecret,
			"token_url":     c.OAuth2.TokenURL,
			"scopes":        c.OAuth2.Scopes,
		},
		"speed_kmh":     c.Simulated.SpeedKmh,
		"detour_factor": c.Simulated.DetourFactor,
		"latency_ms":    c.Simulated.LatencyMS,
		"failure_ratio": c.Simulated.FailureRatio,
		"seed":          c.Simulated.Seed,
	}}
}

var providers = factory.NewRegistry[routing.Oracle]("route provider")

// Register adds a provider factory under name.
func Register(name string, f factory.Factory[routing.Oracle]) error {
	return providers.Register(name, f)
}

// New builds the configured provider.
func New(cfg Config) (routing.Oracle, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return providers.Create(cfg.module())
}

func init() {
	providers.MustRegister("ors", func(conf map[string]any) (routing.Oracle, error) {
		var c ORSConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewORS(c, nil)
	})
	providers.MustRegister("google", func(conf map[string]any) (routing.Oracle, error) {
		var c GoogleConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewGoogle(c)
	})
	providers.MustRegister("simulated", func(conf map[string]any) (routing.Oracle, error) {
		var c SimulatedConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSimulated(c)
	})
}
