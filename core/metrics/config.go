package metrics

import (
	"fmt"

	"github.com/kilianp07/ambudispatch/core/factory"
)

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr enables the /metrics endpoint when non-empty.
	PrometheusAddr string `json:"prometheus_addr"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Sinks == nil {
		c.Sinks = []factory.ModuleConfig{{Type: "nop"}}
	}
}

// Validate checks sink declarations.
func (c Config) Validate() error {
	for i, s := range c.Sinks {
		if s.Type == "" {
			return fmt.Errorf("metrics.sinks[%d]: type is required", i)
		}
	}
	return nil
}
