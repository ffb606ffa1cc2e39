package dispatch

import (
	"fmt"
	"time"
)

// DefaultShortlistSize is the number of geometrically nearest units sent to
// the route oracle.
const DefaultShortlistSize = 10

// Config defines dispatch-related settings.
type Config struct {
	ShortlistSize  int `json:"shortlist_size"`
	CallTimeoutMS  int `json:"call_timeout_ms"`
	BatchTimeoutMS int `json:"batch_timeout_ms"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.ShortlistSize == 0 {
		c.ShortlistSize = DefaultShortlistSize
	}
	if c.CallTimeoutMS == 0 {
		c.CallTimeoutMS = 10000
	}
	if c.BatchTimeoutMS == 0 {
		c.BatchTimeoutMS = 15000
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.ShortlistSize <= 0 {
		return fmt.Errorf("dispatch.shortlist_size must be positive")
	}
	if c.CallTimeoutMS <= 0 || c.BatchTimeoutMS <= 0 {
		return fmt.Errorf("dispatch timeouts must be positive")
	}
	if c.BatchTimeoutMS < c.CallTimeoutMS {
		return fmt.Errorf("dispatch.batch_timeout_ms (%d) must not be below call_timeout_ms (%d)", c.BatchTimeoutMS, c.CallTimeoutMS)
	}
	return nil
}

func (c Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMS) * time.Millisecond
}

func (c Config) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutMS) * time.Millisecond
}
