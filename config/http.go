package config

import "fmt"

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// LogsToken protects the decision log endpoint when set.
	LogsToken string `json:"logs_token"`
	// UploadToken protects hospital roster uploads when set.
	UploadToken       string `json:"upload_token"`
	ReadTimeoutMS     int    `json:"read_timeout_ms"`
	ShutdownTimeoutMS int    `json:"shutdown_timeout_ms"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeoutMS == 0 {
		c.ReadTimeoutMS = 10000
	}
	if c.ShutdownTimeoutMS == 0 {
		c.ShutdownTimeoutMS = 5000
	}
}

func (c HTTPConfig) Validate() error {
	if c.ReadTimeoutMS < 0 || c.ShutdownTimeoutMS < 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}
