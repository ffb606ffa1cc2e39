package logging

import (
	"fmt"
	"strings"
)

// Config selects and configures the decision store.
type Config struct {
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "dispatch_decisions.db"
		default:
			c.Path = "dispatch_decisions.jsonl"
		}
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 50
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 30
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case "jsonl", "rotating", "sqlite":
	default:
		return fmt.Errorf("logging.backend: unknown backend %q", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("logging.path is required")
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("logging rotation limits must not be negative")
	}
	return nil
}

// Open creates the LogStore selected by cfg.
func Open(cfg Config) (LogStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "jsonl":
		return NewJSONLStore(cfg.Path)
	case "rotating":
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown decision store backend %q", cfg.Backend)
	}
}
