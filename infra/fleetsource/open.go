// Package fleetsource loads the ambulance roster from CSV, YAML or Postgres
// and the hospital directory from CSV, YAML or JSON files.
package fleetsource

import (
	"context"
	"fmt"

	"github.com/kilianp07/ambudispatch/core/fleet"
)

// Config selects the roster source.
type Config struct {
	Source   string         `json:"source"`
	Path     string         `json:"path"`
	Postgres PostgresConfig `json:"postgres"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Source == "" {
		c.Source = "csv"
	}
	if c.Path == "" {
		switch c.Source {
		case "csv":
			c.Path = "ambulances.csv"
		case "yaml":
			c.Path = "fleet.yaml"
		}
	}
	if c.Postgres.Table == "" {
		c.Postgres.Table = DefaultTable
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	switch c.Source {
	case "csv", "yaml":
		if c.Path == "" {
			return fmt.Errorf("fleet.path is required for %s", c.Source)
		}
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("fleet.postgres.dsn is required")
		}
		if !identRe.MatchString(c.Postgres.Table) {
			return fmt.Errorf("fleet.postgres.table %q is not a valid identifier", c.Postgres.Table)
		}
	default:
		return fmt.Errorf("unknown fleet source %q", c.Source)
	}
	return nil
}

// Open returns the configured source.
func Open(cfg Config) (fleet.Source, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Source {
	case "yaml":
		return YAML{Path: cfg.Path}, nil
	case "postgres":
		return postgresDSN{cfg: cfg.Postgres}, nil
	default:
		return CSV{Path: cfg.Path}, nil
	}
}

// postgresDSN holds a pool only for the duration of a load.
type postgresDSN struct {
	cfg PostgresConfig
}

func (p postgresDSN) Load(ctx context.Context) ([]fleet.Row, error) {
	src, pool, err := OpenPostgres(ctx, p.cfg)
	if err != nil {
		return nil, err
	}
	defer pool.Close()
	return src.Load(ctx)
}
