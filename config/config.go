package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/ambudispatch/core/dispatch"
	"github.com/kilianp07/ambudispatch/core/dispatch/logging"
	"github.com/kilianp07/ambudispatch/core/metrics"
	"github.com/kilianp07/ambudispatch/infra/fleetsource"
	"github.com/kilianp07/ambudispatch/infra/routing"
)

// EnvPrefix marks environment overrides. K_ROUTING__API_KEY sets
// routing.api_key.
const EnvPrefix = "K_"

type Config struct {
	LogLevel string             `json:"log_level"`
	Dispatch dispatch.Config    `json:"dispatch"`
	Routing  routing.Config     `json:"routing"`
	Fleet    fleetsource.Config `json:"fleet"`
	// Hospitals is optional; without a path the directory starts empty.
	Hospitals fleetsource.HospitalConfig `json:"hospitals"`
	Logging   logging.Config             `json:"logging"`
	Metrics   metrics.Config             `json:"metrics"`
	Notify    NotifyConfig               `json:"notify"`
	HTTP      HTTPConfig                 `json:"http"`
	Sentry    SentryConfig               `json:"sentry"`
}

type section interface {
	SetDefaults()
	Validate() error
}

func (c *Config) sections() map[string]section {
	return map[string]section{
		"dispatch":  &c.Dispatch,
		"routing":   &c.Routing,
		"fleet":     &c.Fleet,
		"hospitals": &c.Hospitals,
		"logging":   &c.Logging,
		"metrics":   &c.Metrics,
		"notify":    &c.Notify,
		"http":      &c.HTTP,
		"sentry":    &c.Sentry,
	}
}

// SetDefaults applies default values to every section.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	for _, s := range c.sections() {
		s.SetDefaults()
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validateLogLevel(c.LogLevel); err != nil {
		return err
	}
	for name, s := range c.sections() {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Load reads the YAML or JSON file at path, applies K_ environment
// overrides, then defaults and validation. An empty path loads the
// environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
