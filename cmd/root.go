// Package cmd holds the ambudispatch command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ambudispatch/config"
	"github.com/kilianp07/ambudispatch/infra/logger"
)

var (
	cfgPath  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:          "ambudispatch",
	Short:        "Ambulance dispatch service",
	Long:         "ambudispatch selects and reserves the closest capable ambulance by road distance.",
	SilenceUsage: true,
	RunE:         serve,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file (yaml or json)")
	pf.StringVar(&logLevel, "log-level", "", "override log_level from the configuration")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// loadConfig reads the configuration and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger.SetLevel(cfg.LogLevel)
	return cfg, nil
}
