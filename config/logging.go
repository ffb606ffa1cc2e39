package config

import (
	"fmt"
	"strings"
)

var logLevels = []string{"trace", "debug", "info", "warn", "error"}

func validateLogLevel(lvl string) error {
	for _, l := range logLevels {
		if strings.EqualFold(lvl, l) {
			return nil
		}
	}
	return fmt.Errorf("log_level %q must be one of %v", lvl, logLevels)
}
