package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every variable name, e.g. CARMARKET_SECRET_KEY.
const EnvPrefix = "CARMARKET"

// parseEnv overlays variables that are set; unset ones leave config as is.
func parseEnv(config *Config) error {
	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return fmt.Errorf("env config: %w", err)
	}
	return nil
}
