package core

import (
	"fmt"
	"os"
	"path/filepath"

	uber_config "go.uber.org/config"
	"go.uber.org/fx"
)

const (
	_envConfigDir = "IDEBRIDGE_CONFIG_DIR"

	_baseConfigFile     = "base.yaml"
	_overrideConfigFile = "overrides.yaml"
)

// ConfigModule provides the YAML configuration provider.
var ConfigModule = fx.Options(
	fx.Provide(NewConfig),
)

// NewConfig loads base.yaml plus an optional overrides.yaml from the config
// directory, with environment variable substitution.
func NewConfig() (uber_config.Provider, error) {
	configDir := getConfigDir()

	basePath := filepath.Join(configDir, _baseConfigFile)
	if _, err := os.Stat(basePath); err != nil {
		return nil, fmt.Errorf("missing base configuration %q: %w", basePath, err)
	}

	options := []uber_config.YAMLOption{uber_config.File(basePath)}

	overridePath := filepath.Join(configDir, _overrideConfigFile)
	if _, err := os.Stat(overridePath); err == nil {
		options = append(options, uber_config.File(overridePath))
	}
	options = append(options, uber_config.Expand(os.LookupEnv))

	provider, err := uber_config.NewYAML(options...)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	return provider, nil
}

// getConfigDir returns the path to the configuration directory.
func getConfigDir() string {
	if configDir := os.Getenv(_envConfigDir); configDir != "" {
		return configDir
	}

	// Default assumes the binary is run from the workspace root.
	return "src/idebridge/config"
}
