// Package config: file loading via Viper.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// EnvConfigFile overrides the configuration path when set.
const EnvConfigFile = "CONFIG_FILE"

// defaultFileName is searched in the working directory when neither the
// --config flag nor CONFIG_FILE names a path.
const defaultFileName = "mcp.json"

// ResolvePath picks the configuration file path: explicit flag value first,
// then the CONFIG_FILE environment variable, then ./mcp.json.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvConfigFile); env != "" {
		return env
	}
	return defaultFileName
}

// Load reads, defaults, and validates the configuration at path.
func Load(path string) (*ProxyConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg ProxyConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}

	if err := reloadServers(path, &cfg); err != nil {
		return nil, err
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return &cfg, nil
}

// reloadServers re-decodes the mcpServers section straight from the file.
// Viper lowercases every map key, which would mangle upstream names (the
// client-visible tool prefix) and child env variable names.
func reloadServers(path string, cfg *ProxyConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var shape struct {
		MCPServers map[string]UpstreamSpec `json:"mcpServers"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.MCPServers = shape.MCPServers
	return nil
}
