package config

import (
	"fmt"
	"os"

	"github.com/atvremote/go-atvremote/tools"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML configuration file and unmarshals it into the
// specified type. T must be a struct type that can be unmarshaled from YAML.
func LoadConfig[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg T
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// LoadRemoteConfig reads a remote configuration file, fills in defaults,
// applies environment overrides and validates the result.
func LoadRemoteConfig(path string) (*Config, error) {
	cfg, err := LoadConfig[Config](path)
	if err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv lets a deployment override the target and identity without
// touching the file.
func (c *Config) applyEnv() {
	c.Host = tools.GetenvDefault(EnvPrefix+"HOST", c.Host)
	c.ClientName = tools.GetenvDefault(EnvPrefix+"CLIENT_NAME", c.ClientName)
	c.CertFile = tools.GetenvDefault(EnvPrefix+"CERT_FILE", c.CertFile)
	c.KeyFile = tools.GetenvDefault(EnvPrefix+"KEY_FILE", c.KeyFile)
}
