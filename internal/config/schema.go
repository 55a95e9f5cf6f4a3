// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for chatrelay.
package config

import (
	"github.com/flemzord/chatrelay/internal/logging"
	"github.com/flemzord/chatrelay/internal/telemetry"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Log       logging.Config   `yaml:"log"`
	Telemetry telemetry.Config `yaml:"telemetry"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "provider.ollama").
	Modules map[string]yaml.Node `yaml:"modules"`
}
