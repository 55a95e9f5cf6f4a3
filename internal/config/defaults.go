package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the configuration file name searched for by FindPath.
const FileName = "chatrelay.yaml"

// DefaultYAML is the configuration used when no file is found: an Ollama
// backend on its standard port and the gateway on localhost:8000.
const DefaultYAML = `version: "1"

log:
  level: info
  format: text

telemetry:
  exporter: none

modules:
  provider.ollama:
    base_url: ${OLLAMA_HOST:-http://localhost:11434}

  session.memory:
    idle_timeout: 60m
    sweep_schedule: "*/5 * * * *"

  gateway.http:
    bind: 127.0.0.1:8000
    cors:
      allowed_origins: ["*"]
`

// Default returns the built-in configuration.
func Default() (*Config, error) {
	return Parse([]byte(DefaultYAML))
}

// FindPath returns the configuration file to load. An explicit path wins
// and must exist. Otherwise the search order is
// $XDG_CONFIG_HOME/chatrelay/chatrelay.yaml (or
// ~/.config/chatrelay/chatrelay.yaml) then ./chatrelay.yaml. An empty
// result with a nil error means the built-in default applies.
func FindPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config: %w", err)
		}
		return explicit, nil
	}

	for _, path := range searchPaths() {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

func searchPaths() []string {
	var candidates []string
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "chatrelay", FileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "chatrelay", FileName))
	}
	return append(candidates, FileName)
}

// LoadOrDefault resolves the configuration path and loads it, falling back
// to Default when no file exists. It returns the path used, empty for the
// built-in default.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := FindPath(explicit)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		cfg, err := Default()
		return cfg, "", err
	}
	cfg, err := Load(path)
	return cfg, path, err
}
