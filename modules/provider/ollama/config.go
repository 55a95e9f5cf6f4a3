package ollama

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is where a local Ollama server listens.
const DefaultBaseURL = "http://localhost:11434"

// Config holds the configuration for the Ollama provider.
type Config struct {
	BaseURL string `yaml:"base_url"`

	// Model is used when a request does not name one.
	Model string `yaml:"model"`

	// KeepAlive is forwarded as keep_alive, e.g. "5m" or "-1".
	KeepAlive string `yaml:"keep_alive"`

	Headers map[string]string `yaml:"headers"`

	// Timeout bounds the wait for response headers. Loading a large model
	// can take a while, so the default is generous.
	Timeout time.Duration `yaml:"timeout"`
}

// defaults sets default values for unset fields.
func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
}

// validate returns an error if the configuration cannot work.
func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("provider.ollama: base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("provider.ollama: base_url scheme must be http or https, got %q", u.Scheme)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("provider.ollama: timeout must not be negative")
	}
	return nil
}
