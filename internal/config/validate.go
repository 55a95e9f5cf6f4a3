package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/chatrelay/internal/core"
)

// providerNamespace prefixes every completion backend module ID.
const providerNamespace = "provider."

// Validate checks the structural validity of a Config. Every problem is
// reported, joined into one error.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	var providers []string
	for _, id := range Resolve(cfg) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
		if strings.HasPrefix(id, providerNamespace) {
			providers = append(providers, id)
		}
	}

	switch len(providers) {
	case 0:
		errs = append(errs, errors.New("config: exactly one provider.* module is required, found none"))
	case 1:
	default:
		errs = append(errs, fmt.Errorf("config: exactly one provider.* module is required, found %s", strings.Join(providers, ", ")))
	}

	if err := cfg.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: log: %w", err))
	}
	if err := cfg.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}

	return errors.Join(errs...)
}
