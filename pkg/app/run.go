// Package app provides the shared entry point for the chatrelay binary.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flemzord/chatrelay/internal/config"
	"github.com/flemzord/chatrelay/internal/logging"
	"github.com/flemzord/chatrelay/internal/security"
	"github.com/flemzord/chatrelay/internal/telemetry"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file. When
	// empty the standard locations are searched, then the built-in
	// default applies.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// LogWriter receives log output. Defaults to os.Stderr.
	LogWriter io.Writer
}

// Env is the process environment shared by every command: the validated
// configuration, the logger and the telemetry shutdown hook.
type Env struct {
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger

	closeLog    io.Closer
	stopTracing telemetry.ShutdownFunc
}

// Setup loads and validates the configuration, then builds the logger and
// installs tracing. Call Close when done.
func Setup(ctx context.Context, params RunParams) (*Env, error) {
	cfg, path, err := config.LoadOrDefault(params.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	w := params.LogWriter
	if w == nil {
		w = os.Stderr
	}
	redactor := security.NewRedactor()
	for id := range cfg.Modules {
		node := cfg.Modules[id]
		redactor.AddFromYAML(&node)
	}
	logger, closeLog, err := logging.New(cfg.Log, w, redactor)
	if err != nil {
		return nil, err
	}

	stopTracing, err := telemetry.Setup(ctx, cfg.Telemetry, params.Version)
	if err != nil {
		_ = closeLog.Close()
		return nil, err
	}

	source := path
	if source == "" {
		source = "built-in default"
	}
	logger.Info("configuration loaded", "source", source, "version", params.Version)

	return &Env{
		Config:      cfg,
		ConfigPath:  path,
		Logger:      logger,
		closeLog:    closeLog,
		stopTracing: stopTracing,
	}, nil
}

// Close flushes traces and releases the log file.
func (e *Env) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.stopTracing(ctx); err != nil {
		e.Logger.Error("telemetry shutdown failed", "error", err)
	}
	_ = e.closeLog.Close()
}

// Run loads configuration, starts all modules, and blocks until ctx is
// cancelled or a shutdown signal is received.
func Run(ctx context.Context, params RunParams) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := Setup(ctx, params)
	if err != nil {
		return err
	}
	defer env.Close()

	rt, err := Build(env.Config, env.Logger, BuildOptions{})
	if err != nil {
		return fmt.Errorf("building application: %w", err)
	}
	return rt.App.Run(ctx)
}
