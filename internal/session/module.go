package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/cron"
	"github.com/flemzord/chatrelay/internal/metrics"
	"gopkg.in/yaml.v3"
)

// ModuleID is the ID the in-memory session module registers under.
const ModuleID = "session.memory"

// Service names published by the module.
const (
	ServiceName        = "session.store"
	SweeperServiceName = "session.sweeper"
)

func init() {
	core.RegisterModule(&Module{})
}

// ModuleConfig configures the in-memory session module.
type ModuleConfig struct {
	// IdleTimeout is how long a session may stay untouched before the
	// sweep removes it. Default: 60m.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// SweepSchedule is a cron expression for the idle sweep.
	// Default: every five minutes.
	SweepSchedule string `yaml:"sweep_schedule"`

	// SweepDisabled turns off the scheduled sweep. The admin API can still
	// trigger one.
	SweepDisabled bool `yaml:"sweep_disabled"`
}

func (c *ModuleConfig) defaults() {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.SweepSchedule == "" {
		c.SweepSchedule = cron.DefaultSweepSchedule
	}
}

// Module owns the process-wide Store and runs its idle sweep.
type Module struct {
	config    ModuleConfig
	store     *Store
	scheduler *cron.Scheduler
	metrics   *metrics.Metrics
	appCtx    *core.AppContext
	logger    *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return err
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.store = NewStore()
	ctx.RegisterService(ServiceName, m.store)
	ctx.RegisterService(SweeperServiceName, m)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	var errs []error
	if m.config.IdleTimeout < time.Minute {
		errs = append(errs, fmt.Errorf("session.memory: idle_timeout must be at least 1m, got %s", m.config.IdleTimeout))
	}
	if !m.config.SweepDisabled {
		if err := cron.ValidateSchedule(m.config.SweepSchedule); err != nil {
			errs = append(errs, fmt.Errorf("session.memory: sweep_schedule: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Start implements core.Starter.
func (m *Module) Start() error {
	if svc, ok := m.appCtx.Service(metrics.ServiceName); ok {
		m.metrics, _ = svc.(*metrics.Metrics)
	}
	m.metrics.TrackSessions(m.store.Len)

	if m.config.SweepDisabled {
		m.logger.Info("session sweep disabled")
		return nil
	}

	m.scheduler = cron.NewScheduler(m.logger)
	job := &cron.SessionSweepJob{
		Store:        m.store,
		Timeout:      m.config.IdleTimeout,
		Logger:       m.logger,
		ScheduleExpr: m.config.SweepSchedule,
		OnSwept:      m.metrics.RecordSwept,
	}
	if err := m.scheduler.RegisterJob(job); err != nil {
		return err
	}
	if err := m.scheduler.Start(); err != nil {
		return err
	}
	m.logger.Info("session sweep scheduled",
		"schedule", m.config.SweepSchedule,
		"idle_timeout", m.config.IdleTimeout,
	)
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.scheduler == nil {
		return nil
	}
	return m.scheduler.Stop(ctx)
}

// Sweep removes sessions idle past the configured timeout right now and
// returns how many were removed.
func (m *Module) Sweep() int {
	n := m.store.SweepIdle(m.config.IdleTimeout)
	m.metrics.RecordSwept(n)
	if n > 0 {
		m.logger.Info("swept idle sessions on demand", "count", n)
	}
	return n
}

// Store returns the store created during Provision.
func (m *Module) Store() *Store {
	return m.store
}

// IdleTimeout returns the configured idle threshold.
func (m *Module) IdleTimeout() time.Duration {
	return m.config.IdleTimeout
}

// Compile-time interface assertions.
var (
	_ core.Module       = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)
