package app

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/flemzord/chatrelay/internal/chat"
	"github.com/flemzord/chatrelay/internal/config"
	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/metrics"
	"github.com/flemzord/chatrelay/internal/provider"
	"github.com/flemzord/chatrelay/internal/session"
)

// Runtime is a loaded but not yet started application.
type Runtime struct {
	App          *core.App
	Orchestrator *chat.Orchestrator
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// BuildOptions adjusts which configured modules are loaded.
type BuildOptions struct {
	// Exclude lists module IDs to skip even when configured, e.g. the
	// HTTP gateway when serving MCP over stdio.
	Exclude []string
}

// Build loads the configured modules and wires the orchestrator between
// the session store and the provider. Services resolve at Start, so the
// orchestrator is registered after LoadModules and before Start.
func Build(cfg *config.Config, logger *slog.Logger, opts BuildOptions) (*Runtime, error) {
	appCtx := core.NewAppContext(logger).WithModuleConfigs(cfg.Modules)

	m := metrics.New()
	appCtx.RegisterService(metrics.ServiceName, m)

	ids := slices.DeleteFunc(config.Resolve(cfg), func(id string) bool {
		return slices.Contains(opts.Exclude, id)
	})
	if !slices.Contains(ids, session.ModuleID) {
		// The store is required; an unconfigured session module runs
		// with its defaults.
		ids = append(ids, session.ModuleID)
	}

	application := core.NewApp(appCtx)
	if err := application.LoadModules(ids); err != nil {
		return nil, err
	}

	orch, err := wireOrchestrator(appCtx, logger, m)
	if err != nil {
		application.Stop()
		return nil, err
	}

	return &Runtime{App: application, Orchestrator: orch, Metrics: m, Logger: logger}, nil
}

func wireOrchestrator(appCtx *core.AppContext, logger *slog.Logger, m *metrics.Metrics) (*chat.Orchestrator, error) {
	svc, ok := appCtx.Service(session.ServiceName)
	if !ok {
		return nil, errors.New("app: session store not registered")
	}
	store, ok := svc.(*session.Store)
	if !ok {
		return nil, fmt.Errorf("app: service %q has unexpected type %T", session.ServiceName, svc)
	}

	svc, ok = appCtx.Service(provider.ServiceName)
	if !ok {
		return nil, errors.New("app: no provider module loaded")
	}
	p, ok := svc.(provider.Provider)
	if !ok {
		return nil, fmt.Errorf("app: service %q has unexpected type %T", provider.ServiceName, svc)
	}

	orch := chat.New(store, p, chat.WithLogger(logger.With("component", "chat")), chat.WithMetrics(m))
	appCtx.RegisterService(chat.ServiceName, orch)
	logger.Info("chat orchestrator wired", "provider", p.Name())
	return orch, nil
}
