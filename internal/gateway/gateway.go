// Package gateway serves the chat relay over HTTP: the chat routes used by
// the browser and terminal clients, an incremental WebSocket route, health
// and metrics, and an authenticated admin API. It binds to loopback by
// default and follows the module system pattern.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flemzord/chatrelay/internal/chat"
	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/metrics"
	"github.com/flemzord/chatrelay/internal/provider"
	"github.com/flemzord/chatrelay/internal/session"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Chatter is the part of chat.Orchestrator the gateway serves.
type Chatter interface {
	Turn(ctx context.Context, req chat.Request) (chat.Response, error)
	TurnStream(ctx context.Context, req chat.Request, onFragment func(string) error) (chat.Response, error)
	ListModels(ctx context.Context) []provider.Model
	History(id string) (session.Session, bool)
	ClearHistory(id string)
	DeleteSession(id string) bool
	Sessions() []session.Info
	ProviderName() string
}

// Sweeper runs an idle sweep on demand.
type Sweeper interface {
	Sweep() int
}

// Counter reports how many sessions are live.
type Counter interface {
	Len() int
}

// Gateway is the HTTP gateway module. It is a leaf module; nothing imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	addr      net.Addr
	startedAt time.Time

	// Resolved lazily at Start() via service registry.
	chat    Chatter
	sweeper Sweeper
	counter Counter
	health  provider.HealthChecker
	metrics *metrics.Metrics
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	if (g.config.Auth.BasicUser == "") != (g.config.Auth.BasicPass == "") {
		return errors.New("gateway: basic_user and basic_pass must be set together")
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	svc, ok := g.appCtx.Service(chat.ServiceName)
	if !ok {
		return fmt.Errorf("gateway: service %q not registered", chat.ServiceName)
	}
	c, ok := svc.(Chatter)
	if !ok {
		return fmt.Errorf("gateway: service %q has unexpected type %T", chat.ServiceName, svc)
	}
	g.chat = c

	// Optional services; the routes that need them degrade when missing.
	if svc, ok := g.appCtx.Service(session.SweeperServiceName); ok {
		g.sweeper, _ = svc.(Sweeper)
	}
	if svc, ok := g.appCtx.Service(session.ServiceName); ok {
		g.counter, _ = svc.(Counter)
	}
	if svc, ok := g.appCtx.Service(provider.ServiceName); ok {
		g.health, _ = svc.(provider.HealthChecker)
	}
	if svc, ok := g.appCtx.Service(metrics.ServiceName); ok {
		g.metrics, _ = svc.(*metrics.Metrics)
	}

	g.startedAt = time.Now()

	g.server = &http.Server{
		Handler:           g.buildRouter(),
		ReadHeaderTimeout: g.config.ReadTimeout,
		WriteTimeout:      g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}
	g.addr = ln.Addr()

	go func() {
		g.logger.Info("gateway listening", "addr", g.addr.String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

// Addr returns the address the server is listening on, or nil before Start.
func (g *Gateway) Addr() net.Addr {
	return g.addr
}

// Compile-time interface assertions.
var (
	_ core.Module       = (*Gateway)(nil)
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
	_ Chatter           = (*chat.Orchestrator)(nil)
)
