package session

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/cron"
	"github.com/flemzord/chatrelay/internal/metrics"
	"gopkg.in/yaml.v3"
)

func decodeNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("unmarshal yaml: %v", err)
	}
	return doc.Content[0]
}

func testAppContext() *core.AppContext {
	return core.NewAppContext(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestModule_DefaultsWithoutConfig(t *testing.T) {
	t.Parallel()

	m := &Module{}
	ctx := testAppContext()
	if err := m.Provision(ctx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if m.IdleTimeout() != DefaultIdleTimeout {
		t.Errorf("IdleTimeout = %v, want %v", m.IdleTimeout(), DefaultIdleTimeout)
	}
	if m.config.SweepSchedule != cron.DefaultSweepSchedule {
		t.Errorf("SweepSchedule = %q, want %q", m.config.SweepSchedule, cron.DefaultSweepSchedule)
	}

	svc, ok := ctx.Service(ServiceName)
	if !ok {
		t.Fatal("store not registered as a service")
	}
	if svc.(*Store) != m.Store() {
		t.Error("registered store differs from module store")
	}
}

func TestModule_Configure(t *testing.T) {
	t.Parallel()

	m := &Module{}
	node := decodeNode(t, "idle_timeout: 15m\nsweep_schedule: \"@every 1m\"\n")
	if err := m.Configure(node); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if m.config.IdleTimeout != 15*time.Minute {
		t.Errorf("IdleTimeout = %v, want 15m", m.config.IdleTimeout)
	}
	if m.config.SweepSchedule != "@every 1m" {
		t.Errorf("SweepSchedule = %q", m.config.SweepSchedule)
	}
}

func TestModule_ValidateRejectsBadConfig(t *testing.T) {
	t.Parallel()

	m := &Module{config: ModuleConfig{IdleTimeout: time.Second, SweepSchedule: "not a schedule"}}
	err := m.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"idle_timeout", "sweep_schedule"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestModule_ValidateSkipsScheduleWhenDisabled(t *testing.T) {
	t.Parallel()

	m := &Module{config: ModuleConfig{IdleTimeout: time.Hour, SweepSchedule: "bogus", SweepDisabled: true}}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestModule_StartStop(t *testing.T) {
	t.Parallel()

	ctx := testAppContext()
	rec := metrics.New()
	ctx.RegisterService(metrics.ServiceName, rec)

	m := &Module{}
	if err := m.Provision(ctx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	m.Store().Create()

	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestModule_StartWithoutMetrics(t *testing.T) {
	t.Parallel()

	m := &Module{config: ModuleConfig{SweepDisabled: true}}
	if err := m.Provision(testAppContext()); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestModule_SweepOnDemand(t *testing.T) {
	t.Parallel()

	m := &Module{}
	ctx := testAppContext()
	if err := m.Provision(ctx); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	ft := &fakeTime{current: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	m.Store().now = ft.Now
	m.Store().Create()
	ft.Advance(2 * time.Hour)
	m.Store().Create()

	if n := m.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if _, ok := ctx.Service(SweeperServiceName); !ok {
		t.Error("sweeper not registered as a service")
	}
}
