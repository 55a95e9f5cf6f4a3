// Package metrics exposes relay counters both as Prometheus collectors on a
// private registry and as a cheap atomic snapshot for the admin status
// route. All recording methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServiceName is the name the metrics instance is published under.
const ServiceName = "metrics"

// Turn outcomes used as the "outcome" label.
const (
	OutcomeOK              = "ok"
	OutcomeCompletionError = "completion_error"
	OutcomeClientError     = "client_error"
	OutcomeInternalError   = "internal_error"
)

// Completion modes used as the "mode" label.
const (
	ModeBuffered    = "buffered"
	ModeStream      = "stream"
	ModeIncremental = "incremental"
)

// Metrics tracks relay-level counters.
type Metrics struct {
	registry *prometheus.Registry

	turns          *prometheus.CounterVec
	completionTime *prometheus.HistogramVec
	swept          prometheus.Counter
	modelFailures  prometheus.Counter

	sessionCount atomic.Pointer[func() int]

	okTurns      atomic.Int64
	failedTurns  atomic.Int64
	completions  atomic.Int64
	totalLatency atomic.Int64 // nanoseconds
	sweptTotal   atomic.Int64
}

// New creates a Metrics instance with its own registry. Go runtime and
// process collectors are registered alongside the relay collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatrelay_chat_turns_total",
			Help: "Chat turns handled, by outcome.",
		}, []string{"outcome"}),
		completionTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatrelay_completion_duration_seconds",
			Help:    "Time spent waiting on the completion backend.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"mode"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_sessions_swept_total",
			Help: "Sessions removed by the idle sweep.",
		}),
		modelFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_model_list_failures_total",
			Help: "Model listings that failed upstream and degraded to an empty list.",
		}),
	}

	active := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "chatrelay_sessions_active",
		Help: "Sessions currently held in memory.",
	}, func() float64 {
		if f := m.sessionCount.Load(); f != nil {
			return float64((*f)())
		}
		return 0
	})

	m.registry.MustRegister(
		m.turns,
		m.completionTime,
		m.swept,
		m.modelFailures,
		active,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// TrackSessions sets the function backing the active-sessions gauge.
func (m *Metrics) TrackSessions(count func() int) {
	if m == nil {
		return
	}
	m.sessionCount.Store(&count)
}

// RecordTurn records the outcome of one chat turn.
func (m *Metrics) RecordTurn(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.okTurns.Add(1)
	} else {
		m.failedTurns.Add(1)
	}
}

// ObserveCompletion records how long one backend call took.
func (m *Metrics) ObserveCompletion(mode string, latency time.Duration) {
	if m == nil {
		return
	}
	m.completionTime.WithLabelValues(mode).Observe(latency.Seconds())
	m.completions.Add(1)
	m.totalLatency.Add(int64(latency))
}

// RecordSwept adds n to the swept-sessions counter.
func (m *Metrics) RecordSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.Add(float64(n))
	m.sweptTotal.Add(int64(n))
}

// RecordModelListFailure counts a model listing that degraded to empty.
func (m *Metrics) RecordModelListFailure() {
	if m == nil {
		return
	}
	m.modelFailures.Inc()
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Snapshot returns a point-in-time view of the counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	completions := m.completions.Load()
	snap := Snapshot{
		Turns:       m.okTurns.Load(),
		Errors:      m.failedTurns.Load(),
		Completions: completions,
		Swept:       m.sweptTotal.Load(),
	}
	if completions > 0 {
		snap.AvgLatency = time.Duration(m.totalLatency.Load() / completions)
	}
	return snap
}

// Snapshot is a serializable point-in-time metrics view.
type Snapshot struct {
	Turns       int64         `json:"turns"`
	Errors      int64         `json:"errors"`
	Completions int64         `json:"completions"`
	Swept       int64         `json:"swept"`
	AvgLatency  time.Duration `json:"avg_latency_ns"`
}
