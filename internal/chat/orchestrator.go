// Package chat runs chat turns: it resolves the conversation, records the
// user's message, forwards the full history to the completion backend and
// records the reply.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/chatrelay/internal/metrics"
	"github.com/flemzord/chatrelay/internal/provider"
	"github.com/flemzord/chatrelay/internal/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName is the name the orchestrator is published under.
const ServiceName = "chat.orchestrator"

const tracerName = "github.com/flemzord/chatrelay/internal/chat"

// SessionStore is the part of session.Store the orchestrator uses.
type SessionStore interface {
	Create() string
	Get(id string) (session.Session, bool)
	Append(id string, turn session.Turn) bool
	Clear(id string) bool
	Delete(id string) bool
	List() []session.Info
}

// Request is one inbound chat turn.
type Request struct {
	Model     string
	Messages  []provider.Message
	Stream    bool
	SessionID string
}

// Response is the outcome of a turn. SessionID is the session the turn was
// recorded in, which differs from the requested one when that was unknown.
type Response struct {
	Text      string
	SessionID string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithTracer sets the tracer. Default: the global tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithMetrics sets the metrics recorder. Default: none.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// Orchestrator holds no per-conversation state of its own; everything lives
// in the store.
//
// Session IDs sent by callers are advisory. A missing ID starts a new
// session, and an ID the store does not know (expired, swept, or never
// issued) silently starts a new one too. The response always carries the
// ID the turn was actually recorded in, so a client that stores it heals
// itself after a restart or sweep.
type Orchestrator struct {
	store    SessionStore
	provider provider.Provider
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates an orchestrator over store and p.
func New(store SessionStore, p provider.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		provider: p,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Turn runs one chat turn. With req.Stream set the backend is asked for a
// fragment stream, which is reassembled in arrival order before anything
// is returned or recorded; the caller sees the same Response either way.
func (o *Orchestrator) Turn(ctx context.Context, req Request) (Response, error) {
	mode := metrics.ModeBuffered
	if req.Stream {
		mode = metrics.ModeStream
	}
	return o.run(ctx, req, mode, nil)
}

// TurnStream runs a streaming turn and also hands every fragment to
// onFragment as it arrives. History and the returned Response are
// identical to Turn with Stream set. An error from onFragment aborts the
// turn like a backend failure.
func (o *Orchestrator) TurnStream(ctx context.Context, req Request, onFragment func(string) error) (Response, error) {
	return o.run(ctx, req, metrics.ModeIncremental, onFragment)
}

func (o *Orchestrator) run(ctx context.Context, req Request, mode string, onFragment func(string) error) (Response, error) {
	if len(req.Messages) == 0 {
		o.metrics.RecordTurn(metrics.OutcomeClientError)
		return Response{}, ErrNoMessages
	}

	ctx, span := o.tracer.Start(ctx, "chat.turn", trace.WithAttributes(
		attribute.String("chat.model", req.Model),
		attribute.String("chat.mode", mode),
		attribute.Int("chat.inbound_messages", len(req.Messages)),
	))
	defer span.End()

	id, err := o.resolveSession(req.SessionID)
	if err != nil {
		o.fail(span, metrics.OutcomeInternalError, err)
		return Response{}, err
	}
	span.SetAttributes(attribute.String("chat.session_id", id))

	current := req.Messages[len(req.Messages)-1]
	o.store.Append(id, session.Turn{Role: session.RoleUser, Content: current.Content})

	sess, ok := o.store.Get(id)
	if !ok {
		o.fail(span, metrics.OutcomeInternalError, ErrSessionUnavailable)
		return Response{}, ErrSessionUnavailable
	}

	text, err := o.complete(ctx, req.Model, toMessages(sess.History), mode, onFragment)
	if err != nil {
		cerr := &CompletionError{Err: err}
		o.fail(span, metrics.OutcomeCompletionError, cerr)
		o.logger.Warn("chat completion failed",
			"session_id", id,
			"model", req.Model,
			"error", err,
		)
		return Response{SessionID: id}, cerr
	}

	o.store.Append(id, session.Turn{Role: session.RoleAssistant, Content: text})
	o.metrics.RecordTurn(metrics.OutcomeOK)
	span.SetStatus(codes.Ok, "")
	o.logger.Debug("chat turn completed",
		"session_id", id,
		"model", req.Model,
		"mode", mode,
		"history_len", len(sess.History)+1,
	)
	return Response{Text: text, SessionID: id}, nil
}

// resolveSession returns a session ID that exists in the store.
func (o *Orchestrator) resolveSession(requested string) (string, error) {
	if requested != "" {
		if _, ok := o.store.Get(requested); ok {
			return requested, nil
		}
		o.logger.Debug("unknown session, starting a new one", "requested", requested)
	}

	id := o.store.Create()
	if _, ok := o.store.Get(id); !ok {
		return "", ErrSessionUnavailable
	}
	return id, nil
}

// complete calls the backend without holding any store lock.
func (o *Orchestrator) complete(
	ctx context.Context,
	model string,
	history []provider.Message,
	mode string,
	onFragment func(string) error,
) (string, error) {
	ctx, span := o.tracer.Start(ctx, "chat.completion", trace.WithAttributes(
		attribute.String("chat.provider", o.provider.Name()),
		attribute.Int("chat.history_len", len(history)),
	))
	defer span.End()

	start := o.now()
	defer func() { o.metrics.ObserveCompletion(mode, o.now().Sub(start)) }()

	req := provider.CompletionRequest{Model: model, Messages: history}

	if mode == metrics.ModeBuffered {
		resp, err := o.provider.Complete(ctx, req)
		if err != nil {
			span.RecordError(err)
			return "", err
		}
		return resp.Content, nil
	}

	chunks, err := o.provider.Stream(ctx, req)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	var (
		b         strings.Builder
		fragments int
	)
	for chunk := range chunks {
		if chunk.Err != nil {
			drain(chunks)
			span.RecordError(chunk.Err)
			return "", chunk.Err
		}
		if chunk.Content == "" {
			continue
		}
		fragments++
		b.WriteString(chunk.Content)
		if onFragment != nil {
			if err := onFragment(chunk.Content); err != nil {
				drain(chunks)
				return "", fmt.Errorf("deliver fragment: %w", err)
			}
		}
	}
	// A stream cut short by cancellation closes cleanly; do not record
	// the partial reply.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	span.SetAttributes(attribute.Int("chat.fragments", fragments))
	return b.String(), nil
}

// ListModels returns the backend's models. A backend failure degrades to
// an empty list and a warning.
func (o *Orchestrator) ListModels(ctx context.Context) []provider.Model {
	models, err := o.provider.ListModels(ctx)
	if err != nil {
		o.metrics.RecordModelListFailure()
		o.logger.Warn("listing models failed", "provider", o.provider.Name(), "error", err)
		return []provider.Model{}
	}
	if models == nil {
		return []provider.Model{}
	}
	return models
}

// History returns a snapshot of the session. The bool is false when the
// session does not exist.
func (o *Orchestrator) History(id string) (session.Session, bool) {
	return o.store.Get(id)
}

// ClearHistory empties the session's history. Unknown IDs are ignored.
func (o *Orchestrator) ClearHistory(id string) {
	o.store.Clear(id)
}

// DeleteSession removes the session and reports whether it existed.
func (o *Orchestrator) DeleteSession(id string) bool {
	return o.store.Delete(id)
}

// Sessions lists every live session, most recently active first.
func (o *Orchestrator) Sessions() []session.Info {
	return o.store.List()
}

// ProviderName returns the name of the completion backend.
func (o *Orchestrator) ProviderName() string {
	return o.provider.Name()
}

func (o *Orchestrator) fail(span trace.Span, outcome string, err error) {
	o.metrics.RecordTurn(outcome)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func toMessages(history []session.Turn) []provider.Message {
	msgs := make([]provider.Message, len(history))
	for i, t := range history {
		msgs[i] = provider.Message{Role: provider.MessageRole(t.Role), Content: t.Content}
	}
	return msgs
}

// drain consumes the rest of a stream so the producer can exit.
func drain(ch <-chan provider.StreamChunk) {
	go func() {
		for range ch {
		}
	}()
}
