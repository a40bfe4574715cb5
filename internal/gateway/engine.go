// Package gateway runs a prompt through the provider fallback sequence until one provider
// produces a non-empty answer.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nulzo/prism-relay/internal/llm"
	"github.com/nulzo/prism-relay/internal/router"
	"github.com/nulzo/prism-relay/internal/transport"
	"github.com/nulzo/prism-relay/pkg/api"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultSystemRole     = "You are a helpful AI assistant."
	DefaultAttemptTimeout = 30 * time.Second

	tracerName = "github.com/nulzo/prism-relay/internal/gateway"
)

// Dispatcher carries one provider request over whichever transport accepts it.
// *transport.Resolver satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *transport.Request) (*transport.Reply, error)
}

// Observer is notified after every attempt, successful or not.
type Observer interface {
	ObserveAttempt(ctx context.Context, attempt Attempt)
}

// RoutingRequest is one prompt to route. PreferredProvider, when set, replaces the
// policy's choice of first provider; the rest of the sequence is unchanged.
type RoutingRequest struct {
	Messages          []api.Message
	PreferredProvider llm.ProviderID
}

// Attempt records one provider try.
type Attempt struct {
	Provider  llm.ProviderID
	Model     string
	Transport string
	Kind      ErrorKind
	Err       error
	Latency   time.Duration
}

// Outcome is a successful run.
type Outcome struct {
	Text     string
	Provider llm.ProviderID
	Attempts []Attempt
}

type Engine struct {
	logger         *zap.Logger
	dispatcher     Dispatcher
	catalog        llm.Catalog
	policy         router.Policy
	tracer         trace.Tracer
	observer       Observer
	systemRole     string
	attemptTimeout time.Duration
}

type Option func(*Engine)

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithDefaultSystemRole sets the system message Generate uses when the caller passes none.
func WithDefaultSystemRole(role string) Option {
	return func(e *Engine) {
		if strings.TrimSpace(role) != "" {
			e.systemRole = role
		}
	}
}

// WithAttemptTimeout applies to providers that do not configure their own timeout.
func WithAttemptTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.attemptTimeout = d
		}
	}
}

func NewEngine(logger *zap.Logger, dispatcher Dispatcher, catalog llm.Catalog, policy router.Policy, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		logger:         logger,
		dispatcher:     dispatcher,
		catalog:        catalog,
		policy:         policy,
		tracer:         otel.Tracer(tracerName),
		systemRole:     DefaultSystemRole,
		attemptTimeout: DefaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate routes a single prompt and returns the winning text.
func (e *Engine) Generate(ctx context.Context, prompt, systemRole string) (string, error) {
	outcome, err := e.Execute(ctx, RoutingRequest{Messages: e.PromptMessages(prompt, systemRole)})
	if err != nil {
		return "", err
	}
	return outcome.Text, nil
}

// PromptMessages builds the system + user conversation Generate sends. A blank
// systemRole uses the engine default.
func (e *Engine) PromptMessages(prompt, systemRole string) []api.Message {
	if strings.TrimSpace(systemRole) == "" {
		systemRole = e.systemRole
	}
	return []api.Message{
		api.SystemMessage(systemRole),
		api.UserMessage(prompt),
	}
}

// Plan returns the provider sequence Execute would try for req.
func (e *Engine) Plan(req RoutingRequest) []llm.ProviderID {
	preferred := req.PreferredProvider
	if preferred == "" {
		preferred = e.policy.Preferred(api.UserText(req.Messages))
	}
	return e.policy.Sequence(preferred)
}

// Execute tries each provider of the plan in turn and returns on the first non-blank
// answer. When every provider fails the error is an *ExhaustedError; cancelling ctx
// aborts the run with ctx's error.
func (e *Engine) Execute(ctx context.Context, req RoutingRequest) (*Outcome, error) {
	messages := append([]api.Message(nil), req.Messages...)
	sequence := e.Plan(req)
	if len(sequence) == 0 {
		return nil, &ExhaustedError{}
	}

	ctx, span := e.tracer.Start(ctx, "gateway.Execute",
		trace.WithAttributes(attribute.String("gateway.preferred", string(sequence[0]))))
	defer span.End()

	attempts := make([]Attempt, 0, len(sequence))

	for _, id := range sequence {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "canceled")
			return nil, err
		}

		text, attempt := e.attempt(ctx, id, messages)
		attempts = append(attempts, attempt)

		if e.observer != nil {
			e.observer.ObserveAttempt(ctx, attempt)
		}

		if attempt.Err == nil {
			span.SetAttributes(attribute.String("gateway.provider", string(id)), attribute.Int("gateway.attempts", len(attempts)))
			return &Outcome{Text: text, Provider: id, Attempts: attempts}, nil
		}
	}

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "canceled")
		return nil, err
	}

	exhausted := &ExhaustedError{Attempts: attempts}
	span.RecordError(exhausted)
	span.SetStatus(codes.Error, ErrAllProvidersExhausted.Error())
	e.logger.Error("All providers failed", zap.Int("attempts", len(attempts)), zap.Error(exhausted.Unwrap()))

	return nil, exhausted
}

func (e *Engine) attempt(ctx context.Context, id llm.ProviderID, messages []api.Message) (string, Attempt) {
	ctx, span := e.tracer.Start(ctx, "gateway.attempt",
		trace.WithAttributes(attribute.String("gateway.provider", string(id))))
	defer span.End()

	start := time.Now()
	text, result := e.try(ctx, id, messages)
	result.Latency = time.Since(start)
	result.Provider = id

	log := e.logger.With(
		zap.String("provider", string(id)),
		zap.String("transport", result.Transport),
		zap.Duration("latency", result.Latency),
	)

	if result.Err != nil {
		result.Kind = Classify(result.Err)
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, string(result.Kind))
		log.Warn("Provider attempt failed", zap.String("kind", string(result.Kind)), zap.Error(result.Err))
		return "", result
	}

	span.SetAttributes(attribute.String("gateway.transport", result.Transport))
	log.Info("Provider attempt succeeded")
	return text, result
}

func (e *Engine) try(ctx context.Context, id llm.ProviderID, messages []api.Message) (string, Attempt) {
	cfg, err := e.catalog.Get(id)
	if err != nil {
		return "", Attempt{Err: err}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = e.attemptTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply, err := e.dispatcher.Dispatch(ctx, &transport.Request{Provider: cfg, Messages: messages})
	if err != nil {
		return "", Attempt{Model: cfg.Model, Transport: transport.TransportOf(err), Err: err}
	}

	result := Attempt{Model: cfg.Model, Transport: reply.Transport}

	text, err := reply.Decode(cfg.Protocol)
	if err != nil {
		result.Err = fmt.Errorf("%s: %w", id, err)
		return "", result
	}
	if strings.TrimSpace(text) == "" {
		result.Err = fmt.Errorf("%s: %w", id, ErrEmptyResponse)
		return "", result
	}

	return text, result
}
