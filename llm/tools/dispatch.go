package tools

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Invocation is one tool call requested by the reasoning loop.
type Invocation struct {
	ToolName string `json:"tool_name"`
	Argument string `json:"argument"`
}

// Observation is what the reasoning loop sees after a call.
type Observation struct {
	Text    string `json:"text"`
	IsError bool   `json:"is_error"`
}

// Dispatch outcomes reported to a DispatchObserver.
const (
	OutcomeOK          = "ok"
	OutcomeUnknown     = "unknown_tool"
	OutcomePanic       = "panic"
	OutcomeTimeout     = "timeout"
	OutcomeCancelled   = "cancelled"
	OutcomeRateLimited = "rate_limited"
)

// DispatchObserver receives one event per dispatch.
type DispatchObserver interface {
	ObserveToolDispatch(tool, outcome string, duration time.Duration)
}

// UnknownTool is the observation for a name that matches no tool.
func UnknownTool(name string) Observation {
	return Observation{Text: (&UnknownToolError{Name: name}).Error(), IsError: true}
}

// Dispatcher executes invocations against a Registry.
type Dispatcher struct {
	registry *Registry
	logger   *zap.Logger
	observer DispatchObserver
	tracer   trace.Tracer
	maxTime  time.Duration
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithObserver sets the dispatch observer.
func WithObserver(o DispatchObserver) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) { d.tracer = t }
}

// WithMaxTimeout caps every tool's own Timeout. Zero leaves them as registered.
func WithMaxTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) { disp.maxTime = d }
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		registry: registry,
		logger:   logger.With(zap.String("component", "tool_dispatcher")),
		tracer:   otel.Tracer("github.com/BaSui01/finagent/llm/tools"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the underlying registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch runs inv and never fails: every problem becomes an error Observation.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation) Observation {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "tool.dispatch", trace.WithAttributes(
		attribute.String("tool.name", inv.ToolName),
		attribute.Int("tool.argument_length", len(inv.Argument)),
	))
	defer span.End()

	obs, outcome := d.dispatch(ctx, inv)

	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.String("tool.outcome", outcome),
		attribute.Bool("tool.is_error", obs.IsError),
	)
	if outcome != OutcomeOK {
		span.SetStatus(codes.Error, outcome)
	}
	if d.observer != nil {
		d.observer.ObserveToolDispatch(inv.ToolName, outcome, elapsed)
	}

	fields := []zap.Field{
		zap.String("tool", inv.ToolName),
		zap.String("outcome", outcome),
		zap.Bool("is_error", obs.IsError),
		zap.Duration("duration", elapsed),
	}
	if outcome == OutcomeOK {
		d.logger.Debug("tool dispatched", fields...)
	} else {
		d.logger.Warn("tool dispatch failed", fields...)
	}
	return obs
}

func (d *Dispatcher) dispatch(ctx context.Context, inv Invocation) (Observation, string) {
	spec, err := d.registry.Lookup(inv.ToolName)
	if err != nil {
		return UnknownTool(inv.ToolName), OutcomeUnknown
	}

	if !d.registry.allow(spec.Name) {
		return Observation{Text: fmt.Sprintf("%s is rate limited, try again later", spec.Name), IsError: true}, OutcomeRateLimited
	}

	return d.invoke(ctx, spec, inv.Argument)
}

type handlerResult struct {
	text     string
	panicked bool
	value    any
	stack    []byte
}

func (d *Dispatcher) invoke(ctx context.Context, spec ToolSpec, argument string) (Observation, string) {
	timeout := spec.Timeout
	if d.maxTime > 0 && timeout > d.maxTime {
		timeout = d.maxTime
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so the goroutine can always exit, even after a timeout.
	done := make(chan handlerResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- handlerResult{panicked: true, value: r, stack: debug.Stack()}
			}
		}()
		done <- handlerResult{text: spec.Handler(execCtx, argument)}
	}()

	select {
	case res := <-done:
		if res.panicked {
			d.logger.Error("tool handler panicked",
				zap.String("tool", spec.Name),
				zap.Any("panic", res.value),
				zap.ByteString("stack", res.stack),
			)
			return Observation{Text: fmt.Sprintf("%s failed: %v", spec.Name, res.value), IsError: true}, OutcomePanic
		}
		return Observation{Text: res.text}, OutcomeOK
	case <-execCtx.Done():
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Observation{Text: fmt.Sprintf("%s was cancelled", spec.Name), IsError: true}, OutcomeCancelled
		}
		return Observation{Text: fmt.Sprintf("%s timed out", spec.Name), IsError: true}, OutcomeTimeout
	}
}
