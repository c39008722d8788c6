package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Handler processes a request and returns a response.
type Handler func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

// Middleware wraps a handler with additional functionality.
type Middleware func(next Handler) Handler

// Chain applies middlewares so that the first one is the outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// LoggingMiddleware logs request/response details.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			fields := []zap.Field{
				zap.String("model", req.Model),
				zap.Int("messages", len(req.Messages)),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("llm completion failed", append(fields, zap.Error(err))...)
				return resp, err
			}
			logger.Debug("llm completion", append(fields, zap.Int("total_tokens", resp.Usage.TotalTokens))...)
			return resp, nil
		}
	}
}

// TimeoutMiddleware adds timeout to requests. A request-level Timeout wins.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			d := timeout
			if req.Timeout > 0 {
				d = req.Timeout
			}
			if d <= 0 {
				return next(ctx, req)
			}
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, req)
		}
	}
}

// RecoveryMiddleware recovers from panics.
func RecoveryMiddleware(onPanic func(any)) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *ChatRequest) (resp *ChatResponse, err error) {
			defer func() {
				if r := recover(); r != nil {
					if onPanic != nil {
						onPanic(r)
					}
					err = &PanicError{Value: r}
				}
			}()
			return next(ctx, req)
		}
	}
}

// PanicError represents a recovered panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", e.Value)
}

// MetricsMiddleware collects request metrics.
func MetricsMiddleware(provider string, collector MetricsCollector) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			status := "success"
			if err != nil {
				status = "error"
			}
			collector.RecordLLMRequest(provider, req.Model, status, time.Since(start))
			if resp != nil {
				collector.RecordLLMTokens(provider, req.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
			}
			return resp, err
		}
	}
}

// MetricsCollector defines metrics collection interface.
type MetricsCollector interface {
	RecordLLMRequest(provider, model, status string, duration time.Duration)
	RecordLLMTokens(provider, model string, promptTokens, completionTokens int)
}

// wrappedProvider routes Completion through a middleware chain.
type wrappedProvider struct {
	Provider
	handler Handler
}

// Wrap returns a Provider whose Completion runs through middlewares.
func Wrap(p Provider, middlewares ...Middleware) Provider {
	if len(middlewares) == 0 {
		return p
	}
	return &wrappedProvider{
		Provider: p,
		handler:  Chain(p.Completion, middlewares...),
	}
}

func (w *wrappedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return w.handler(ctx, req)
}
