// Package ollama adapts a local Ollama server to llm.Provider.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/finagent/llm"
	"github.com/BaSui01/finagent/llm/providers"
	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// Config configures the Ollama provider.
type Config struct {
	// BaseURL is the Ollama server, e.g. "http://127.0.0.1:11434". Empty uses OLLAMA_HOST.
	BaseURL string

	// DefaultModel is used when the request does not name one.
	DefaultModel string

	// ContextWindow maps to the num_ctx option. Zero keeps the model default.
	ContextWindow int

	// GPULayers maps to num_gpu. Zero keeps the server default.
	GPULayers int

	// Timeout bounds a single chat call. Zero means no client-side timeout.
	Timeout time.Duration
}

// Provider calls Ollama's /api/chat endpoint.
type Provider struct {
	cfg    Config
	client *api.Client
	logger *zap.Logger
}

var _ llm.Provider = (*Provider)(nil)

// New creates an Ollama provider.
func New(cfg Config, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var client *api.Client
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama base URL: %w", err)
		}
		client = api.NewClient(u, &http.Client{Timeout: cfg.Timeout})
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama client from environment: %w", err)
		}
	}

	return &Provider{
		cfg:    cfg,
		client: client,
		logger: logger.With(zap.String("component", "llm_provider"), zap.String("provider", "ollama")),
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string { return "ollama" }

// HealthCheck pings the server.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	err := p.client.Heartbeat(ctx)
	status := &llm.HealthStatus{Healthy: err == nil, Latency: time.Since(start)}
	if err != nil {
		return status, fmt.Errorf("ollama heartbeat failed: %w", err)
	}
	return status, nil
}

// Completion performs a non-streaming chat call.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := providers.ChooseModel(req, p.cfg.DefaultModel, "llama3")
	stream := false
	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: convertMessages(req.Messages),
		Options:  p.options(req),
		Stream:   &stream,
	}

	var (
		content strings.Builder
		final   api.ChatResponse
	)
	err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		if resp.Done {
			final = resp
		}
		return nil
	})
	if err != nil {
		return nil, p.mapError(err)
	}

	p.logger.Debug("ollama chat done",
		zap.String("model", model),
		zap.String("done_reason", final.DoneReason),
		zap.Int("prompt_eval_count", final.PromptEvalCount),
		zap.Int("eval_count", final.EvalCount),
	)

	return &llm.ChatResponse{
		Provider: p.Name(),
		Model:    model,
		Choices: []llm.ChatChoice{{
			FinishReason: final.DoneReason,
			Message:      llm.Message{Role: llm.RoleAssistant, Content: content.String()},
		}},
		Usage: llm.ChatUsage{
			PromptTokens:     final.PromptEvalCount,
			CompletionTokens: final.EvalCount,
			TotalTokens:      final.PromptEvalCount + final.EvalCount,
		},
		CreatedAt: final.CreatedAt,
	}, nil
}

func (p *Provider) options(req *llm.ChatRequest) map[string]any {
	opts := map[string]any{}
	if req.Temperature > 0 {
		opts["temperature"] = req.Temperature
	}
	if req.TopP > 0 {
		opts["top_p"] = req.TopP
	}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	if len(req.Stop) > 0 {
		opts["stop"] = req.Stop
	}
	if p.cfg.ContextWindow > 0 {
		opts["num_ctx"] = p.cfg.ContextWindow
	}
	if p.cfg.GPULayers > 0 {
		opts["num_gpu"] = p.cfg.GPULayers
	}
	return opts
}

func (p *Provider) mapError(err error) error {
	var se api.StatusError
	if errors.As(err, &se) {
		msg := se.ErrorMessage
		if msg == "" {
			msg = se.Status
		}
		return providers.MapHTTPError(se.StatusCode, msg, p.Name())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return providers.UpstreamError(err, p.Name())
}

func convertMessages(msgs []llm.Message) []api.Message {
	out := make([]api.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, api.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}
