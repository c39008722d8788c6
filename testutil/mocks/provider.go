// Package mocks provides test doubles for the LLM provider and observers.
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/finagent/llm"
)

// ErrScriptExhausted is returned once every scripted reply has been used.
var ErrScriptExhausted = errors.New("mocks: scripted provider has no more replies")

// ScriptedProvider replays completions in order and records each request.
type ScriptedProvider struct {
	mu      sync.Mutex
	replies []string
	errs    map[int]error
	calls   []*llm.ChatRequest
	delay   time.Duration
	repeat  bool
	healthy bool
}

// NewScriptedProvider returns a provider that answers with replies in order.
func NewScriptedProvider(replies ...string) *ScriptedProvider {
	return &ScriptedProvider{
		replies: replies,
		errs:    map[int]error{},
		healthy: true,
	}
}

// WithErrorAt makes the call with the given 0-based index fail with err.
func (p *ScriptedProvider) WithErrorAt(call int, err error) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[call] = err
	return p
}

// WithDelay delays every completion, honouring context cancellation.
func (p *ScriptedProvider) WithDelay(d time.Duration) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
	return p
}

// Repeating keeps returning the last reply instead of ErrScriptExhausted.
func (p *ScriptedProvider) Repeating() *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repeat = true
	return p
}

// WithHealthy sets the HealthCheck result.
func (p *ScriptedProvider) WithHealthy(healthy bool) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy = healthy
	return p
}

// Completion implements llm.Provider.
func (p *ScriptedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	idx := len(p.calls)
	cp := *req
	p.calls = append(p.calls, &cp)
	delay := p.delay
	err := p.errs[idx]
	var (
		reply string
		ok    bool
	)
	switch {
	case idx < len(p.replies):
		reply, ok = p.replies[idx], true
	case p.repeat && len(p.replies) > 0:
		reply, ok = p.replies[len(p.replies)-1], true
	}
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrScriptExhausted
	}
	return &llm.ChatResponse{
		ID:       "scripted-" + time.Now().Format("150405.000000"),
		Provider: "scripted",
		Model:    req.Model,
		Choices: []llm.ChatChoice{{
			FinishReason: "stop",
			Message:      llm.Message{Role: llm.RoleAssistant, Content: reply},
		}},
		Usage:     llm.ChatUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		CreatedAt: time.Now(),
	}, nil
}

// HealthCheck implements llm.Provider.
func (p *ScriptedProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.healthy {
		return &llm.HealthStatus{Healthy: false}, errors.New("mocks: provider unhealthy")
	}
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

// Name implements llm.Provider.
func (p *ScriptedProvider) Name() string { return "scripted" }

// Calls returns copies of the recorded requests.
func (p *ScriptedProvider) Calls() []*llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*llm.ChatRequest(nil), p.calls...)
}

// Prompts returns the content of the last message of each request.
func (p *ScriptedProvider) Prompts() []string {
	calls := p.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		if n := len(c.Messages); n > 0 {
			out = append(out, c.Messages[n-1].Content)
		}
	}
	return out
}
