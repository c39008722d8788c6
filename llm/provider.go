package llm

import (
	"context"
	"time"

	"github.com/BaSui01/finagent/types"
)

// ErrorCode is the LLM-layer error code, aligned with HTTP status and retryability.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "LLM_INVALID_REQUEST"      // malformed parameters
	ErrUnauthorized        ErrorCode = "LLM_UNAUTHORIZED"         // bad or missing key
	ErrRateLimited         ErrorCode = "LLM_RATE_LIMITED"         // upstream throttling
	ErrModelNotFound       ErrorCode = "LLM_MODEL_NOT_FOUND"      // model not loaded
	ErrContextTooLong      ErrorCode = "LLM_CONTEXT_TOO_LONG"     // prompt exceeds n_ctx
	ErrUpstreamTimeout     ErrorCode = "LLM_UPSTREAM_TIMEOUT"     // upstream timeout
	ErrUpstreamError       ErrorCode = "LLM_UPSTREAM_ERROR"       // upstream 5xx / network
	ErrProviderUnavailable ErrorCode = "LLM_PROVIDER_UNAVAILABLE" // provider unreachable
)

type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Message is the chat message exchanged with providers.
type Message = types.Message

// Role aliases types.Role.
type Role = types.Role

const (
	RoleSystem    = types.RoleSystem
	RoleUser      = types.RoleUser
	RoleAssistant = types.RoleAssistant
)

type ChatRequest struct {
	TraceID     string            `json:"trace_id"`
	Model       string            `json:"model"`
	Messages    []Message         `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float32           `json:"temperature,omitempty"`
	TopP        float32           `json:"top_p,omitempty"`
	Stop        []string          `json:"stop,omitempty"`
	Timeout     time.Duration     `json:"timeout,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

type ChatChoice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Message      Message `json:"message"`
}

type ChatResponse struct {
	ID        string       `json:"id,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	Model     string       `json:"model"`
	Choices   []ChatChoice `json:"choices"`
	Usage     ChatUsage    `json:"usage,omitempty"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
}

// FirstContent returns the content of the first choice, or "" when there is none.
func (r *ChatResponse) FirstContent() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// HealthStatus is the result of a provider health probe.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// Provider is the text generator behind the reasoning loop.
type Provider interface {
	// Completion sends a chat request and returns the full response.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// HealthCheck performs a lightweight availability probe.
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name returns the provider identifier.
	Name() string
}
