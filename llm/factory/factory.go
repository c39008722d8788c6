package factory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BaSui01/finagent/llm"
	"github.com/BaSui01/finagent/llm/providers/ollama"
	"github.com/BaSui01/finagent/llm/providers/openaicompat"
	"github.com/BaSui01/finagent/llm/retry"
	"go.uber.org/zap"
)

// ProviderConfig is the provider-neutral configuration accepted by
// NewProviderFromConfig. Fields a provider does not understand are ignored.
type ProviderConfig struct {
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	APIKey     string        `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Model      string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries int           `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`

	// Ollama only.
	ContextWindow int `json:"context_window,omitempty" yaml:"context_window,omitempty"`
	GPULayers     int `json:"gpu_layers,omitempty" yaml:"gpu_layers,omitempty"`
}

type constructor func(name string, cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error)

// OpenAI-compatible servers differ only in the name they report.
var constructors = map[string]constructor{
	"openaicompat": newOpenAICompat,
	"openai":       newOpenAICompat,
	"llamacpp":     newOpenAICompat,
	"vllm":         newOpenAICompat,
	"ollama":       newOllama,
}

// SupportedProviders lists the accepted names, sorted.
func SupportedProviders() []string {
	names := make([]string, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewProviderFromConfig creates the provider registered under name.
func NewProviderFromConfig(name string, cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	name = strings.ToLower(strings.TrimSpace(name))
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (supported: %s)", name, strings.Join(SupportedProviders(), ", "))
	}
	p, err := ctor(name, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", name, err)
	}
	logger.Info("llm provider created",
		zap.String("provider", p.Name()),
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model))
	return p, nil
}

func newOpenAICompat(name string, cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base_url is required")
	}
	policy := retry.DefaultRetryPolicy()
	if cfg.MaxRetries >= 0 {
		policy.MaxRetries = cfg.MaxRetries
	}
	return openaicompat.New(openaicompat.Config{
		ProviderName: name,
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout,
		Retry:        policy,
	}, logger), nil
}

func newOllama(_ string, cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	return ollama.New(ollama.Config{
		BaseURL:       cfg.BaseURL,
		DefaultModel:  cfg.Model,
		ContextWindow: cfg.ContextWindow,
		GPULayers:     cfg.GPULayers,
		Timeout:       cfg.Timeout,
	}, logger)
}
