package factory

import (
	"testing"

	"github.com/BaSui01/finagent/llm/providers/ollama"
	"github.com/BaSui01/finagent/llm/providers/openaicompat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProviderFromConfig_OpenAICompatible(t *testing.T) {
	for _, name := range []string{"openaicompat", "openai", "llamacpp", "vllm"} {
		t.Run(name, func(t *testing.T) {
			p, err := NewProviderFromConfig(name, ProviderConfig{
				BaseURL:    "http://127.0.0.1:8080",
				Model:      "mistral-7b-instruct",
				MaxRetries: 1,
			}, zap.NewNop())
			require.NoError(t, err)
			assert.Equal(t, name, p.Name())

			oc, ok := p.(*openaicompat.Provider)
			require.True(t, ok)
			assert.Equal(t, "mistral-7b-instruct", oc.Cfg.DefaultModel)
			assert.Equal(t, 1, oc.Cfg.Retry.MaxRetries)
		})
	}
}

func TestNewProviderFromConfig_NameIsNormalized(t *testing.T) {
	p, err := NewProviderFromConfig("  LlamaCPP ", ProviderConfig{BaseURL: "http://localhost:8080"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "llamacpp", p.Name())
}

func TestNewProviderFromConfig_Ollama(t *testing.T) {
	p, err := NewProviderFromConfig("ollama", ProviderConfig{
		BaseURL:       "http://127.0.0.1:11434",
		Model:         "mistral",
		ContextWindow: 1024,
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
	assert.IsType(t, &ollama.Provider{}, p)
}

func TestNewProviderFromConfig_Errors(t *testing.T) {
	_, err := NewProviderFromConfig("anthropic", ProviderConfig{}, nil)
	assert.ErrorContains(t, err, "unknown provider")
	assert.ErrorContains(t, err, "ollama")

	_, err = NewProviderFromConfig("llamacpp", ProviderConfig{}, nil)
	assert.ErrorContains(t, err, "base_url is required")

	_, err = NewProviderFromConfig("ollama", ProviderConfig{BaseURL: "://bad"}, nil)
	assert.Error(t, err)
}

func TestSupportedProviders(t *testing.T) {
	assert.Equal(t, []string{"llamacpp", "ollama", "openai", "openaicompat", "vllm"}, SupportedProviders())
}
