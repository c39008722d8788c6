package tokenizer

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Tokenizer counts tokens for a piece of text.
type Tokenizer interface {
	// CountTokens returns the number of tokens in text.
	CountTokens(text string) (int, error)

	// MaxTokens returns the context window this tokenizer budgets against.
	MaxTokens() int

	// Name returns the tokenizer name.
	Name() string
}

// Kind selects a tokenizer implementation.
type Kind string

const (
	KindTiktoken  Kind = "tiktoken"
	KindEstimator Kind = "estimator"
)

// New builds a tokenizer. Tiktoken falls back to the estimator on first use
// when its BPE data cannot be loaded.
func New(kind Kind, encoding string, contextWindow int, logger *zap.Logger) Tokenizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	est := NewEstimatorTokenizer(contextWindow)
	if kind != KindTiktoken {
		return est
	}
	return &fallbackTokenizer{
		primary:  NewTiktokenTokenizer(encoding, contextWindow),
		fallback: est,
		logger:   logger.With(zap.String("component", "tokenizer")),
	}
}

// fallbackTokenizer uses primary until it errors once, then sticks to fallback.
type fallbackTokenizer struct {
	primary  Tokenizer
	fallback Tokenizer
	logger   *zap.Logger
	failed   atomic.Bool
}

func (f *fallbackTokenizer) CountTokens(text string) (int, error) {
	if !f.failed.Load() {
		n, err := f.primary.CountTokens(text)
		if err == nil {
			return n, nil
		}
		f.logger.Warn("tokenizer unavailable, using estimator",
			zap.String("tokenizer", f.primary.Name()), zap.Error(err))
		f.failed.Store(true)
	}
	return f.fallback.CountTokens(text)
}

func (f *fallbackTokenizer) MaxTokens() int { return f.primary.MaxTokens() }

func (f *fallbackTokenizer) Name() string {
	if f.failed.Load() {
		return f.fallback.Name()
	}
	return f.primary.Name()
}
