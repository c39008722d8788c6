package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/finagent/internal/ctxkeys"
	"github.com/BaSui01/finagent/llm"
	"github.com/BaSui01/finagent/llm/tokenizer"
	"github.com/BaSui01/finagent/llm/tools"
	"github.com/BaSui01/finagent/types"
	"go.uber.org/zap"
)

// DefaultStop ends a completion before the model invents an observation.
const DefaultStop = "\nObservation:"

// Config controls the reasoning loop and generation parameters.
type Config struct {
	Model          string
	MaxIterations  int
	Temperature    float32
	MaxTokens      int
	ContextWindow  int
	Stop           []string
	PromptTemplate string

	// StrictParsing returns parse errors instead of sending them back to the model.
	StrictParsing bool

	// Timeout bounds a single completion. Zero leaves it to the provider.
	Timeout time.Duration
}

// DefaultConfig mirrors a small local model: two iterations, n_ctx 1024.
func DefaultConfig() Config {
	return Config{
		MaxIterations: 2,
		Temperature:   0.3,
		MaxTokens:     1024,
		ContextWindow: 1024,
		Stop:          []string{DefaultStop},
	}
}

// Executor runs the ReAct loop against one provider and dispatcher.
type Executor struct {
	provider   llm.Provider
	dispatcher *tools.Dispatcher
	prompt     *Prompt
	tokenizer  tokenizer.Tokenizer
	cfg        Config
	logger     *zap.Logger

	toolList  string
	toolNames string
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithTokenizer enables scratchpad trimming to fit the context window.
func WithTokenizer(t tokenizer.Tokenizer) ExecutorOption {
	return func(e *Executor) { e.tokenizer = t }
}

// NewExecutor creates an executor. The tool list in the prompt is taken from
// the dispatcher's registry once, at construction.
func NewExecutor(provider llm.Provider, dispatcher *tools.Dispatcher, cfg Config, logger *zap.Logger, opts ...ExecutorOption) (*Executor, error) {
	if provider == nil {
		return nil, errors.New("agent: provider is required")
	}
	if dispatcher == nil {
		return nil, errors.New("agent: dispatcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 2
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if len(cfg.Stop) == 0 {
		cfg.Stop = []string{DefaultStop}
	}

	prompt, err := NewPrompt(cfg.PromptTemplate)
	if err != nil {
		return nil, err
	}

	e := &Executor{
		provider:   provider,
		dispatcher: dispatcher,
		prompt:     prompt,
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "react_executor")),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.toolList, e.toolNames = DescribeTools(dispatcher.Registry().Specs())
	return e, nil
}

// Run answers question. It returns Finished when the model gives a final
// answer and Trace when the iteration cap is reached first. Provider and
// rendering failures are returned as errors.
func (e *Executor) Run(ctx context.Context, question string) (AgentResult, error) {
	runID, _ := ctxkeys.RunID(ctx)
	logger := e.logger.With(zap.String("run_id", runID))

	var steps []Step
	for i := 1; i <= e.cfg.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := e.next(ctx, runID, question, steps, logger)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i, err)
		}

		decision, err := Parse(text)
		if err != nil {
			var perr *ParseError
			if e.cfg.StrictParsing || !errors.As(err, &perr) {
				return nil, err
			}
			logger.Debug("unparseable model output", zap.Int("iteration", i), zap.Error(err))
			steps = append(steps, Step{
				Invocation:  tools.Invocation{ToolName: "_Exception", Argument: perr.Observation},
				Observation: tools.Observation{Text: perr.Observation, IsError: true},
				Log:         text,
			})
			continue
		}

		switch d := decision.(type) {
		case Finish:
			logger.Info("agent finished", zap.Int("iterations", i))
			return Finished{Output: d.Output, Steps: steps}, nil

		case Act:
			var obs tools.Observation
			if d.Tool.Known() {
				obs = e.dispatcher.Dispatch(ctx, d.Invocation)
			} else {
				// Names outside the fixed set never reach the registry.
				obs = tools.UnknownTool(d.Invocation.ToolName)
			}
			logger.Debug("tool step",
				zap.Int("iteration", i),
				zap.String("tool", d.Invocation.ToolName),
				zap.Bool("is_error", obs.IsError),
			)
			steps = append(steps, Step{Invocation: d.Invocation, Observation: obs, Log: d.Log})

			if d.Tool == tools.ToolFinalAnswer && !obs.IsError {
				logger.Info("agent finished", zap.Int("iterations", i))
				return Finished{Output: obs.Text, Steps: steps}, nil
			}
		}
	}

	logger.Warn("iteration cap reached", zap.Int("max_iterations", e.cfg.MaxIterations))
	return Trace{Steps: steps}, nil
}

func (e *Executor) next(ctx context.Context, runID, question string, steps []Step, logger *zap.Logger) (string, error) {
	prompt, promptTokens, err := e.render(question, steps, logger)
	if err != nil {
		return "", err
	}

	traceID, ok := ctxkeys.TraceID(ctx)
	if !ok {
		traceID = runID
	}
	req := &llm.ChatRequest{
		TraceID:     traceID,
		Model:       e.cfg.Model,
		Messages:    []llm.Message{types.NewUserMessage(prompt)},
		MaxTokens:   e.completionBudget(promptTokens),
		Temperature: e.cfg.Temperature,
		Stop:        e.cfg.Stop,
		Timeout:     e.cfg.Timeout,
	}
	resp, err := e.provider.Completion(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.FirstContent(), nil
}

// render fills the prompt, dropping the oldest steps from the scratchpad
// while it is over the prompt budget.
func (e *Executor) render(question string, steps []Step, logger *zap.Logger) (string, int, error) {
	budget := e.promptBudget()
	shown := steps
	for {
		text, err := e.prompt.Render(PromptData{
			Input:      question,
			Tools:      e.toolList,
			ToolNames:  e.toolNames,
			Scratchpad: Scratchpad(shown),
		})
		if err != nil {
			return "", 0, err
		}
		if budget <= 0 {
			return text, 0, nil
		}
		n, err := e.tokenizer.CountTokens(text)
		if err != nil {
			logger.Warn("token count failed, sending untrimmed prompt", zap.Error(err))
			return text, 0, nil
		}
		if n <= budget || len(shown) == 0 {
			if dropped := len(steps) - len(shown); dropped > 0 {
				logger.Debug("scratchpad trimmed", zap.Int("dropped_steps", dropped), zap.Int("prompt_tokens", n))
			}
			return text, n, nil
		}
		shown = shown[1:]
	}
}

// promptBudget reserves room for the completion: MaxTokens, but never more
// than half the window. Zero disables trimming.
func (e *Executor) promptBudget() int {
	if e.tokenizer == nil || e.cfg.ContextWindow <= 0 {
		return 0
	}
	return e.cfg.ContextWindow - min(e.cfg.MaxTokens, e.cfg.ContextWindow/2)
}

func (e *Executor) completionBudget(promptTokens int) int {
	if promptTokens <= 0 || e.cfg.ContextWindow <= 0 {
		return e.cfg.MaxTokens
	}
	if left := e.cfg.ContextWindow - promptTokens; left > 0 && left < e.cfg.MaxTokens {
		return left
	}
	return e.cfg.MaxTokens
}
