package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/finagent/internal/ctxkeys"
	"github.com/BaSui01/finagent/llm/tools"
	"github.com/BaSui01/finagent/llm/tools/builtin"
	"github.com/BaSui01/finagent/testutil"
	"github.com/BaSui01/finagent/testutil/fixtures"
	"github.com/BaSui01/finagent/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newDispatcher(t *testing.T, recorder *mocks.Recorder) *tools.Dispatcher {
	t.Helper()
	reg := tools.NewRegistry(zap.NewNop())
	require.NoError(t, builtin.RegisterAll(reg, builtin.Dependencies{
		Time: builtin.TimeConfig{
			Now:      func() time.Time { return time.Date(2026, 5, 4, 14, 7, 0, 0, time.UTC) },
			Location: time.UTC,
		},
		Files: builtin.FileConfig{UploadDir: t.TempDir()},
	}))
	reg.Freeze()
	var opts []tools.DispatcherOption
	if recorder != nil {
		opts = append(opts, tools.WithObserver(recorder))
	}
	return tools.NewDispatcher(reg, zap.NewNop(), opts...)
}

func newExecutor(t *testing.T, provider *mocks.ScriptedProvider, cfg Config, opts ...ExecutorOption) *Executor {
	t.Helper()
	e, err := NewExecutor(provider, newDispatcher(t, nil), cfg, zap.NewNop(), opts...)
	require.NoError(t, err)
	return e
}

func TestExecutor_FinalAnswerText(t *testing.T) {
	provider := mocks.NewScriptedProvider(fixtures.FinalAnswer("I know this", "Hello!"))
	e := newExecutor(t, provider, DefaultConfig())

	res, err := e.Run(testutil.TestContext(t), "Say hello")
	require.NoError(t, err)
	assert.Equal(t, Finished{Output: "Hello!"}, res)

	prompts := provider.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Question: Say hello\n")
	assert.Contains(t, prompts[0], "Time: Useful for when you need to know the current time\nConcept Explainer: Explain a finance concept simply.\n")
	assert.Contains(t, prompts[0], "Available tool names: [Time, Concept Explainer, Calculator, Stock Price, CSV Summary, PDF Reader, Final Answer]")
}

func TestExecutor_RequestParameters(t *testing.T) {
	provider := mocks.NewScriptedProvider(fixtures.FinalAnswer("done", "ok"))
	cfg := DefaultConfig()
	cfg.Model = "mistral-7b-instruct"
	e := newExecutor(t, provider, cfg)

	_, err := e.Run(context.Background(), "q")
	require.NoError(t, err)

	calls := provider.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "mistral-7b-instruct", calls[0].Model)
	assert.Equal(t, []string{"\nObservation:"}, calls[0].Stop)
	assert.InDelta(t, 0.3, calls[0].Temperature, 1e-6)
	assert.Equal(t, 1024, calls[0].MaxTokens)
	require.Len(t, calls[0].Messages, 1)
	assert.Equal(t, "user", string(calls[0].Messages[0].Role))
}

func TestExecutor_TraceIDFromContext(t *testing.T) {
	provider := mocks.NewScriptedProvider(fixtures.FinalAnswer("done", "ok"), fixtures.FinalAnswer("done", "ok"))
	e := newExecutor(t, provider, DefaultConfig())

	ctx := ctxkeys.WithRunID(context.Background(), "run-3")
	_, err := e.Run(ctx, "q")
	require.NoError(t, err)

	_, err = e.Run(ctxkeys.WithTraceID(ctx, "4bf92f3577b34da6a3ce929d0e0e4736"), "q")
	require.NoError(t, err)

	calls := provider.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "run-3", calls[0].TraceID)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", calls[1].TraceID)
}

func TestExecutor_ToolThenFinalAnswer(t *testing.T) {
	provider := mocks.NewScriptedProvider(
		fixtures.Action("I need to explain compound interest", "Concept Explainer", "compound interest"),
		fixtures.FinalAnswer("I now know", "Compound interest is interest on both principal and accumulated interest."),
	)
	e := newExecutor(t, provider, DefaultConfig())

	res, err := e.Run(context.Background(), "What is compound interest?")
	require.NoError(t, err)

	fin, ok := res.(Finished)
	require.True(t, ok, "got %T", res)
	assert.Equal(t, "Compound interest is interest on both principal and accumulated interest.", fin.Output)
	require.Len(t, fin.Steps, 1)
	assert.Equal(t, tools.Invocation{ToolName: "Concept Explainer", Argument: "compound interest"}, fin.Steps[0].Invocation)

	prompts := provider.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1],
		"Action Input: compound interest\nObservation: Compound interest is interest on both principal and accumulated interest.\nThought: ")
}

func TestExecutor_IterationCapReturnsTrace(t *testing.T) {
	provider := mocks.NewScriptedProvider(
		fixtures.Action("math first", "Calculator", "2+2"),
		fixtures.Action("then the time", "Time", "now"),
		fixtures.FinalAnswer("never reached", "x"),
	)
	e := newExecutor(t, provider, DefaultConfig())

	res, err := e.Run(context.Background(), "q")
	require.NoError(t, err)

	trace, ok := res.(Trace)
	require.True(t, ok, "got %T", res)
	require.Len(t, trace.Steps, 2)
	assert.Equal(t, "4", trace.Steps[0].Observation.Text)
	assert.Equal(t, "02:07 PM", trace.Steps[1].Observation.Text)
	assert.Len(t, provider.Calls(), 2)
	assert.Equal(t, "02:07 PM", Normalize(res).Response)
}

func TestExecutor_FinalAnswerTool(t *testing.T) {
	provider := mocks.NewScriptedProvider(
		fixtures.Action("The tool's response is my answer", "Final Answer", "\"It is 4.\""),
	)
	e := newExecutor(t, provider, DefaultConfig())

	res, err := e.Run(context.Background(), "q")
	require.NoError(t, err)
	fin, ok := res.(Finished)
	require.True(t, ok)
	assert.Equal(t, "It is 4.", fin.Output)
	assert.Len(t, fin.Steps, 1)
}

func TestExecutor_ParseErrorsAreFedBack(t *testing.T) {
	provider := mocks.NewScriptedProvider(
		fixtures.MissingAction("hmm"),
		fixtures.FinalAnswer("fixed", "done"),
	)
	e := newExecutor(t, provider, DefaultConfig())

	res, err := e.Run(context.Background(), "q")
	require.NoError(t, err)
	fin := res.(Finished)
	assert.Equal(t, "done", fin.Output)
	require.Len(t, fin.Steps, 1)
	assert.Equal(t, "_Exception", fin.Steps[0].Invocation.ToolName)
	assert.True(t, fin.Steps[0].Observation.IsError)

	assert.Contains(t, provider.Prompts()[1], "Observation: "+MissingActionMessage+"\nThought: ")
}

func TestExecutor_StrictParsing(t *testing.T) {
	provider := mocks.NewScriptedProvider(fixtures.MissingActionInput("Calculator"))
	cfg := DefaultConfig()
	cfg.StrictParsing = true
	e := newExecutor(t, provider, cfg)

	_, err := e.Run(context.Background(), "q")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, MissingActionInputMessage, perr.Observation)
}

func TestExecutor_UnknownToolRejectedAtBoundary(t *testing.T) {
	recorder := &mocks.Recorder{}
	provider := mocks.NewScriptedProvider(
		fixtures.Action("search", "Web Search", "AAPL news"),
		fixtures.Action("retry", "Stock Price", "AAPL"),
	)
	e, err := NewExecutor(provider, newDispatcher(t, recorder), DefaultConfig(), zap.NewNop())
	require.NoError(t, err)

	res, err := e.Run(context.Background(), "q")
	require.NoError(t, err)
	steps := res.(Trace).Steps
	require.Len(t, steps, 2)
	assert.Equal(t, tools.Observation{Text: "Web Search is not a recognized tool", IsError: true}, steps[0].Observation)
	assert.Equal(t, "The current price of AAPL is $175.2 (demo).", steps[1].Observation.Text)
	assert.Equal(t, []string{"Stock Price:ok"}, recorder.Events())
}

func TestExecutor_ProviderError(t *testing.T) {
	boom := errors.New("model crashed")
	provider := mocks.NewScriptedProvider().WithErrorAt(0, boom)
	e := newExecutor(t, provider, DefaultConfig())

	res, err := e.Run(context.Background(), "q")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "iteration 1")
}

func TestExecutor_Cancelled(t *testing.T) {
	provider := mocks.NewScriptedProvider(fixtures.FinalAnswer("a", "b"))
	e := newExecutor(t, provider, DefaultConfig())

	_, err := e.Run(testutil.CancelledContext(), "q")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, provider.Calls())
}

func TestNewExecutor_Validation(t *testing.T) {
	_, err := NewExecutor(nil, newDispatcher(t, nil), DefaultConfig(), nil)
	assert.Error(t, err)

	_, err = NewExecutor(mocks.NewScriptedProvider(), nil, DefaultConfig(), nil)
	assert.Error(t, err)

	_, err = NewExecutor(mocks.NewScriptedProvider(), newDispatcher(t, nil), Config{PromptTemplate: "{{"}, nil)
	assert.Error(t, err)
}

// markerTokenizer makes any prompt containing the marker look huge.
type markerTokenizer struct {
	marker string
	big    int
	small  int
}

func (m markerTokenizer) CountTokens(text string) (int, error) {
	if strings.Contains(text, m.marker) {
		return m.big, nil
	}
	return m.small, nil
}
func (m markerTokenizer) MaxTokens() int { return 100 }
func (m markerTokenizer) Name() string   { return "marker" }

func TestExecutor_TrimsScratchpadOldestFirst(t *testing.T) {
	provider := mocks.NewScriptedProvider(
		fixtures.Action("OLDMARK check", "Calculator", "1+1"),
		fixtures.Action("second", "Calculator", "2+2"),
		fixtures.FinalAnswer("done", "4"),
	)
	cfg := DefaultConfig()
	cfg.MaxIterations = 3
	cfg.ContextWindow = 100
	cfg.MaxTokens = 60
	e := newExecutor(t, provider, cfg, WithTokenizer(markerTokenizer{marker: "OLDMARK", big: 90, small: 10}))

	res, err := e.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, res.(Finished).Steps, 2, "trimming only affects the prompt")

	prompts := provider.Prompts()
	require.Len(t, prompts, 3)
	assert.NotContains(t, prompts[1], "OLDMARK")
	assert.NotContains(t, prompts[2], "OLDMARK")
	assert.Contains(t, prompts[2], "Action Input: 2+2\nObservation: 4")
}

func TestExecutor_CompletionBudget(t *testing.T) {
	provider := mocks.NewScriptedProvider(fixtures.FinalAnswer("done", "ok"))
	cfg := DefaultConfig()
	cfg.ContextWindow = 100
	cfg.MaxTokens = 60
	e := newExecutor(t, provider, cfg, WithTokenizer(markerTokenizer{marker: "never", small: 70}))

	_, err := e.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 30, provider.Calls()[0].MaxTokens)
}
