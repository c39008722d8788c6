package tools

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingObserver) ObserveToolDispatch(tool, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, tool+":"+outcome)
}

func newTestDispatcher(t *testing.T, specs ...ToolSpec) (*Dispatcher, *recordingObserver) {
	t.Helper()
	r := NewRegistry(zap.NewNop())
	for _, s := range specs {
		require.NoError(t, r.Register(s))
	}
	r.Freeze()
	obs := &recordingObserver{}
	return NewDispatcher(r, zap.NewNop(), WithObserver(obs)), obs
}

func TestDispatch_KnownTool(t *testing.T) {
	d, obs := newTestDispatcher(t, ToolSpec{Name: "Final Answer", Handler: echo})

	got := d.Dispatch(context.Background(), Invocation{ToolName: "Final Answer", Argument: "42"})
	assert.Equal(t, Observation{Text: "42"}, got)
	assert.Equal(t, []string{"Final Answer:ok"}, obs.outcomes)
}

func TestDispatch_UnknownTool(t *testing.T) {
	d, obs := newTestDispatcher(t, ToolSpec{Name: "Echo", Handler: echo})

	got := d.Dispatch(context.Background(), Invocation{ToolName: "Foo", Argument: "x"})
	assert.True(t, got.IsError)
	assert.Equal(t, "Foo is not a recognized tool", got.Text)
	assert.Equal(t, []string{"Foo:unknown_tool"}, obs.outcomes)

	got = d.Dispatch(context.Background(), Invocation{ToolName: "Echo ", Argument: "x"})
	assert.True(t, got.IsError)
	assert.Equal(t, "Echo  is not a recognized tool", got.Text)
}

func TestDispatch_RecoversPanics(t *testing.T) {
	d, obs := newTestDispatcher(t, ToolSpec{
		Name:    "Broken",
		Handler: func(context.Context, string) string { panic("nil map") },
	})

	var got Observation
	require.NotPanics(t, func() {
		got = d.Dispatch(context.Background(), Invocation{ToolName: "Broken"})
	})
	assert.True(t, got.IsError)
	assert.Equal(t, "Broken failed: nil map", got.Text)
	assert.Equal(t, []string{"Broken:panic"}, obs.outcomes)
}

func TestDispatch_Timeout(t *testing.T) {
	d, _ := newTestDispatcher(t, ToolSpec{
		Name:    "Slow",
		Timeout: 10 * time.Millisecond,
		Handler: func(ctx context.Context, _ string) string {
			<-ctx.Done()
			return "late"
		},
	})

	got := d.Dispatch(context.Background(), Invocation{ToolName: "Slow"})
	assert.True(t, got.IsError)
	assert.Equal(t, "Slow timed out", got.Text)
}

func TestDispatch_CallerCancelIsNotTimeout(t *testing.T) {
	d, obs := newTestDispatcher(t, ToolSpec{
		Name:    "Slow",
		Timeout: time.Hour,
		Handler: func(ctx context.Context, _ string) string {
			<-ctx.Done()
			return "late"
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	got := d.Dispatch(ctx, Invocation{ToolName: "Slow"})
	assert.True(t, got.IsError)
	assert.Equal(t, "Slow was cancelled", got.Text)
	assert.Equal(t, []string{"Slow:" + OutcomeCancelled}, obs.outcomes)
}

func TestDispatch_MaxTimeoutCapsSpec(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.Register(ToolSpec{
		Name:    "Slow",
		Timeout: time.Hour,
		Handler: func(ctx context.Context, _ string) string {
			<-ctx.Done()
			return "late"
		},
	}))
	d := NewDispatcher(r, zap.NewNop(), WithMaxTimeout(20*time.Millisecond))

	start := time.Now()
	got := d.Dispatch(context.Background(), Invocation{ToolName: "Slow"})
	assert.Equal(t, "Slow timed out", got.Text)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDispatch_RateLimited(t *testing.T) {
	d, obs := newTestDispatcher(t, ToolSpec{
		Name:      "Limited",
		Handler:   echo,
		RateLimit: &RateLimit{PerSecond: 0.001, Burst: 1},
	})

	first := d.Dispatch(context.Background(), Invocation{ToolName: "Limited", Argument: "a"})
	second := d.Dispatch(context.Background(), Invocation{ToolName: "Limited", Argument: "b"})

	assert.False(t, first.IsError)
	assert.True(t, second.IsError)
	assert.Contains(t, second.Text, "rate limited")
	assert.Equal(t, []string{"Limited:ok", "Limited:rate_limited"}, obs.outcomes)
}

func TestDispatch_ToolErrorTextIsNotIsError(t *testing.T) {
	d, _ := newTestDispatcher(t, ToolSpec{
		Name:    "Calculator",
		Handler: func(context.Context, string) string { return "Invalid math expression." },
	})

	got := d.Dispatch(context.Background(), Invocation{ToolName: "Calculator", Argument: "__import__('os')"})
	assert.Equal(t, Observation{Text: "Invalid math expression."}, got)
}

func TestDispatch_TotalForAnyInput(t *testing.T) {
	d, _ := newTestDispatcher(t,
		ToolSpec{Name: "Echo", Handler: echo},
		ToolSpec{Name: "Panicky", Handler: func(_ context.Context, arg string) string {
			if len(arg)%2 == 1 {
				panic(arg)
			}
			return arg
		}},
	)

	rapid.Check(t, func(rt *rapid.T) {
		name := rapid.SampledFrom([]string{"Echo", "Panicky", "Missing", ""}).Draw(rt, "name")
		arg := rapid.String().Draw(rt, "arg")

		got := d.Dispatch(context.Background(), Invocation{ToolName: name, Argument: arg})
		switch {
		case name == "Echo":
			if got.IsError || got.Text != arg {
				rt.Fatalf("echo: got %+v", got)
			}
		case name == "Panicky" && len(arg)%2 == 1:
			if !got.IsError {
				rt.Fatalf("panic not reported: %+v", got)
			}
		case name == "Missing" || name == "":
			if !got.IsError {
				rt.Fatalf("unknown tool not reported: %+v", got)
			}
		}
	})
}

func TestUnknownTool(t *testing.T) {
	assert.Equal(t, Observation{Text: "Foo is not a recognized tool", IsError: true}, UnknownTool("Foo"))
}
