package mocks

import (
	"context"
	"sync"
	"time"
)

// Recorder captures observer callbacks as "a:b" strings. It satisfies the
// dispatch, quote and run observer interfaces.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

// ObserveToolDispatch records "tool:outcome".
func (r *Recorder) ObserveToolDispatch(tool, outcome string, _ time.Duration) {
	r.add(tool + ":" + outcome)
}

// ObserveQuoteLookup records "source:result".
func (r *Recorder) ObserveQuoteLookup(source, result string) {
	r.add(source + ":" + result)
}

// ObserveAgentRun records "run:outcome".
func (r *Recorder) ObserveAgentRun(outcome string, _ int, _ time.Duration) {
	r.add("run:" + outcome)
}

// Events returns a copy of what was recorded.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *Recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// FuncTool adapts a function with an invocation counter for handler tests.
type FuncTool struct {
	mu    sync.Mutex
	fn    func(ctx context.Context, arg string) string
	calls []string
}

// NewFuncTool wraps fn.
func NewFuncTool(fn func(ctx context.Context, arg string) string) *FuncTool {
	return &FuncTool{fn: fn}
}

// Handle records arg and calls fn.
func (f *FuncTool) Handle(ctx context.Context, arg string) string {
	f.mu.Lock()
	f.calls = append(f.calls, arg)
	f.mu.Unlock()
	return f.fn(ctx, arg)
}

// Calls returns the recorded arguments.
func (f *FuncTool) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
