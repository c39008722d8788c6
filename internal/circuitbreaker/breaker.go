// Package circuitbreaker stops calling an upstream that keeps failing.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the breaker state.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until ResetTimeout has passed.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config configures a Breaker.
type Config struct {
	// Threshold is the number of consecutive failures that opens the breaker.
	Threshold int

	// Timeout bounds a single call.
	Timeout time.Duration

	// ResetTimeout is how long the breaker stays open before probing.
	ResetTimeout time.Duration

	// HalfOpenMaxCalls limits concurrent probes.
	HalfOpenMaxCalls int

	// IsFailure decides whether an error counts. nil counts every error.
	IsFailure func(error) bool

	// OnStateChange is called synchronously with the lock released.
	OnStateChange func(from, to State)
}

// DefaultConfig returns the defaults used for the quote source.
func DefaultConfig() Config {
	return Config{
		Threshold:        5,
		Timeout:          10 * time.Second,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

var (
	// ErrCircuitOpen is returned while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyCallsInHalfOpen is returned when all probe slots are taken.
	ErrTooManyCallsInHalfOpen = errors.New("too many calls while circuit breaker is half open")
)

// Breaker is a consecutive-failure circuit breaker. Safe for concurrent use.
type Breaker struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	halfOpenCalls int
}

// New creates a breaker. Zero config fields take DefaultConfig values.
func New(cfg Config, logger *zap.Logger) *Breaker {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "circuit_breaker")),
		now:    time.Now,
	}
}

// Call runs fn unless the breaker is open. A call whose ctx was cancelled
// says nothing about the upstream and is not counted. An expired ctx deadline is.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	err := fn(callCtx)
	if err != nil && callCtx.Err() != nil && ctx.Err() == nil {
		err = fmt.Errorf("call timed out after %s: %w", b.cfg.Timeout, err)
	}
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		b.release()
		return err
	}
	b.after(err)
	return err
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.halfOpenCalls = 0
	b.mu.Unlock()

	b.logger.Info("circuit breaker reset", zap.Stringer("from", from))
	b.notify(from, StateClosed)
}

func (b *Breaker) before() error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.halfOpenCalls = 1
		b.mu.Unlock()
		b.logger.Info("circuit breaker half open")
		b.notify(StateOpen, StateHalfOpen)
		return nil
	case StateHalfOpen:
		defer b.mu.Unlock()
		if b.halfOpenCalls >= b.cfg.HalfOpenMaxCalls {
			return ErrTooManyCallsInHalfOpen
		}
		b.halfOpenCalls++
		return nil
	default:
		b.mu.Unlock()
		return nil
	}
}

// release gives back a half-open probe slot without changing state.
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen && b.halfOpenCalls > 0 {
		b.halfOpenCalls--
	}
}

func (b *Breaker) after(err error) {
	failed := err != nil && (b.cfg.IsFailure == nil || b.cfg.IsFailure(err))

	b.mu.Lock()
	from := b.state
	to := from
	switch {
	case !failed && from == StateHalfOpen:
		to = StateClosed
		b.failures = 0
		b.halfOpenCalls = 0
	case !failed:
		b.failures = 0
	case from == StateHalfOpen:
		to = StateOpen
		b.openedAt = b.now()
		b.halfOpenCalls = 0
	case from == StateClosed:
		b.failures++
		if b.failures >= b.cfg.Threshold {
			to = StateOpen
			b.openedAt = b.now()
		}
	}
	b.state = to
	failures := b.failures
	b.mu.Unlock()

	if to == from {
		return
	}
	if to == StateOpen {
		b.logger.Warn("circuit breaker opened",
			zap.Int("failures", failures),
			zap.Int("threshold", b.cfg.Threshold),
			zap.Error(err),
		)
	} else {
		b.logger.Info("circuit breaker closed")
	}
	b.notify(from, to)
}

func (b *Breaker) notify(from, to State) {
	if b.cfg.OnStateChange != nil && from != to {
		b.cfg.OnStateChange(from, to)
	}
}
