package agent

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/finagent/internal/ctxkeys"
	"github.com/BaSui01/finagent/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// QueryInput is one user question, optionally about an uploaded file.
type QueryInput struct {
	Query    string
	FilePath string
}

// ComposeQuestion appends the resolved file path on its own "File:" line.
func ComposeQuestion(in QueryInput) string {
	q := strings.TrimSpace(in.Query)
	if in.FilePath == "" {
		return q
	}
	return q + "\nFile: " + in.FilePath
}

// Runner produces an AgentResult for a question. *Executor implements it.
type Runner interface {
	Run(ctx context.Context, question string) (AgentResult, error)
}

// Record is what the history store keeps for one query.
type Record struct {
	ID        string
	RequestID string
	Query     string
	FilePath  string
	Response  string
	Source    string
	Steps     []Step
	Error     string
	Duration  time.Duration
	CreatedAt time.Time
}

// HistoryRecorder persists finished queries.
type HistoryRecorder interface {
	RecordQuery(ctx context.Context, rec Record) error
}

// RunObserver receives one event per query.
type RunObserver interface {
	ObserveAgentRun(outcome string, steps int, duration time.Duration)
}

// Run outcomes besides the Source* values.
const (
	OutcomeError = "error"
	OutcomeBusy  = "busy"
)

// ServiceConfig bounds concurrent runs.
type ServiceConfig struct {
	// MaxConcurrentRuns defaults to 1: a local model serves one prompt at a time.
	MaxConcurrentRuns int64

	// QueueTimeout bounds the wait for a free slot. Zero waits for the request context.
	QueueTimeout time.Duration
}

// Service answers queries.
type Service struct {
	runner   Runner
	sem      *semaphore.Weighted
	cfg      ServiceConfig
	history  HistoryRecorder
	observer RunObserver
	logger   *zap.Logger
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithHistory records every query.
func WithHistory(h HistoryRecorder) ServiceOption {
	return func(s *Service) { s.history = h }
}

// WithRunObserver reports run outcomes.
func WithRunObserver(o RunObserver) ServiceOption {
	return func(s *Service) { s.observer = o }
}

// NewService creates a Service.
func NewService(runner Runner, cfg ServiceConfig, logger *zap.Logger, opts ...ServiceOption) *Service {
	if cfg.MaxConcurrentRuns <= 0 {
		cfg.MaxConcurrentRuns = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		runner: runner,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrentRuns),
		cfg:    cfg,
		logger: logger.With(zap.String("component", "agent_service")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query runs the agent for in and normalizes its result. Errors are
// *types.Error for bad input and a busy agent; anything the run itself
// returns is passed through.
func (s *Service) Query(ctx context.Context, in QueryInput) (Response, error) {
	if strings.TrimSpace(in.Query) == "" {
		return Response{}, types.NewError(types.ErrInvalidRequest, "query is required").
			WithHTTPStatus(http.StatusBadRequest)
	}

	if err := s.acquire(ctx); err != nil {
		s.observe(OutcomeBusy, 0, 0)
		return Response{}, types.NewError(types.ErrAgentBusy, "agent is busy, try again later").
			WithCause(err).
			WithHTTPStatus(http.StatusServiceUnavailable).
			WithRetryable(true)
	}
	defer s.sem.Release(1)

	runID := uuid.NewString()
	ctx = ctxkeys.WithRunID(ctx, runID)
	requestID, _ := ctxkeys.RequestID(ctx)
	logger := s.logger.With(zap.String("run_id", runID), zap.String("request_id", requestID))

	start := s.now()
	result, err := s.runner.Run(ctx, ComposeQuestion(in))
	elapsed := s.now().Sub(start)

	rec := Record{
		ID:        runID,
		RequestID: requestID,
		Query:     in.Query,
		FilePath:  in.FilePath,
		Duration:  elapsed,
		CreatedAt: start,
	}

	if err != nil {
		logger.Error("agent run failed", zap.Error(err), zap.Duration("duration", elapsed))
		rec.Source = OutcomeError
		rec.Error = err.Error()
		s.record(ctx, rec, logger)
		s.observe(OutcomeError, 0, elapsed)
		return Response{}, err
	}

	resp, source := NormalizeWithSource(result)
	steps := StepsOf(result)
	if source == SourceFallback {
		logger.Warn("unrecognized agent result", zap.String("type", typeName(result)))
	}
	logger.Info("query answered",
		zap.String("source", source),
		zap.Int("steps", len(steps)),
		zap.Duration("duration", elapsed),
	)

	rec.Response = resp.Response
	rec.Source = source
	rec.Steps = steps
	s.record(ctx, rec, logger)
	s.observe(source, len(steps), elapsed)
	return resp, nil
}

func (s *Service) acquire(ctx context.Context) error {
	if s.cfg.QueueTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.QueueTimeout)
		defer cancel()
	}
	return s.sem.Acquire(ctx, 1)
}

func (s *Service) record(ctx context.Context, rec Record, logger *zap.Logger) {
	if s.history == nil {
		return
	}
	// The answer is already computed; a cancelled client should not lose the record.
	if err := s.history.RecordQuery(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("query history write failed", zap.Error(err))
	}
}

func (s *Service) observe(outcome string, steps int, d time.Duration) {
	if s.observer != nil {
		s.observer.ObserveAgentRun(outcome, steps, d)
	}
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", v), "*")
}
