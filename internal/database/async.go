package database

import (
	"context"
	"time"

	"github.com/BaSui01/finagent/agent"
	"github.com/BaSui01/finagent/internal/pool"
)

// AsyncRecorder writes history on a worker pool so a query never waits on
// the database. A full queue drops the record and returns pool.ErrPoolFull.
type AsyncRecorder struct {
	next    agent.HistoryRecorder
	pool    *pool.WorkerPool
	timeout time.Duration
}

var _ agent.HistoryRecorder = (*AsyncRecorder)(nil)

// NewAsyncRecorder wraps next. timeout bounds one write, default 5s.
func NewAsyncRecorder(next agent.HistoryRecorder, p *pool.WorkerPool, timeout time.Duration) *AsyncRecorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AsyncRecorder{next: next, pool: p, timeout: timeout}
}

// RecordQuery queues the write.
func (a *AsyncRecorder) RecordQuery(_ context.Context, rec agent.Record) error {
	return a.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		return a.next.RecordQuery(ctx, rec)
	})
}
