// Package pool runs background tasks on a fixed set of workers with a
// bounded queue. The query service uses it to persist history off the
// request path.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	ErrPoolClosed = errors.New("pool is closed")
	ErrPoolFull   = errors.New("pool queue is full")
)

// Task is one unit of background work.
type Task func(ctx context.Context) error

// Config sizes the pool.
type Config struct {
	Workers   int `yaml:"workers" json:"workers"`
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

// DefaultConfig suits low-volume history writes.
func DefaultConfig() Config {
	return Config{Workers: 2, QueueSize: 256}
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Workers   int   `json:"workers"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}

// WorkerPool executes submitted tasks. Tasks run with a context that is
// cancelled only when Close gives up waiting.
type WorkerPool struct {
	cfg    Config
	queue  chan Task
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// New starts cfg.Workers workers.
func New(cfg Config, logger *zap.Logger) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		cfg:    cfg,
		queue:  make(chan Task, cfg.QueueSize),
		logger: logger.With(zap.String("component", "worker_pool")),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit queues task without blocking. ErrPoolFull means the queue is at
// capacity.
func (p *WorkerPool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return nil
	default:
		p.rejected.Add(1)
		return ErrPoolFull
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		if err := p.run(task); err != nil {
			p.failed.Add(1)
			p.logger.Warn("background task failed", zap.Error(err))
			continue
		}
		p.completed.Add(1)
	}
}

func (p *WorkerPool) run(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(p.ctx)
}

// Close stops accepting tasks and waits for queued ones to finish. When ctx
// ends first, running tasks are cancelled and ctx.Err() is returned.
func (p *WorkerPool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// Stats returns current counters.
func (p *WorkerPool) Stats() Stats {
	return Stats{
		Workers:   p.cfg.Workers,
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}
