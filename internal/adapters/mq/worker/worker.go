// Package worker runs queued mutations, one serial worker per resource.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/taikai/internal/adapters/mq/queue"
	"github.com/okian/taikai/pkg/logger"
	"github.com/okian/taikai/pkg/metrics"
)

// Default worker configuration constants.
const (
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context, r queue.Resource) <-chan *queue.Job
	Len(ctx context.Context, r queue.Resource) int
	Resources() []queue.Resource
	Close() error
}

// Worker processes jobs for one resource.
type Worker interface {
	// Run processes jobs until the resource channel is closed and drained.
	Run(ctx context.Context)

	// Shutdown waits for Run to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker executes the jobs of a single resource strictly one at a time.
type InMemoryWorker struct {
	queue    Queue
	resource queue.Resource
	name     string
	done     chan struct{}
	logger   logger.Logger
}

func newSettings(name string, opts []Option) settings {
	s := settings{name: name, metricsRefresh: metricsUpdateInterval}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	return s
}

// NewInMemoryWorker creates a worker bound to resource r.
func NewInMemoryWorker(q Queue, r queue.Resource, opts ...Option) *InMemoryWorker {
	s := newSettings("worker-"+string(r), opts)
	return &InMemoryWorker{
		queue:    q,
		resource: r,
		name:     s.name,
		done:     make(chan struct{}),
		logger:   s.logger.Named(s.name),
	}
}

// Run starts the worker loop. Jobs see a context that carries ctx's values
// but is never cancelled: once enqueued a mutation runs to completion.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobCtx := context.WithoutCancel(ctx)
	for j := range w.queue.Dequeue(ctx, w.resource) {
		w.process(jobCtx, j)
		metrics.UpdateQueueDepth(string(w.resource), w.queue.Len(ctx, w.resource))
	}
	w.logger.Debug(ctx, "worker drained")
}

// Shutdown waits for the worker to drain. The queue must be closed first.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, j *queue.Job) {
	v, err := w.execute(ctx, j)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		w.logger.Warn(ctx, "mutation failed",
			logger.String("job_id", j.ID),
			logger.Error(err),
		)
	}
	metrics.RecordMutation(string(j.Resource), outcome, float64(time.Since(j.EnqueuedAt).Microseconds())/1000)
	j.Complete(v, err)
}

func (w *InMemoryWorker) execute(ctx context.Context, j *queue.Job) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("worker", "panic")
			v, err = nil, fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return j.Run(ctx)
}

// Pool runs one worker per queue resource.
type Pool struct {
	workers  []*InMemoryWorker
	queue    Queue
	refresh  time.Duration
	shutdown chan struct{}
	once     sync.Once
	logger   logger.Logger
}

// NewPool creates a worker for every resource the queue serves.
func NewPool(q Queue, opts ...Option) *Pool {
	s := newSettings("worker-pool", opts)
	p := &Pool{
		queue:    q,
		refresh:  s.metricsRefresh,
		shutdown: make(chan struct{}),
		logger:   s.logger.Named(s.name),
	}
	for _, r := range q.Resources() {
		p.workers = append(p.workers, NewInMemoryWorker(q, r, WithLogger(s.logger)))
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

// startMetricsUpdater periodically refreshes queue depth gauges.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(p.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			for _, r := range p.queue.Resources() {
				p.queue.Len(ctx, r)
			}
		}
	}
}

// Shutdown closes the queue and waits for every worker to drain pending jobs.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}
	p.once.Do(func() { close(p.shutdown) })

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for _, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
