// Package queue serializes mutations per shared resource.
//
// Each resource owns one bounded FIFO. A single consumer per resource
// (see package worker) runs jobs one at a time in arrival order, so
// read-modify-write cycles on the same resource never overlap while
// different resources progress independently.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/taikai/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
)

// Resource names one independently serialized piece of shared state.
type Resource string

// Known resources.
const (
	Ledger    Resource = "ledger"
	Roster    Resource = "roster"
	Cosplay   Resource = "cosplay"
	MuscleMax Resource = "musclemax"
)

// AllResources lists every resource in a stable order.
func AllResources() []Resource {
	return []Resource{Ledger, Roster, Cosplay, MuscleMax}
}

// Result is what a job produced.
type Result struct {
	Value any
	Err   error
}

// Job is one queued mutation.
type Job struct {
	ID         string
	Resource   Resource
	EnqueuedAt time.Time

	run  func(ctx context.Context) (any, error)
	done chan Result
}

// NewJob wraps fn as a job for resource.
func NewJob(resource Resource, fn func(ctx context.Context) (any, error)) *Job {
	return &Job{
		ID:       uuid.NewString(),
		Resource: resource,
		run:      fn,
		done:     make(chan Result, 1),
	}
}

// Run executes the job body. It is called by exactly one worker.
func (j *Job) Run(ctx context.Context) (any, error) {
	return j.run(ctx)
}

// Complete delivers the job result to the waiting submitter.
func (j *Job) Complete(v any, err error) {
	j.done <- Result{Value: v, Err: err}
}

// Done is closed over a single Result once the job completes.
func (j *Job) Done() <-chan Result {
	return j.done
}

// Queue provides non-blocking enqueue and channel-based dequeue per resource.
type Queue interface {
	// Enqueue adds a job to its resource's queue.
	// Returns ErrBackpressure if the queue is full, ErrClosed after Close.
	Enqueue(ctx context.Context, j *Job) error

	// Dequeue returns the channel of jobs for one resource.
	// The channel is closed when the queue is closed and drained.
	Dequeue(ctx context.Context, r Resource) <-chan *Job

	// Len returns the current number of pending jobs for a resource.
	Len(ctx context.Context, r Resource) int

	// Resources lists the resources this queue serves.
	Resources() []Resource

	// Close stops accepting jobs. Jobs already enqueued remain available to Dequeue.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue with one buffered channel per resource.
type InMemoryQueue struct {
	capacity  int
	resources []Resource
	jobs      map[Resource]chan *Job

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity:  defaultQueueCapacity,
		resources: AllResources(),
	}

	for _, opt := range opts {
		opt(q)
	}

	q.jobs = make(map[Resource]chan *Job, len(q.resources))
	for _, r := range q.resources {
		q.jobs[r] = make(chan *Job, q.capacity)
		metrics.UpdateQueueDepth(string(r), 0)
	}
	metrics.UpdateQueueCapacity(q.capacity)

	return q
}

// Enqueue adds a job to its resource's queue without blocking.
func (q *InMemoryQueue) Enqueue(_ context.Context, j *Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}

	ch, ok := q.jobs[j.Resource]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, j.Resource)
	}

	j.EnqueuedAt = time.Now()
	select {
	case ch <- j:
		metrics.UpdateQueueDepth(string(j.Resource), len(ch))
		return nil
	default:
		metrics.RecordBackpressure(string(j.Resource))
		return fmt.Errorf("%w: %s", ErrBackpressure, j.Resource)
	}
}

// Dequeue returns the job channel for r, or nil for an unknown resource.
func (q *InMemoryQueue) Dequeue(_ context.Context, r Resource) <-chan *Job {
	return q.jobs[r]
}

// Len returns the current number of pending jobs for r.
func (q *InMemoryQueue) Len(_ context.Context, r Resource) int {
	ch, ok := q.jobs[r]
	if !ok {
		return 0
	}
	size := len(ch)
	metrics.UpdateQueueDepth(string(r), size)
	return size
}

// Resources lists the resources this queue serves.
func (q *InMemoryQueue) Resources() []Resource {
	out := make([]Resource, len(q.resources))
	copy(out, q.resources)
	return out
}

// Close stops accepting jobs and closes every resource channel.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	for _, ch := range q.jobs {
		close(ch)
	}
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Submit enqueues fn on resource and waits for its result.
// Once enqueued the job runs to completion; ctx only bounds the enqueue.
func Submit(ctx context.Context, q Queue, resource Resource, fn func(ctx context.Context) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j := NewJob(resource, fn)
	if err := q.Enqueue(ctx, j); err != nil {
		return nil, err
	}
	res := <-j.Done()
	return res.Value, res.Err
}
