// Package syncq runs fire-and-forget remote writes in issue order.
//
// Local state is the source of truth for the session: callers apply a change
// locally first and then enqueue the remote write. A failing job is logged
// and dropped, never retried or rolled back.
package syncq

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Job is one remote write. The context is the queue's own, not the request's.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Queue executes jobs sequentially on a single goroutine.
type Queue struct {
	jobs    chan Job
	pending sync.WaitGroup
	logger  zerolog.Logger
	timeout time.Duration

	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithBuffer sets the channel capacity. Enqueue blocks when it is full.
func WithBuffer(n int) Option {
	return func(q *Queue) { q.jobs = make(chan Job, n) }
}

// WithJobTimeout bounds each job's execution.
func WithJobTimeout(d time.Duration) Option {
	return func(q *Queue) { q.timeout = d }
}

// New builds a queue. Call Start before enqueueing.
func New(logger zerolog.Logger, opts ...Option) *Queue {
	q := &Queue{
		jobs:    make(chan Job, 256),
		logger:  logger.With().Str("component", "syncq").Logger(),
		timeout: 15 * time.Second,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the worker. It stops when ctx is cancelled or Close is called.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		go q.loop(ctx)
	})
}

// Enqueue appends a job. After Close, or once the worker has stopped, the
// job is logged and dropped.
func (q *Queue) Enqueue(job Job) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn().Str("job", job.Name).Msg("queue closed; dropping remote write")
		return
	}
	select {
	case <-q.done:
		q.logger.Warn().Str("job", job.Name).Msg("queue stopped; dropping remote write")
		return
	default:
	}
	q.pending.Add(1)
	select {
	case q.jobs <- job:
	case <-q.done:
		q.pending.Done()
		q.logger.Warn().Str("job", job.Name).Msg("queue stopped; dropping remote write")
	}
}

// Wait blocks until every enqueued job has finished.
func (q *Queue) Wait() {
	q.pending.Wait()
}

// Close stops the worker after the jobs already queued have run.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.jobs)
		q.mu.Unlock()
		<-q.done
	})
}

func (q *Queue) loop(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			q.run(ctx, job)
		case <-ctx.Done():
			q.drain()
			return
		}
	}
}

// drain discards jobs left after cancellation so Wait does not hang.
func (q *Queue) drain() {
	for {
		select {
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			q.logger.Warn().Str("job", job.Name).Msg("dropping remote write on shutdown")
			q.pending.Done()
		default:
			return
		}
	}
}

func (q *Queue) run(parent context.Context, job Job) {
	defer q.pending.Done()

	ctx, cancel := context.WithTimeout(parent, q.timeout)
	defer cancel()

	if err := job.Run(ctx); err != nil {
		q.logger.Error().Err(err).Str("job", job.Name).Msg("remote write failed; local state kept")
	}
}
