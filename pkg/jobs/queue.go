// Package jobs runs background work on a fixed set of in-process workers.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

const maxRetryDelay = time.Minute

// Job identifies one unit of work. Handlers load their input by ID so a
// queued job stays small and survives a restart through the database.
type Job struct {
	ID       string
	Type     string
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// GiveUpFunc is called once a job will not be retried again.
type GiveUpFunc func(context.Context, Job, error)

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	// RetryDelay is the first backoff step; it doubles per attempt.
	RetryDelay time.Duration
	Logger     *zap.Logger
	OnGiveUp   GiveUpFunc
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Queue dispatches jobs to workers. A handler panic fails the job
// permanently instead of taking the worker down.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	log     *zap.SugaredLogger

	pending chan Job

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	workers *conc.WaitGroup
	retries sync.WaitGroup
}

// NewQueue builds a queue around handler. A negative MaxRetries disables
// retries.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		log:     cfg.Logger.Sugar().With("queue", name),
		pending: make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Calls after the first are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.workers != nil {
		return
	}

	q.ctx, q.cancel = context.WithCancel(ctx)
	q.workers = conc.NewWaitGroup()
	for i := 0; i < q.cfg.Workers; i++ {
		q.workers.Go(q.consume)
	}
	q.log.Infow("queue started", "workers", q.cfg.Workers)
}

// Stop cancels in-flight work and waits for workers and pending retries.
// Jobs still buffered are dropped; their rows remain queued in storage.
func (q *Queue) Stop() {
	q.mu.Lock()
	workers := q.workers
	if workers == nil || q.ctx.Err() != nil {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()

	workers.Wait()
	q.retries.Wait()
	q.log.Infow("queue stopped", "dropped", len(q.pending))
}

// Depth is the number of jobs waiting for a worker.
func (q *Queue) Depth() int {
	return len(q.pending)
}

// Enqueue hands job to the workers, blocking while the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	ctx := q.ctx
	q.mu.Unlock()

	if ctx == nil {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.pending <- job:
		return nil
	}
}

func (q *Queue) consume() {
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.pending:
			if err := q.run(job); err != nil {
				q.fail(job, err)
			}
		}
	}
}

func (q *Queue) run(job Job) (err error) {
	var catcher panics.Catcher
	catcher.Try(func() { err = q.handler(q.ctx, job) })
	if recovered := catcher.Recovered(); recovered != nil {
		return Permanent(recovered.AsError())
	}
	return err
}

func (q *Queue) fail(job Job, err error) {
	log := q.log.With("job_id", job.ID, "type", job.Type, "attempt", job.Attempt)
	if IsPermanent(err) || job.Attempt >= q.cfg.MaxRetries {
		log.Errorw("job given up", "permanent", IsPermanent(err), "error", err)
		if q.cfg.OnGiveUp != nil {
			q.cfg.OnGiveUp(q.ctx, job, err)
		}
		return
	}

	delay := q.backoff(job.Attempt)
	job.Attempt++
	log.Warnw("job failed, retrying", "in", delay, "error", err)

	q.retries.Add(1)
	go func() {
		defer q.retries.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if err := q.Enqueue(job); err != nil {
				log.Errorw("failed to requeue job", "error", err)
			}
		}
	}()
}

func (q *Queue) backoff(attempt int) time.Duration {
	delay := q.cfg.RetryDelay
	for i := 0; i < attempt && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}
