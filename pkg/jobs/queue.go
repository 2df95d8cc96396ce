package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job. A non-nil error triggers a delayed retry until
// the attempt budget is spent.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue is a lightweight in-memory job dispatcher backed by goroutines.
// Delivery is at-least-once within the process lifetime; jobs do not survive
// a restart. Stop closes intake and drains what is already buffered before
// returning, so side effects enqueued right before shutdown still run.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger

	jobs     chan Job
	quit     chan struct{}
	wg       sync.WaitGroup
	retryWG  sync.WaitGroup
	mu       sync.Mutex
	started  bool
	stopping bool
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
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
		logger:  cfg.Logger,
		jobs:    make(chan Job, cfg.BufferSize),
		quit:    make(chan struct{}),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work(ctx)
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.cfg.Workers)
}

// Stop closes intake, lets workers finish the buffered jobs and waits for
// them to exit. Pending retries are abandoned.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started || q.stopping {
		q.mu.Unlock()
		return
	}
	q.stopping = true
	close(q.quit)
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	q.retryWG.Wait()
	q.logger.Sugar().Infow("queue stopped", "queue", q.name)
}

// Enqueue pushes a job onto the queue. Returns an error when the queue is
// not running or its buffer is full.
func (q *Queue) Enqueue(job Job) error {
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	// The channel send stays under the lock so Stop cannot close the
	// channel between the state check and the send.
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.started || q.stopping {
		return fmt.Errorf("queue %s not accepting jobs", q.name)
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return fmt.Errorf("queue %s buffer full", q.name)
	}
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()
	for job := range q.jobs {
		if err := q.handler(ctx, job); err != nil {
			q.retry(job, err)
		}
	}
}

// retry re-enqueues a failed job after an exponentially growing delay.
func (q *Queue) retry(job Job, err error) {
	job.Attempt++
	if job.Attempt > q.cfg.MaxRetries {
		q.logger.Sugar().Errorw("job exceeded retries",
			"queue", q.name, "job_id", job.ID, "type", job.Type, "error", err)
		return
	}
	delay := q.cfg.RetryDelay << (job.Attempt - 1)
	q.logger.Sugar().Warnw("job failed, retrying",
		"queue", q.name, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "delay", delay, "error", err)

	q.retryWG.Add(1)
	go func(j Job) {
		defer q.retryWG.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.quit:
		case <-timer.C:
			if err := q.Enqueue(j); err != nil {
				q.logger.Sugar().Errorw("failed to requeue job", "queue", q.name, "job_id", j.ID, "error", err)
			}
		}
	}(job)
}
