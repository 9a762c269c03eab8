package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/telegrind/internal/jobs"
	"github.com/google/uuid"
)

// Queue is an in-memory implementation of job publisher and consumer.
// Each worker owns one channel; a job goes to the worker chosen by its key,
// so jobs sharing a key never run concurrently and keep publish order.
type Queue struct {
	shards    []chan *jobs.Job
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	started   bool
	closed    bool

	publishTimeout time.Duration
}

// DefaultPublishTimeout bounds how long Publish waits for a busy worker.
const DefaultPublishTimeout = 5 * time.Second

// NewQueue creates a queue with workerCount ordered workers.
// bufferSize is the per-worker backlog before Publish starts waiting.
func NewQueue(workerCount, bufferSize int, store jobs.JobStore) *Queue {
	if workerCount < 1 {
		workerCount = 1
	}
	shards := make([]chan *jobs.Job, workerCount)
	for i := range shards {
		shards[i] = make(chan *jobs.Job, bufferSize)
	}
	return &Queue{
		shards:    shards,
		closeChan: make(chan struct{}),
		store:     store,

		publishTimeout: DefaultPublishTimeout,
	}
}

// SetPublishTimeout changes how long Publish waits for a full worker buffer.
// Non-positive values restore the default.
func (q *Queue) SetPublishTimeout(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if d <= 0 {
		d = DefaultPublishTimeout
	}
	q.publishTimeout = d
}

func (q *Queue) shard(key int64) chan *jobs.Job {
	return q.shards[uint64(key)%uint64(len(q.shards))]
}

// Publish implements the Publisher interface.
func (q *Queue) Publish(ctx context.Context, job *jobs.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	// Generate job ID if not provided
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = jobs.JobStatusPending
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	// Stop cannot close the shards while we hold the read lock. The wait is
	// bounded so one slow chat cannot stall publishing for the others.
	timer := time.NewTimer(q.publishTimeout)
	defer timer.Stop()

	select {
	case q.shard(job.Key) <- job:
		return nil
	case <-ctx.Done():
		q.reject(ctx, job, ctx.Err())
		return ctx.Err()
	case <-timer.C:
		q.reject(ctx, job, jobs.ErrQueueFull)
		return fmt.Errorf("Publish: key %d: %w", job.Key, jobs.ErrQueueFull)
	}
}

// reject records a job that never reached its worker.
func (q *Queue) reject(ctx context.Context, job *jobs.Job, reason error) {
	if q.store == nil {
		return
	}
	now := time.Now()
	job.Status = jobs.JobStatusFailed
	job.Error = reason.Error()
	job.CompletedAt = &now
	_ = q.store.SaveJob(context.WithoutCancel(ctx), job)
}

// Start implements the Consumer interface. It starts one goroutine per shard.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}
	if q.started {
		return fmt.Errorf("queue already started")
	}
	q.started = true

	for _, ch := range q.shards {
		q.wg.Add(1)
		go q.worker(ctx, ch, handler)
	}
	return nil
}

// worker drains its shard until the shard is closed or ctx is cancelled.
func (q *Queue) worker(ctx context.Context, ch <-chan *jobs.Job, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-ch:
			if !ok {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job. Failures are recorded, not retried.
func (q *Queue) processJob(ctx context.Context, job *jobs.Job, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

// Stop implements the Consumer interface.
// It rejects new jobs, lets workers drain what is queued and waits for them.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	for _, ch := range q.shards {
		close(ch)
	}
	q.mu.Unlock()

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Stop has been called.
func (q *Queue) Done() <-chan struct{} {
	return q.closeChan
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
