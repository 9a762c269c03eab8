// Package jobs runs chat events through workers that keep the events of one
// chat strictly in order.
package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrQueueFull is returned by Publish when the job's worker stays busy
// for longer than the publish timeout.
var ErrQueueFull = errors.New("queue full")

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the handler returned an error. Jobs are never retried.
	JobStatusFailed JobStatus = "failed"
)

// Job is one unit of work bound to an ordering key.
type Job struct {
	// ID is the unique identifier for this job.
	ID string `json:"job_id"`

	// Key selects the worker; jobs with the same key run one at a time, in
	// publish order. The bot uses the chat id.
	Key int64 `json:"key"`

	// Kind is a short label used in logs and listings.
	Kind string `json:"kind"`

	// Payload is handed to the handler unchanged.
	Payload interface{} `json:"-"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// Publish enqueues a job. It waits a bounded time while the worker's
	// buffer is full, then gives up with ErrQueueFull.
	Publish(ctx context.Context, job *Job) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops accepting jobs and waits for queued and in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
type JobHandler func(ctx context.Context, job *Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Key filters jobs by ordering key; zero matches all.
	Key int64

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
