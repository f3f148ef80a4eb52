// Package compliance is the service layer around the pipeline: it accepts
// uploads, runs documents through the pipeline in the background with
// bounded concurrency, tracks job status, and fans results out to the
// audit trail, metrics, ticketing, and the violation memory.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/compliance-sentinel/sentinel/pipeline"
)

// JobStatus is the lifecycle state of one submitted document.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusError      JobStatus = "error"
	StatusCancelled  JobStatus = "cancelled"
)

var (
	ErrJobNotFound       = errors.New("processing id not found")
	ErrJobNotCancellable = errors.New("job is not running")
	ErrDuplicateJob      = errors.New("processing id already in use")
	ErrInvalidUpload     = errors.New("invalid upload")
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// Job is the tracked state of one submission. Terminal states keep either
// the result or the error string.
type Job struct {
	ProcessingID string
	Status       JobStatus
	Result       *pipeline.Result
	Error        string
	SubmittedAt  time.Time
	CompletedAt  time.Time

	cancel context.CancelFunc
}

// StatusStore tracks jobs by processing id. Transitions are one-way:
// queued → processing → {completed, error, cancelled}.
type StatusStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewStatusStore creates an empty status store.
func NewStatusStore() *StatusStore {
	return &StatusStore{jobs: make(map[string]*Job)}
}

func (s *StatusStore) create(id string, cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, id)
	}

	s.jobs[id] = &Job{
		ProcessingID: id,
		Status:       StatusQueued,
		SubmittedAt:  time.Now(),
		cancel:       cancel,
	}
	return nil
}

func (s *StatusStore) setProcessing(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[id]; ok && job.Status == StatusQueued {
		job.Status = StatusProcessing
	}
}

func (s *StatusStore) complete(id string, res *pipeline.Result) {
	s.finish(id, StatusCompleted, func(job *Job) { job.Result = res })
}

func (s *StatusStore) fail(id string, err error) {
	s.finish(id, StatusError, func(job *Job) { job.Error = err.Error() })
}

func (s *StatusStore) cancelled(id string) {
	s.finish(id, StatusCancelled, nil)
}

func (s *StatusStore) finish(id string, status JobStatus, apply func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || terminal(job.Status) {
		return
	}

	job.Status = status
	job.CompletedAt = time.Now()
	if apply != nil {
		apply(job)
	}
}

// Find returns a copy of the job for a processing id.
func (s *StatusStore) Find(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return *job, nil
}

// Cancel requests cooperative cancellation of a queued or processing job.
// The job transitions to cancelled once the pipeline observes the signal.
func (s *StatusStore) Cancel(id string) error {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if terminal(job.Status) {
		return fmt.Errorf("%w: %s is %s", ErrJobNotCancellable, id, job.Status)
	}

	job.cancel()
	return nil
}

func terminal(status JobStatus) bool {
	return status == StatusCompleted || status == StatusError || status == StatusCancelled
}
