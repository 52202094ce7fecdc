// Package job provides the per-document Job aggregate and the batch Runner
// that drives the document-to-audio pipeline with durable progress
// checkpoints.
package job

import (
	"errors"
	"sync"
	"time"
)

// Status represents the current state of a document Job.
type Status string

const (
	// StatusPending indicates the document is waiting its turn in the batch.
	StatusPending Status = "PENDING"
	// StatusInProgress indicates the document's pipeline is running.
	StatusInProgress Status = "IN_PROGRESS"
	// StatusCompleted indicates the full pipeline ran without a fatal error.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the pipeline aborted on a fatal error.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusInProgress},
	StatusInProgress: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Job tracks one document's trip through the conversion pipeline.
type Job struct {
	mu sync.RWMutex

	// Document is the input document identifier (path or name).
	Document string
	// Status is the current pipeline state.
	Status Status
	// Outputs holds the audio files produced for this document.
	Outputs []string
	// SkippedSegments counts whitespace-only segments that produced no file.
	SkippedSegments int
	// Error contains the failure message when Status is FAILED.
	Error string
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished, successfully or not.
	CompletedAt time.Time
}

// New creates a Job for a document in PENDING state.
func New(doc string) *Job {
	return &Job{
		Document: doc,
		Status:   StatusPending,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status

	switch status {
	case StatusInProgress:
		j.StartedAt = time.Now()
	case StatusCompleted, StatusFailed:
		j.CompletedAt = time.Now()
	}

	return nil
}

// Start transitions the job from PENDING to IN_PROGRESS.
func (j *Job) Start() error {
	return j.TransitionTo(StatusInProgress)
}

// Complete transitions the job to COMPLETED.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// AddOutput records a produced audio file.
func (j *Job) AddOutput(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Outputs = append(j.Outputs, path)
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted || j.Status == StatusFailed
}
