// Package job provides the Job aggregate for tracking video processing
// requests. It includes the Job entity with its state machine, as well as
// repository interfaces for persistence.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/ashokgit/videoresizer-api/internal/job/id"
	"github.com/ashokgit/videoresizer-api/internal/media"
	"github.com/ashokgit/videoresizer-api/internal/pipeline"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusPending indicates the job is created but processing has not started.
	StatusPending Status = "PENDING"
	// StatusRunning indicates the pipeline is processing the job.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job encountered an error during execution.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was aborted before finishing.
	StatusCancelled Status = "CANCELLED"
	// StatusTimedOut indicates the job exceeded the processing budget.
	StatusTimedOut Status = "TIMED_OUT"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusRunning, StatusCancelled, StatusTimedOut},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
	StatusTimedOut:  {},
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

// StageRecord documents one executed pipeline stage.
type StageRecord struct {
	// Name is the stage identifier, e.g. "resize" or "concatenate".
	Name string
	// Note carries stage-specific detail, like the concat mode used.
	Note string
	// Elapsed is how long the stage took.
	Elapsed time.Duration
}

// Job represents one video processing request and its outcome.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// InputPath is the stored upload of the source video.
	InputPath string
	// Config is the requested processing configuration. The paths of the
	// optional CTA clip and watermark image live inside it.
	Config pipeline.Config
	// OutputName is the filename of the finished video in the output store.
	OutputName string
	// OutputPath is the local path of the finished video.
	OutputPath string
	// OutputURL is the published URL when S3 publication is configured.
	OutputURL string
	// Info is the probed metadata of the finished video, when available.
	Info *media.VideoInfo
	// Stages documents the pipeline stages that ran, in order.
	Stages []StageRecord
	// Degradations lists fallbacks the pipeline absorbed.
	Degradations []string
	// Error contains any error message if the job failed.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial PENDING status.
func New() *Job {
	now := time.Now()
	return &Job{
		ID:        id.Generate(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewWithID creates a new Job with the specified ID and initial PENDING
// status. Useful for testing or when the ID is externally generated.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
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
	j.UpdatedAt = time.Now()

	// Set timestamps based on state
	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from PENDING to RUNNING.
// Returns ErrInvalidTransition if the job is not in PENDING state.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// Timeout transitions the job to TIMED_OUT state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) Timeout() error {
	return j.TransitionTo(StatusTimedOut)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetOutput sets the output video path and optional published URL.
func (j *Job) SetOutput(outputPath, outputURL string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputPath = outputPath
	j.OutputURL = outputURL
	j.UpdatedAt = time.Now()
}

// SetReport records what the pipeline did: executed stages, absorbed
// fallbacks and the probed metadata of the finished output.
func (j *Job) SetReport(stages []StageRecord, degradations []string, info *media.VideoInfo) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Stages = stages
	j.Degradations = degradations
	j.Info = info
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled ||
		j.Status == StatusTimedOut
}

// Clone creates a deep copy of the job for safe reads. Config is copied
// shallowly: it is immutable once the job is created.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	stages := make([]StageRecord, len(j.Stages))
	copy(stages, j.Stages)
	degradations := make([]string, len(j.Degradations))
	copy(degradations, j.Degradations)

	var info *media.VideoInfo
	if j.Info != nil {
		infoCopy := *j.Info
		info = &infoCopy
	}

	return &Job{
		ID:           j.ID,
		Status:       j.Status,
		InputPath:    j.InputPath,
		Config:       j.Config,
		OutputName:   j.OutputName,
		OutputPath:   j.OutputPath,
		OutputURL:    j.OutputURL,
		Info:         info,
		Stages:       stages,
		Degradations: degradations,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
