// Package jobs tracks asynchronous import runs for polling. The store is a
// narrow keyed interface so the registry can live in Redis (TTL eviction)
// or in process memory (periodic sweep) without the orchestrator caring.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/contactflow/importer/internal/contact"
)

// DefaultRetention is how long a finished or abandoned job stays pollable.
const DefaultRetention = time.Hour

var (
	// ErrNotFound is returned when polling an unknown or purged job id.
	ErrNotFound = errors.New("import job not found")

	// ErrTerminalState rejects writes to a completed or failed job.
	ErrTerminalState = errors.New("import job already in terminal state")
)

// Status is the lifecycle state of an import job.
// Transitions: pending -> processing -> {completed | failed}.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job is the polling snapshot of one asynchronous import run. The embedded
// Result flattens the outcome counters into the top-level JSON document.
type Job struct {
	ID     string `json:"jobId"`
	Status Status `json:"status"`

	contact.Result

	// ProcessedRecords advances while the run is in flight;
	// at completion it equals TotalRecords.
	ProcessedRecords int `json:"processedRecords"`

	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

// Terminal reports whether the job reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Store is the job registry. A given job is written only by its own
// background run; reads may happen concurrently from the polling boundary.
type Store interface {
	Create(ctx context.Context) (*Job, error)
	Get(ctx context.Context, id string) (*Job, error)
	Update(ctx context.Context, id string, mutate func(*Job) error) error
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, result contact.Result) error
	MarkFailed(ctx context.Context, id string, message string) error

	// Sweep purges jobs past the retention window and returns how many
	// were removed. Stores whose backend expires keys itself may no-op.
	Sweep(ctx context.Context) (int, error)
}

func transitionProcessing(j *Job) error {
	if j.Terminal() {
		return ErrTerminalState
	}
	j.Status = StatusProcessing
	return nil
}

func transitionCompleted(j *Job, result contact.Result) error {
	if j.Terminal() {
		return ErrTerminalState
	}
	now := time.Now().UTC()
	j.Status = StatusCompleted
	j.Result = result
	j.ProcessedRecords = result.TotalRecords
	j.CompletedAt = &now
	return nil
}

func transitionFailed(j *Job, message string) error {
	if j.Terminal() {
		return ErrTerminalState
	}
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.CompletedAt = &now
	return nil
}
