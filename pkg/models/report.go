package models

import (
	"fmt"
	"time"
)

// RenameReport represents the results of a rename or move batch
type RenameReport struct {
	// Operation details
	OperationID string
	Root        string
	DryRun      bool

	// Timing
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Succeeded []RenameResult
	Skipped   []string
	Failed    []RenameFailure

	Status ReportStatus
}

// RenameResult records one completed rename or move
type RenameResult struct {
	Original string `json:"original"`
	New      string `json:"new"`
	Action   Action `json:"action"`
	// UniqueSubstituted is set when a _<n> suffix was added to avoid a collision
	UniqueSubstituted bool `json:"unique_substituted,omitempty"`
}

// RenameFailure records one item that could not be processed
type RenameFailure struct {
	Path         string    `json:"path"`
	ErrorMessage string    `json:"error"`
	Timestamp    time.Time `json:"timestamp"`
}

// ReportStatus represents the overall result of a batch
type ReportStatus string

const (
	// StatusSuccess indicates all operations completed successfully
	StatusSuccess ReportStatus = "success"
	// StatusPartial indicates some operations failed
	StatusPartial ReportStatus = "partial"
	// StatusFailed indicates every attempted operation failed
	StatusFailed ReportStatus = "failed"
	// StatusCancelled indicates the batch was cancelled
	StatusCancelled ReportStatus = "cancelled"
)

// ExitCode returns the appropriate exit code for the status
func (s ReportStatus) ExitCode() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusPartial:
		return 1
	case StatusFailed:
		return 2
	case StatusCancelled:
		return 3
	default:
		return 2
	}
}

// AddSuccess appends a completed item
func (r *RenameReport) AddSuccess(original, newPath string, action Action, unique bool) {
	r.Succeeded = append(r.Succeeded, RenameResult{
		Original:          original,
		New:               newPath,
		Action:            action,
		UniqueSubstituted: unique,
	})
}

// AddFailure appends a failed item
func (r *RenameReport) AddFailure(path string, err error) {
	r.Failed = append(r.Failed, RenameFailure{
		Path:         path,
		ErrorMessage: err.Error(),
		Timestamp:    time.Now(),
	})
}

// Finish stamps the end time and derives the status
func (r *RenameReport) Finish(cancelled bool) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	switch {
	case cancelled:
		r.Status = StatusCancelled
	case len(r.Failed) == 0:
		r.Status = StatusSuccess
	case len(r.Succeeded) == 0 && len(r.Skipped) == 0:
		r.Status = StatusFailed
	default:
		r.Status = StatusPartial
	}
}

// Err returns nil when nothing failed, otherwise an error wrapping ErrPartialRenameFailure
func (r *RenameReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d items", ErrPartialRenameFailure,
		len(r.Failed), len(r.Failed)+len(r.Succeeded)+len(r.Skipped))
}
