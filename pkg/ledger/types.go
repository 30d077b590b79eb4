// Package ledger provides type-safe Go definitions and Redis schema patterns
// for the sulcus run ledger. The ledger is the shared record of pipeline runs:
// every queued script, running stage, and completed or failed job is stored in
// Redis so the CLI, runners, and watchers all see the same state.
//
// All Redis keys and channels are namespaced by study name so multiple studies
// can safely share a single Redis server.
package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// Job represents a single pipeline run for one subject.
// Jobs are created when a script is pulled off the queue and updated as the
// run progresses. The ledger keeps them forever; they are the audit trail of
// what was run, when, and how it ended.
type Job struct {
	ID           string    `json:"id"`                    // UUID - unique identifier for this job
	Subject      string    `json:"subject"`               // Session label the job processes (e.g. SPINS_CMH_0001_01)
	Script       string    `json:"script"`                // Absolute path of the script being executed
	Status       JobStatus `json:"status"`                // Current lifecycle state
	ExitCode     int       `json:"exit_code"`             // Process exit code (meaningful once finished)
	StderrTail   string    `json:"stderr_tail,omitempty"` // Last portion of stderr, kept for diagnosis
	QueuedAtMs   int64     `json:"queued_at_ms"`          // Unix ms when the job was created
	StartedAtMs  int64     `json:"started_at_ms"`         // Unix ms when execution began (0 if not started)
	FinishedAtMs int64     `json:"finished_at_ms"`        // Unix ms when execution ended (0 if not finished)
}

// JobStatus defines the lifecycle state of a job.
// Jobs progress queued -> running -> complete/failed. Skipped marks jobs whose
// every stage output already existed, so nothing was invoked.
type JobStatus string

const (
	// JobStatusQueued indicates the job has been recorded but not started
	JobStatusQueued JobStatus = "queued"

	// JobStatusRunning indicates the job's script is currently executing
	JobStatusRunning JobStatus = "running"

	// JobStatusComplete indicates the job finished with exit code 0
	JobStatusComplete JobStatus = "complete"

	// JobStatusFailed indicates the job finished with a non-zero exit code
	// or could not be started at all
	JobStatusFailed JobStatus = "failed"

	// JobStatusSkipped indicates all expected outputs already existed
	JobStatusSkipped JobStatus = "skipped"
)

// Validate checks if the Job has valid field values.
// Returns an error if any validation fails.
func (j *Job) Validate() error {
	if !isValidUUID(j.ID) {
		return fmt.Errorf("invalid job ID: not a valid UUID")
	}

	if j.Subject == "" {
		return fmt.Errorf("job subject cannot be empty")
	}

	if j.Script == "" {
		return fmt.Errorf("job script cannot be empty")
	}

	if err := j.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	if j.QueuedAtMs < 0 || j.StartedAtMs < 0 || j.FinishedAtMs < 0 {
		return fmt.Errorf("job timestamps cannot be negative")
	}

	return nil
}

// Validate checks if the JobStatus is a valid enum value.
func (s JobStatus) Validate() error {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusComplete, JobStatusFailed, JobStatusSkipped:
		return nil
	default:
		return fmt.Errorf("unknown job status: %q", s)
	}
}

// Terminal reports whether the status is an end state (no further updates expected).
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed || s == JobStatusSkipped
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
