package ledger

import (
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Storing individual
// fields keeps jobs queryable with plain redis-cli while the Go types remain
// the single source of truth for structure.

// JobToHash converts a Job struct to a Redis hash format.
func JobToHash(j *Job) map[string]interface{} {
	return map[string]interface{}{
		"id":             j.ID,
		"subject":        j.Subject,
		"script":         j.Script,
		"status":         string(j.Status),
		"exit_code":      j.ExitCode,
		"stderr_tail":    j.StderrTail,
		"queued_at_ms":   j.QueuedAtMs,
		"started_at_ms":  j.StartedAtMs,
		"finished_at_ms": j.FinishedAtMs,
	}
}

// HashToJob converts a Redis hash to a Job struct.
func HashToJob(hash map[string]string) (*Job, error) {
	exitCode, err := strconv.Atoi(hash["exit_code"])
	if err != nil {
		return nil, fmt.Errorf("invalid exit_code field: %w", err)
	}

	// Timestamps default to 0 when absent or unparseable
	queuedAtMs, _ := strconv.ParseInt(hash["queued_at_ms"], 10, 64)
	startedAtMs, _ := strconv.ParseInt(hash["started_at_ms"], 10, 64)
	finishedAtMs, _ := strconv.ParseInt(hash["finished_at_ms"], 10, 64)

	job := &Job{
		ID:           hash["id"],
		Subject:      hash["subject"],
		Script:       hash["script"],
		Status:       JobStatus(hash["status"]),
		ExitCode:     exitCode,
		StderrTail:   hash["stderr_tail"],
		QueuedAtMs:   queuedAtMs,
		StartedAtMs:  startedAtMs,
		FinishedAtMs: finishedAtMs,
	}

	return job, nil
}
