package ledger

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by study name so that
// several studies can share one Redis server without interfering.
//
// Key pattern: sulcus:{study}:{entity}:{uuid}
// Channel pattern: sulcus:{study}:{event_type}_events

// JobKey returns the Redis key for a job.
// Pattern: sulcus:{study}:job:{job_id}
func JobKey(study, jobID string) string {
	return fmt.Sprintf("sulcus:%s:job:%s", study, jobID)
}

// JobKeyPattern returns the SCAN pattern matching all job keys for a study.
func JobKeyPattern(study string) string {
	return fmt.Sprintf("sulcus:%s:job:*", study)
}

// JobKeyPrefix returns the key prefix preceding the job ID.
func JobKeyPrefix(study string) string {
	return fmt.Sprintf("sulcus:%s:job:", study)
}

// JobEventsChannel returns the Pub/Sub channel name for job events.
// Every job create and update publishes the full job JSON here.
// Pattern: sulcus:{study}:job_events
func JobEventsChannel(study string) string {
	return fmt.Sprintf("sulcus:%s:job_events", study)
}
