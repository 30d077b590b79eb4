package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Client provides study-scoped Redis operations for the run ledger.
// All keys and channels are automatically namespaced with the study name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb   *redis.Client
	study string
}

// NewClient creates a new ledger client for the specified study.
// The client automatically namespaces all keys and channels with the study name.
//
// Returns an error if study is empty.
func NewClient(redisOpts *redis.Options, study string) (*Client, error) {
	if study == "" {
		return nil, fmt.Errorf("study name cannot be empty")
	}

	return &Client{
		rdb:   redis.NewClient(redisOpts),
		study: study,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// CreateJob writes a job to Redis and publishes an event.
// Validates the job before writing. Publishes full job JSON to
// sulcus:{study}:job_events after a successful write.
//
// The job is stored as a Redis hash at sulcus:{study}:job:{id}.
// Writing the same job twice is safe.
func (c *Client) CreateJob(ctx context.Context, j *Job) error {
	if err := j.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}

	key := JobKey(c.study, j.ID)
	if err := c.rdb.HSet(ctx, key, JobToHash(j)).Err(); err != nil {
		return fmt.Errorf("failed to write job to Redis: %w", err)
	}

	if err := c.publishJobEvent(ctx, j); err != nil {
		return err
	}

	return nil
}

// UpdateJob replaces an existing job with new data (full HSET replacement)
// and publishes an event. Used by runners to move jobs through their
// lifecycle. The job will be created if it doesn't exist.
func (c *Client) UpdateJob(ctx context.Context, j *Job) error {
	if err := j.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}

	key := JobKey(c.study, j.ID)
	if err := c.rdb.HSet(ctx, key, JobToHash(j)).Err(); err != nil {
		return fmt.Errorf("failed to update job in Redis: %w", err)
	}

	if err := c.publishJobEvent(ctx, j); err != nil {
		return err
	}

	return nil
}

// GetJob retrieves a job by ID.
// Returns (nil, redis.Nil) if the job doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	key := JobKey(c.study, jobID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read job from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	job, err := HashToJob(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize job: %w", err)
	}

	return job, nil
}

// JobExists checks if a job exists without fetching it.
func (c *Client) JobExists(ctx context.Context, jobID string) (bool, error) {
	key := JobKey(c.study, jobID)
	exists, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check job existence: %w", err)
	}
	return exists > 0, nil
}

// ListJobs retrieves all jobs for the study, sorted by queue time (oldest
// first). Uses Redis SCAN to iterate over job keys without blocking the
// server. Malformed jobs are skipped and reported through the returned
// warnings slice rather than aborting the listing.
func (c *Client) ListJobs(ctx context.Context) (jobs []*Job, warnings []string, err error) {
	prefix := JobKeyPrefix(c.study)
	iter := c.rdb.Scan(ctx, 0, JobKeyPattern(c.study), 0).Iterator()

	for iter.Next(ctx) {
		key := iter.Val()
		jobID := key[len(prefix):]

		job, getErr := c.GetJob(ctx, jobID)
		if getErr != nil {
			warnings = append(warnings, fmt.Sprintf("skipping malformed job %s: %v", key, getErr))
			continue
		}

		jobs = append(jobs, job)
	}

	if err := iter.Err(); err != nil {
		return nil, warnings, fmt.Errorf("failed to scan jobs: %w", err)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].QueuedAtMs < jobs[j].QueuedAtMs
	})

	return jobs, warnings, nil
}

// publishJobEvent publishes the full job JSON to the study's job events channel.
func (c *Client) publishJobEvent(ctx context.Context, j *Job) error {
	jobJSON, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal job for event: %w", err)
	}

	channel := JobEventsChannel(c.study)
	if err := c.rdb.Publish(ctx, channel, jobJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish job event: %w", err)
	}

	return nil
}

// Subscription represents an active Pub/Sub subscription to job events.
// Caller must call Close() when done to clean up resources.
// Subscriptions deliver full job objects via the Events() channel.
type Subscription struct {
	events <-chan *Job
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of job events.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *Job {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures and other non-fatal issues.
// The subscription continues after errors - messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeJobEvents subscribes to job events for this study.
// Returns a Subscription that delivers full job objects.
// Caller must call subscription.Close() when done.
// Context cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// If the subscriber is too slow, events may be dropped by Redis Pub/Sub
// (at-most-once delivery).
func (c *Client) SubscribeJobEvents(ctx context.Context) (*Subscription, error) {
	channel := JobEventsChannel(c.study)
	pubsub := c.rdb.Subscribe(ctx, channel)

	eventsChan := make(chan *Job, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var job Job
				if err := json.Unmarshal([]byte(msg.Payload), &job); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal job event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &job:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
// Use this to check if GetJob returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
