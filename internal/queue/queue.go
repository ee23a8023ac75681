// Package queue layers job-type dispatch, rate-limit rescheduling, and
// terminal exhaustion hooks over the durable jobs table. Delivery is
// at-least-once; handlers must be idempotent.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/newspulse/newspulse/internal/storage"
)

// Store is the subset of storage operations the queue needs.
type Store interface {
	EnqueueJob(job storage.Job) error
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) (exhausted bool, err error)
}

// Queue enqueues jobs. Shared by the ingestion service, the scheduler, and
// the operational retry commands.
type Queue struct {
	store       Store
	maxAttempts int
}

// New creates a Queue. maxAttempts is the default retry budget for enqueued
// jobs; values <= 0 fall back to 5.
func New(store Store, maxAttempts int) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Queue{store: store, maxAttempts: maxAttempts}
}

// Enqueue adds a job of the given type. The payload is marshaled to JSON.
// A positive delay defers the first delivery.
func (q *Queue) Enqueue(jobType string, payload interface{}, delay time.Duration) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload for %s: %w", jobType, err)
	}

	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        jobType,
		PayloadJSON: string(body),
		MaxAttempts: q.maxAttempts,
	}
	if delay > 0 {
		job.RunAfter = time.Now().UTC().Add(delay)
	}
	return q.store.EnqueueJob(job)
}

// RescheduleError tells the consumer to finish the current job and enqueue a
// fresh replacement after Delay, with the full attempt budget restored. Used
// for provider rate limits, which must never drain the bounded retry budget
// reserved for genuine failures.
type RescheduleError struct {
	Delay  time.Duration
	Reason error
}

func (e *RescheduleError) Error() string {
	return fmt.Sprintf("reschedule in %s: %v", e.Delay, e.Reason)
}

func (e *RescheduleError) Unwrap() error { return e.Reason }

// Reschedule wraps reason into a RescheduleError with the given delay.
func Reschedule(delay time.Duration, reason error) error {
	return &RescheduleError{Delay: delay, Reason: reason}
}
