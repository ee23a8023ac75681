package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/newspulse/newspulse/internal/storage"
)

// Handler processes one claimed job. Returning nil completes the job; a
// RescheduleError defers a fresh copy; any other error consumes one attempt
// from the job's retry budget.
type Handler func(ctx context.Context, job storage.Job) error

// ExhaustedFunc is invoked once when a job burns through its whole attempt
// budget. It must not fail the consumer; errors are its own to log.
type ExhaustedFunc func(ctx context.Context, job storage.Job)

type registration struct {
	handler   Handler
	exhausted ExhaustedFunc
}

// Consumer polls the durable queue and dispatches jobs to registered
// handlers. Several consumers may run against the same store; the claim
// transaction guarantees each job lands on exactly one of them per delivery.
type Consumer struct {
	store       Store
	handlers    map[string]registration
	poll        time.Duration
	maxAttempts int
	logger      *slog.Logger
}

// NewConsumer creates a Consumer. If pollInterval is <= 0, it defaults
// to 500ms.
func NewConsumer(store Store, pollInterval time.Duration, maxAttempts int, logger *slog.Logger) *Consumer {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		store:       store,
		handlers:    make(map[string]registration),
		poll:        pollInterval,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Handle registers a handler for a job type. onExhausted may be nil.
func (c *Consumer) Handle(jobType string, handler Handler, onExhausted ExhaustedFunc) {
	c.handlers[jobType] = registration{handler: handler, exhausted: onExhausted}
}

// Run polls for jobs until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := c.RunOnce(ctx)
		if err != nil {
			c.logger.Error("consumer iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.poll):
		}
	}
}

// RunOnce claims and processes a single job of any registered type.
// Returns true if a job was processed (regardless of outcome).
func (c *Consumer) RunOnce(ctx context.Context) (bool, error) {
	types := make([]string, 0, len(c.handlers))
	for t := range c.handlers {
		types = append(types, t)
	}

	job, err := c.store.ClaimNextJob(types)
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	reg := c.handlers[job.Type]
	err = reg.handler(ctx, *job)
	if err == nil {
		if err := c.store.CompleteJob(job.ID); err != nil {
			return true, fmt.Errorf("completing job %s: %w", job.ID, err)
		}
		return true, nil
	}

	var resched *RescheduleError
	if errors.As(err, &resched) {
		if err := c.reschedule(*job, resched); err != nil {
			// Leave the job claimed; redelivery after restart retries it.
			return true, fmt.Errorf("rescheduling job %s: %w", job.ID, err)
		}
		return true, nil
	}

	c.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "error", err)
	exhausted, failErr := c.store.FailJob(job.ID, err.Error())
	if failErr != nil {
		return true, fmt.Errorf("recording failure for job %s: %w", job.ID, failErr)
	}
	if exhausted {
		c.logger.Error("job exhausted retries", "job_id", job.ID, "type", job.Type, "error", err)
		if reg.exhausted != nil {
			reg.exhausted(ctx, *job)
		}
	}
	return true, nil
}

// reschedule enqueues a brand-new job carrying the same payload with the
// full attempt budget and the provider-suggested delay, then completes the
// current one. The throttled delivery is handled, not failed.
func (c *Consumer) reschedule(job storage.Job, resched *RescheduleError) error {
	replacement := storage.Job{
		ID:          uuid.New().String(),
		Type:        job.Type,
		PayloadJSON: job.PayloadJSON,
		MaxAttempts: c.maxAttempts,
		RunAfter:    time.Now().UTC().Add(resched.Delay),
	}
	if err := c.store.EnqueueJob(replacement); err != nil {
		return err
	}

	c.logger.Info("job rescheduled after rate limit",
		"job_id", job.ID, "replacement_id", replacement.ID,
		"type", job.Type, "delay", resched.Delay)

	return c.store.CompleteJob(job.ID)
}
