package llm

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// defaultRetryAfter is used when a rate-limited response carries no parseable
// retry hint.
const defaultRetryAfter = 60 * time.Second

// RateLimitError reports that the provider throttled the request. It carries
// the provider-suggested delay so callers can reschedule instead of retrying
// blindly. Rate limits never count against a job's bounded retry budget.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s: %v", e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// ContentBlockedError reports that the provider declined to answer for safety
// reasons. The refusal is deterministic, so retrying is pointless.
type ContentBlockedError struct {
	Err error
}

func (e *ContentBlockedError) Error() string {
	return fmt.Sprintf("classifier declined to answer: %v", e.Err)
}

func (e *ContentBlockedError) Unwrap() error { return e.Err }

var retryHintPattern = regexp.MustCompile(`retry in ([\d.]+)s`)

// parseRetryAfter extracts the provider-suggested delay from an error message
// like "Please retry in 24.14s", rounding up to whole seconds. Falls back to
// defaultRetryAfter when the hint is missing or unparseable.
func parseRetryAfter(message string) time.Duration {
	match := retryHintPattern.FindStringSubmatch(message)
	if len(match) < 2 {
		return defaultRetryAfter
	}
	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil || seconds <= 0 {
		return defaultRetryAfter
	}
	return time.Duration(math.Ceil(seconds)) * time.Second
}
