// Package sources fetches raw articles from the outside world. Each adapter
// normalizes one upstream shape into the common ingestion input.
package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/newspulse/newspulse/internal/ingest"
)

// Adapter fetches the current batch of items from one upstream source.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) ([]ingest.RawArticle, error)
}

// RateLimitedError signals that the upstream throttled the fetch and when it
// is reasonable to try again.
type RateLimitedError struct {
	Source     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s rate limited, retry after %s", e.Source, e.RetryAfter)
}
