// Package aggregate drives periodic source fetching. Fetches run as queue
// jobs so a crashed poll is retried and an upstream throttle defers the work
// instead of dropping it.
package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/newspulse/newspulse/internal/ingest"
	"github.com/newspulse/newspulse/internal/queue"
	"github.com/newspulse/newspulse/internal/sources"
	"github.com/newspulse/newspulse/internal/storage"
)

const (
	// JobTypeRSS identifies RSS fetch jobs on the queue.
	JobTypeRSS = "fetch-rss"
	// JobTypeReddit identifies subreddit fetch jobs on the queue.
	JobTypeReddit = "fetch-reddit"
)

// RSSPayload is the body of an RSS fetch job.
type RSSPayload struct {
	Name    string `json:"name"`
	FeedURL string `json:"feed_url"`
}

// RedditPayload is the body of a subreddit fetch job.
type RedditPayload struct {
	Subreddit string `json:"subreddit"`
}

// Ingestor stores fetched items.
type Ingestor interface {
	Ingest(ctx context.Context, raw ingest.RawArticle) (ingest.Result, error)
}

// Aggregator handles fetch jobs by running the matching source adapter and
// feeding its items through ingestion.
type Aggregator struct {
	ingestor  Ingestor
	userAgent string
	client    *http.Client
	logger    *slog.Logger
}

// NewAggregator creates the fetch job handler set. client may be nil.
func NewAggregator(ingestor Ingestor, userAgent string, client *http.Client, logger *slog.Logger) *Aggregator {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{ingestor: ingestor, userAgent: userAgent, client: client, logger: logger}
}

// HandleRSS processes one RSS fetch job.
func (a *Aggregator) HandleRSS(ctx context.Context, job storage.Job) error {
	var payload RSSPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	adapter := sources.NewRSS(payload.Name, payload.FeedURL, a.userAgent, a.client)
	return a.run(ctx, adapter)
}

// HandleReddit processes one subreddit fetch job.
func (a *Aggregator) HandleReddit(ctx context.Context, job storage.Job) error {
	var payload RedditPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	adapter := sources.NewReddit(payload.Subreddit, a.userAgent, a.client)
	return a.run(ctx, adapter)
}

// run fetches one source and ingests every item. A throttled upstream
// reschedules the whole fetch; per-item ingestion failures are logged and
// the batch continues.
func (a *Aggregator) run(ctx context.Context, adapter sources.Adapter) error {
	items, err := adapter.Fetch(ctx)
	if err != nil {
		var rateLimited *sources.RateLimitedError
		if errors.As(err, &rateLimited) {
			return queue.Reschedule(rateLimited.RetryAfter, err)
		}
		return fmt.Errorf("fetching %s: %w", adapter.Name(), err)
	}

	stored, duplicates, failed := 0, 0, 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := a.ingestor.Ingest(ctx, item)
		switch {
		case err != nil:
			failed++
			a.logger.Warn("item ingestion failed",
				"source", adapter.Name(), "source_id", item.SourceID, "error", err)
		case result.Stored:
			stored++
		default:
			duplicates++
		}
	}

	a.logger.Info("source fetched", "source", adapter.Name(),
		"items", len(items), "stored", stored, "duplicates", duplicates, "failed", failed)
	return nil
}
