package classify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/newspulse/newspulse/internal/news"
)

// retryBatchSize bounds how many FAILED articles one retry pass touches.
const retryBatchSize = 500

// OpsStore is the persistence surface the repair operations need.
type OpsStore interface {
	ListByStatus(status news.ClassificationStatus, limit int) ([]news.Article, error)
	SetClassificationStatus(id string, status news.ClassificationStatus) error
	FixPendingWithCategory() (int64, error)
	JobCounts() (map[string]int, error)
}

// Jobs enqueues classification work during repairs.
type Jobs interface {
	Enqueue(jobType string, payload interface{}, delay time.Duration) error
}

// Ops bundles the operational repair commands exposed over the admin API and
// the CLI.
type Ops struct {
	store  OpsStore
	jobs   Jobs
	logger *slog.Logger
}

// NewOps creates the repair command set.
func NewOps(store OpsStore, jobs Jobs, logger *slog.Logger) *Ops {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ops{store: store, jobs: jobs, logger: logger}
}

// RetryFailed resets FAILED articles to PENDING and enqueues a fresh
// classification job for each. Returns how many articles were requeued.
func (o *Ops) RetryFailed(ctx context.Context) (int, error) {
	articles, err := o.store.ListByStatus(news.StatusFailed, retryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing failed articles: %w", err)
	}

	requeued := 0
	for _, article := range articles {
		if err := ctx.Err(); err != nil {
			return requeued, err
		}
		if err := o.store.SetClassificationStatus(article.ID, news.StatusPending); err != nil {
			o.logger.Error("failed to reset article status", "article_id", article.ID, "error", err)
			continue
		}
		if err := o.jobs.Enqueue(JobType, Payload{ArticleID: article.ID}, 0); err != nil {
			o.logger.Error("failed to enqueue retry", "article_id", article.ID, "error", err)
			continue
		}
		requeued++
	}

	o.logger.Info("failed articles requeued", "count", requeued)
	return requeued, nil
}

// Reclassify resets one article to PENDING and enqueues a fresh
// classification job for it, overriding the completed-article guard.
func (o *Ops) Reclassify(ctx context.Context, articleID string) error {
	if err := o.store.SetClassificationStatus(articleID, news.StatusPending); err != nil {
		return err
	}
	if err := o.jobs.Enqueue(JobType, Payload{ArticleID: articleID}, 0); err != nil {
		return fmt.Errorf("enqueueing reclassification: %w", err)
	}
	return nil
}

// FixPending repairs the inconsistent state where an article carries a
// category but is still marked PENDING, promoting such rows to COMPLETED.
// Returns how many rows were repaired.
func (o *Ops) FixPending(ctx context.Context) (int64, error) {
	fixed, err := o.store.FixPendingWithCategory()
	if err != nil {
		return 0, fmt.Errorf("repairing pending articles: %w", err)
	}
	if fixed > 0 {
		o.logger.Info("repaired pending articles with categories", "count", fixed)
	}
	return fixed, nil
}

// QueueCounts returns the number of queue jobs per status.
func (o *Ops) QueueCounts(ctx context.Context) (map[string]int, error) {
	counts, err := o.store.JobCounts()
	if err != nil {
		return nil, fmt.Errorf("counting jobs: %w", err)
	}
	return counts, nil
}
