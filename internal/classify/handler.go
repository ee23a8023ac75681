// Package classify runs LLM classification for stored articles as durable
// queue jobs and carries the operational repair paths for articles the
// pipeline left behind.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/newspulse/newspulse/internal/llm"
	"github.com/newspulse/newspulse/internal/news"
	"github.com/newspulse/newspulse/internal/queue"
	"github.com/newspulse/newspulse/internal/storage"
)

// JobType identifies classification jobs on the queue.
const JobType = "classify-article"

// Payload is the classification job body.
type Payload struct {
	ArticleID string `json:"article_id"`
}

// Store is the persistence surface classification needs.
type Store interface {
	GetArticle(id string) (news.Article, error)
	ApplyClassification(id string, category news.Category, score float64, meta news.Metadata) error
	SetClassificationStatus(id string, status news.ClassificationStatus) error
}

// Classifier is the model call behind the handler.
type Classifier interface {
	Classify(ctx context.Context, input llm.ClassifyInput) (llm.Classification, error)
}

// Handler processes classification jobs.
type Handler struct {
	store      Store
	classifier Classifier
	logger     *slog.Logger
}

// NewHandler creates a classification job handler.
func NewHandler(store Store, classifier Classifier, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: store, classifier: classifier, logger: logger}
}

// Handle classifies one article. Redeliveries of already-classified articles
// are no-ops, so at-least-once delivery never overwrites a completed result.
// Rate limits reschedule the work instead of consuming the retry budget;
// content blocks fall back to OTHER so the article still completes.
func (h *Handler) Handle(ctx context.Context, job storage.Job) error {
	var payload Payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}

	article, err := h.store.GetArticle(payload.ArticleID)
	if errors.Is(err, storage.ErrNotFound) {
		h.logger.Warn("classification target missing, dropping job", "article_id", payload.ArticleID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading article %s: %w", payload.ArticleID, err)
	}
	if article.Status == news.StatusCompleted {
		return nil
	}

	result, err := h.classifier.Classify(ctx, llm.ClassifyInput{
		Title:   article.Title,
		Content: article.Content,
		Hints:   article.Metadata.Hints(),
	})
	if err != nil {
		var rateLimit *llm.RateLimitError
		if errors.As(err, &rateLimit) {
			return queue.Reschedule(rateLimit.RetryAfter, err)
		}
		var blocked *llm.ContentBlockedError
		if errors.As(err, &blocked) {
			return h.applyBlocked(article, err)
		}
		return fmt.Errorf("classifying article %s: %w", article.ID, err)
	}

	meta := article.Metadata
	meta.Enrichment = &news.Enrichment{
		SecondaryCategories: result.Secondary,
		Reasoning:           result.Reasoning,
		ClassifiedAt:        time.Now().UTC(),
	}
	if err := h.store.ApplyClassification(article.ID, result.Category, result.Confidence, meta); err != nil {
		return fmt.Errorf("applying classification for %s: %w", article.ID, err)
	}

	h.logger.Info("article classified",
		"article_id", article.ID, "category", result.Category, "confidence", result.Confidence)
	return nil
}

// applyBlocked records the fallback result for content the provider refuses
// to classify. Blocked articles complete with OTHER and zero confidence so
// they surface in listings instead of cycling through retries.
func (h *Handler) applyBlocked(article news.Article, cause error) error {
	meta := article.Metadata
	meta.Enrichment = &news.Enrichment{
		Reasoning:    "Content blocked by the classification provider",
		ClassifiedAt: time.Now().UTC(),
	}
	if err := h.store.ApplyClassification(article.ID, news.CategoryOther, 0, meta); err != nil {
		return fmt.Errorf("applying blocked-content fallback for %s: %w", article.ID, err)
	}
	h.logger.Warn("content blocked, classified as OTHER", "article_id", article.ID, "error", cause)
	return nil
}

// OnExhausted marks the article FAILED after the job's retry budget is gone.
func (h *Handler) OnExhausted(ctx context.Context, job storage.Job) {
	var payload Payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		h.logger.Error("cannot decode exhausted job payload", "job_id", job.ID, "error", err)
		return
	}
	if err := h.store.SetClassificationStatus(payload.ArticleID, news.StatusFailed); err != nil {
		h.logger.Error("failed to mark article FAILED", "article_id", payload.ArticleID, "error", err)
		return
	}
	h.logger.Warn("classification abandoned after retries", "article_id", payload.ArticleID)
}
