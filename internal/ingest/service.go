// Package ingest turns raw source items into stored articles. Ingestion is
// idempotent: the same item submitted twice stores once and reports the
// second submission as a duplicate rather than an error.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/newspulse/newspulse/internal/classify"
	"github.com/newspulse/newspulse/internal/news"
	"github.com/newspulse/newspulse/internal/storage"
)

// Store is the persistence surface ingestion writes through.
type Store interface {
	CreateArticle(article news.Article) error
	SaveEmbedding(articleID string, vector []float32) error
}

// Gate answers seen-before checks and records markers for stored articles.
type Gate interface {
	Seen(ctx context.Context, source, sourceID, url string) (bool, error)
	MarkSeen(ctx context.Context, source, sourceID string)
}

// Embedder produces the vector stored alongside an article.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Jobs enqueues follow-up work for stored articles.
type Jobs interface {
	Enqueue(jobType string, payload interface{}, delay time.Duration) error
}

// RawArticle is one item as delivered by a source adapter, before
// normalization.
type RawArticle struct {
	Title       string
	Content     string
	URL         string
	Source      string
	SourceID    string
	Author      string
	PublishedAt time.Time
	Metadata    news.Metadata
}

// Result reports what ingestion did with one item.
type Result struct {
	// Article is the stored record, nil when the item was a duplicate.
	Article *news.Article
	Stored  bool
}

// Service ingests raw articles: dedupe, normalize, store, embed, enqueue
// classification.
type Service struct {
	store    Store
	gate     Gate
	embedder Embedder
	jobs     Jobs
	logger   *slog.Logger
}

// NewService wires an ingestion Service. embedder and jobs may be nil, in
// which case those steps are skipped.
func NewService(store Store, gate Gate, embedder Embedder, jobs Jobs, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, gate: gate, embedder: embedder, jobs: jobs, logger: logger}
}

// Ingest processes one raw item. Duplicates return Stored=false with no
// error. Embedding and classification enqueueing are best-effort: their
// failures are logged and the stored article stays PENDING-classifiable via
// the operational retry paths.
func (s *Service) Ingest(ctx context.Context, raw RawArticle) (Result, error) {
	if raw.Title == "" || raw.Source == "" || raw.SourceID == "" {
		return Result{}, fmt.Errorf("ingest requires title, source, and source id")
	}

	seen, err := s.gate.Seen(ctx, raw.Source, raw.SourceID, raw.URL)
	if err != nil {
		return Result{}, fmt.Errorf("dedupe check: %w", err)
	}
	if seen {
		return Result{Stored: false}, nil
	}

	content := stripHTML(raw.Content)
	article := news.Article{
		ID:          uuid.New().String(),
		Title:       squeezeWhitespace(raw.Title),
		Content:     content,
		Summary:     summarize(content),
		URL:         raw.URL,
		Source:      raw.Source,
		SourceID:    raw.SourceID,
		Author:      raw.Author,
		PublishedAt: raw.PublishedAt,
		FetchedAt:   time.Now().UTC(),
		Status:      news.StatusPending,
		Metadata:    raw.Metadata,
	}
	if article.PublishedAt.IsZero() {
		article.PublishedAt = article.FetchedAt
	}

	if err := s.store.CreateArticle(article); err != nil {
		// The unique constraints are the final arbiter: a concurrent insert
		// of the same item is a duplicate, not a failure.
		if errors.Is(err, storage.ErrDuplicate) {
			s.gate.MarkSeen(ctx, raw.Source, raw.SourceID)
			return Result{Stored: false}, nil
		}
		return Result{}, fmt.Errorf("storing article: %w", err)
	}
	s.gate.MarkSeen(ctx, raw.Source, raw.SourceID)

	s.embed(ctx, article)
	s.enqueueClassification(article.ID)

	return Result{Article: &article, Stored: true}, nil
}

func (s *Service) embed(ctx context.Context, article news.Article) {
	if s.embedder == nil {
		return
	}
	text := article.Title + "\n\n" + article.Content
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("embedding failed, article stored without vector",
			"article_id", article.ID, "error", err)
		return
	}
	if err := s.store.SaveEmbedding(article.ID, vector); err != nil {
		s.logger.Warn("failed to save embedding", "article_id", article.ID, "error", err)
	}
}

func (s *Service) enqueueClassification(articleID string) {
	if s.jobs == nil {
		return
	}
	err := s.jobs.Enqueue(classify.JobType, classify.Payload{ArticleID: articleID}, 0)
	if err != nil {
		s.logger.Warn("failed to enqueue classification", "article_id", articleID, "error", err)
	}
}
