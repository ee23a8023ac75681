// Package search serves article listings, hybrid text search, and category
// statistics. Query searches blend lexical coverage with embedding cosine
// similarity and are cached briefly under a fingerprint of the parameters.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/newspulse/newspulse/internal/cache"
	"github.com/newspulse/newspulse/internal/news"
	"github.com/newspulse/newspulse/internal/storage"
)

const (
	// lexicalWeight and vectorWeight blend the two relevance signals.
	// Articles without a stored embedding simply score zero on the vector
	// component instead of being excluded.
	lexicalWeight = 0.4
	vectorWeight  = 0.6
)

// Store is the read surface the search service needs.
type Store interface {
	GetArticle(id string) (news.Article, error)
	ListArticles(filter storage.ArticleFilter, limit, offset int) ([]news.Article, error)
	CountArticles(filter storage.ArticleFilter) (int, error)
	SearchCandidates(query string, filter storage.ArticleFilter) ([]storage.Candidate, error)
	CategoryCounts() (map[news.Category]int, error)
}

// Embedder produces the query vector for hybrid ranking.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Params are the request parameters for listings and searches.
type Params struct {
	Query    string
	Category string
	Source   string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// Result is one page of articles plus the total size of the matched set.
// Total is derived from the same matched set as the page, so the two can
// never disagree.
type Result struct {
	Articles []news.Article `json:"articles"`
	Total    int            `json:"total"`
}

// Service answers article queries.
type Service struct {
	store        Store
	cache        cache.Cache
	embedder     Embedder
	cacheTTL     time.Duration
	defaultLimit int
	maxLimit     int
	logger       *slog.Logger
}

// NewService wires a search Service. embedder may be nil, which disables the
// vector component of ranking.
func NewService(store Store, c cache.Cache, embedder Embedder, cacheTTL time.Duration, defaultLimit, maxLimit int, logger *slog.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	if maxLimit <= 0 {
		maxLimit = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        store,
		cache:        c,
		embedder:     embedder,
		cacheTTL:     cacheTTL,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		logger:       logger,
	}
}

// Search returns one page of articles. Without a query this is a filtered
// listing ordered by publication time; with a query it is a ranked hybrid
// search over the full matched set, paginated after ranking.
func (s *Service) Search(ctx context.Context, params Params) (Result, error) {
	params = s.normalize(params)
	filter := storage.ArticleFilter{
		Category: params.Category,
		Source:   params.Source,
		From:     params.From,
		To:       params.To,
	}

	if params.Query == "" {
		return s.list(ctx, filter, params)
	}

	key := s.fingerprint(params)
	if cached, ok := s.cachedResult(ctx, key); ok {
		return cached, nil
	}

	result, err := s.rank(ctx, filter, params)
	if err != nil {
		return Result{}, err
	}
	s.cacheResult(ctx, key, result)
	return result, nil
}

// GetArticle returns one article by id.
func (s *Service) GetArticle(id string) (news.Article, error) {
	return s.store.GetArticle(id)
}

// CategoryStats returns article counts for every category in canonical
// order, including zero-count ones.
func (s *Service) CategoryStats() ([]news.CategoryCount, error) {
	counts, err := s.store.CategoryCounts()
	if err != nil {
		return nil, fmt.Errorf("counting categories: %w", err)
	}

	stats := make([]news.CategoryCount, 0, len(news.AllCategories))
	for _, category := range news.AllCategories {
		stats = append(stats, news.CategoryCount{Category: category, Count: counts[category]})
	}
	return stats, nil
}

func (s *Service) normalize(params Params) Params {
	params.Query = strings.TrimSpace(params.Query)
	if params.Limit <= 0 {
		params.Limit = s.defaultLimit
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	return params
}

// list serves the no-query path. Page and total come from two statements,
// run concurrently against the same filter.
func (s *Service) list(ctx context.Context, filter storage.ArticleFilter, params Params) (Result, error) {
	var (
		articles []news.Article
		total    int
	)
	group, _ := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		articles, err = s.store.ListArticles(filter, params.Limit, params.Offset)
		return err
	})
	group.Go(func() error {
		var err error
		total, err = s.store.CountArticles(filter)
		return err
	})
	if err := group.Wait(); err != nil {
		return Result{}, fmt.Errorf("listing articles: %w", err)
	}
	if articles == nil {
		articles = []news.Article{}
	}
	return Result{Articles: articles, Total: total}, nil
}

// rank loads the full matched set, scores it, sorts it, and slices out the
// requested page. Total is the size of the matched set.
func (s *Service) rank(ctx context.Context, filter storage.ArticleFilter, params Params) (Result, error) {
	candidates, err := s.store.SearchCandidates(strings.ToLower(params.Query), filter)
	if err != nil {
		return Result{}, fmt.Errorf("searching articles: %w", err)
	}

	queryVector := s.queryVector(ctx, params.Query)
	queryTokens := tokenize(params.Query)

	type scored struct {
		article news.Article
		score   float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, candidate := range candidates {
		lexical := lexicalScore(queryTokens, candidate.Article.Title, candidate.Article.Content)
		vector := 0.0
		if queryVector != nil && len(candidate.Embedding) > 0 {
			vector = cosineSimilarity(queryVector, candidate.Embedding)
		}
		ranked = append(ranked, scored{
			article: candidate.Article,
			score:   lexicalWeight*lexical + vectorWeight*vector,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].article.PublishedAt.After(ranked[j].article.PublishedAt)
	})

	page := []news.Article{}
	for i := params.Offset; i < len(ranked) && len(page) < params.Limit; i++ {
		page = append(page, ranked[i].article)
	}
	return Result{Articles: page, Total: len(ranked)}, nil
}

// queryVector embeds the query text. Best-effort: ranking degrades to
// lexical-only when the embedding service is unavailable.
func (s *Service) queryVector(ctx context.Context, query string) []float32 {
	if s.embedder == nil {
		return nil
	}
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed, ranking lexically", "error", err)
		return nil
	}
	return vector
}

// fingerprint derives the cache key from the normalized parameters.
func (s *Service) fingerprint(params Params) string {
	canonical := fmt.Sprintf("q=%s|cat=%s|src=%s|from=%d|to=%d|limit=%d|offset=%d",
		strings.ToLower(params.Query), params.Category, params.Source,
		params.From.Unix(), params.To.Unix(), params.Limit, params.Offset)
	sum := sha256.Sum256([]byte(canonical))
	return "search:" + hex.EncodeToString(sum[:])
}

func (s *Service) cachedResult(ctx context.Context, key string) (Result, bool) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("search cache read failed", "error", err)
		return Result{}, false
	}
	if !ok {
		return Result{}, false
	}
	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		s.logger.Warn("dropping unreadable cached search result", "error", err)
		return Result{}, false
	}
	return result, true
}

func (s *Service) cacheResult(ctx context.Context, key string, result Result) {
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.SetTTL(ctx, key, string(raw), s.cacheTTL); err != nil {
		s.logger.Warn("search cache write failed", "error", err)
	}
}
