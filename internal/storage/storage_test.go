package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/newspulse/newspulse/internal/news"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testArticle(id, source, sourceID, url string) news.Article {
	return news.Article{
		ID:          id,
		Title:       "Go 1.25 released",
		Content:     "The Go team has released version 1.25 with improved runtime performance.",
		Summary:     "Go 1.25 release notes.",
		URL:         url,
		Source:      source,
		SourceID:    sourceID,
		PublishedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		FetchedAt:   time.Date(2026, 8, 1, 12, 5, 0, 0, time.UTC),
		Status:      news.StatusPending,
		Metadata:    news.Metadata{Type: news.SourceTypeRSS, Source: source},
	}
}

func TestCreateArticle_DuplicateURL(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateArticle(testArticle("a1", "feed", "id-1", "https://example.com/go125")); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	err := s.CreateArticle(testArticle("a2", "feed", "id-2", "https://example.com/go125"))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for same url, got %v", err)
	}
}

func TestCreateArticle_DuplicateNaturalKey(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateArticle(testArticle("a1", "feed", "id-1", "https://example.com/one")); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	err := s.CreateArticle(testArticle("a2", "feed", "id-1", "https://example.com/two"))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for same (source, source_id), got %v", err)
	}
}

func TestFindArticle(t *testing.T) {
	s := newTestStore(t)

	a := testArticle("a1", "feed", "id-1", "https://example.com/one")
	if err := s.CreateArticle(a); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.FindBySourceID("feed", "id-1")
	if err != nil {
		t.Fatalf("FindBySourceID: %v", err)
	}
	if got.ID != "a1" || got.Title != a.Title {
		t.Errorf("FindBySourceID = %+v, want id a1", got)
	}

	got, err = s.FindByURL("https://example.com/one")
	if err != nil {
		t.Fatalf("FindByURL: %v", err)
	}
	if got.ID != "a1" {
		t.Errorf("FindByURL id = %s, want a1", got.ID)
	}

	if _, err := s.FindBySourceID("feed", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetArticle("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyClassification(t *testing.T) {
	s := newTestStore(t)

	a := testArticle("a1", "feed", "id-1", "https://example.com/one")
	if err := s.CreateArticle(a); err != nil {
		t.Fatalf("insert: %v", err)
	}

	meta := a.Metadata
	meta.Enrichment = &news.Enrichment{
		Reasoning:    "Release coverage",
		ClassifiedAt: time.Date(2026, 8, 1, 13, 0, 0, 0, time.UTC),
		SecondaryCategories: []news.SecondaryCategory{
			{Category: news.CategoryAIEmergingTech, Confidence: 0.7},
		},
	}
	if err := s.ApplyClassification("a1", news.CategorySoftwareDev, 0.92, meta); err != nil {
		t.Fatalf("ApplyClassification: %v", err)
	}

	got, err := s.GetArticle("a1")
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if got.Status != news.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", got.Status)
	}
	if got.Category == nil || *got.Category != news.CategorySoftwareDev {
		t.Errorf("category = %v, want SOFTWARE_DEVELOPMENT", got.Category)
	}
	if got.CategoryScore == nil || *got.CategoryScore != 0.92 {
		t.Errorf("score = %v, want 0.92", got.CategoryScore)
	}
	if got.Metadata.Enrichment == nil || got.Metadata.Enrichment.Reasoning != "Release coverage" {
		t.Errorf("enrichment not persisted: %+v", got.Metadata.Enrichment)
	}
	if len(got.Metadata.Enrichment.SecondaryCategories) != 1 {
		t.Errorf("secondary categories = %+v, want 1 entry", got.Metadata.Enrichment.SecondaryCategories)
	}

	if err := s.ApplyClassification("missing", news.CategoryOther, 0, meta); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing article, got %v", err)
	}
}

func TestFixPendingWithCategory(t *testing.T) {
	s := newTestStore(t)

	anomalous := testArticle("a1", "feed", "id-1", "https://example.com/one")
	cat := news.CategoryCybersecurity
	score := 0.8
	anomalous.Category = &cat
	anomalous.CategoryScore = &score
	if err := s.CreateArticle(anomalous); err != nil {
		t.Fatalf("insert anomalous: %v", err)
	}

	healthy := testArticle("a2", "feed", "id-2", "https://example.com/two")
	if err := s.CreateArticle(healthy); err != nil {
		t.Fatalf("insert healthy: %v", err)
	}

	fixed, err := s.FixPendingWithCategory()
	if err != nil {
		t.Fatalf("FixPendingWithCategory: %v", err)
	}
	if fixed != 1 {
		t.Fatalf("fixed = %d, want 1", fixed)
	}

	got, _ := s.GetArticle("a1")
	if got.Status != news.StatusCompleted {
		t.Errorf("anomalous status = %s, want COMPLETED", got.Status)
	}
	if got.Category == nil || *got.Category != news.CategoryCybersecurity {
		t.Errorf("category changed by repair: %v", got.Category)
	}

	got, _ = s.GetArticle("a2")
	if got.Status != news.StatusPending {
		t.Errorf("healthy pending article touched by repair: %s", got.Status)
	}
}

func TestListArticlesFilterAndOrder(t *testing.T) {
	s := newTestStore(t)

	older := testArticle("a1", "feed", "id-1", "https://example.com/one")
	older.PublishedAt = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	newer := testArticle("a2", "other", "id-2", "https://example.com/two")
	newer.PublishedAt = time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	for _, a := range []news.Article{older, newer} {
		if err := s.CreateArticle(a); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	articles, err := s.ListArticles(ArticleFilter{}, 10, 0)
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	if len(articles) != 2 || articles[0].ID != "a2" {
		t.Fatalf("expected newest first, got %+v", articles)
	}

	articles, err = s.ListArticles(ArticleFilter{Source: "feed"}, 10, 0)
	if err != nil {
		t.Fatalf("ListArticles filtered: %v", err)
	}
	if len(articles) != 1 || articles[0].ID != "a1" {
		t.Fatalf("source filter returned %+v", articles)
	}

	count, err := s.CountArticles(ArticleFilter{Source: "feed"})
	if err != nil {
		t.Fatalf("CountArticles: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	from := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	articles, err = s.ListArticles(ArticleFilter{From: from}, 10, 0)
	if err != nil {
		t.Fatalf("ListArticles from: %v", err)
	}
	if len(articles) != 1 || articles[0].ID != "a2" {
		t.Fatalf("from filter returned %+v", articles)
	}
}

func TestCategoryCounts(t *testing.T) {
	s := newTestStore(t)

	a := testArticle("a1", "feed", "id-1", "https://example.com/one")
	if err := s.CreateArticle(a); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.ApplyClassification("a1", news.CategoryCybersecurity, 0.9, a.Metadata); err != nil {
		t.Fatalf("classify: %v", err)
	}

	unclassified := testArticle("a2", "feed", "id-2", "https://example.com/two")
	if err := s.CreateArticle(unclassified); err != nil {
		t.Fatalf("insert: %v", err)
	}

	counts, err := s.CategoryCounts()
	if err != nil {
		t.Fatalf("CategoryCounts: %v", err)
	}
	if counts[news.CategoryCybersecurity] != 1 {
		t.Errorf("cybersecurity count = %d, want 1", counts[news.CategoryCybersecurity])
	}
	if len(counts) != 1 {
		t.Errorf("counts = %v, want only classified categories", counts)
	}
}

func TestSearchCandidates(t *testing.T) {
	s := newTestStore(t)

	match := testArticle("a1", "feed", "id-1", "https://example.com/one")
	match.Title = "Quantum Computing Breakthrough"
	match.Content = "Researchers announce a new qubit design."
	other := testArticle("a2", "feed", "id-2", "https://example.com/two")
	other.Title = "Phone review"
	other.Content = "A very ordinary phone."
	for _, a := range []news.Article{match, other} {
		if err := s.CreateArticle(a); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := s.SaveEmbedding("a1", []float32{0.1, 0.2, 0.3}); err != nil {
		t.Fatalf("SaveEmbedding: %v", err)
	}

	// Matching is case-insensitive against title and content.
	candidates, err := s.SearchCandidates("quantum", ArticleFilter{})
	if err != nil {
		t.Fatalf("SearchCandidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Article.ID != "a1" {
		t.Fatalf("candidates = %+v, want only a1", candidates)
	}
	if len(candidates[0].Embedding) != 3 {
		t.Errorf("embedding = %v, want stored vector", candidates[0].Embedding)
	}

	candidates, err = s.SearchCandidates("qubit", ArticleFilter{})
	if err != nil {
		t.Fatalf("SearchCandidates content: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("content match returned %d candidates, want 1", len(candidates))
	}

	candidates, err = s.SearchCandidates("quantum", ArticleFilter{Source: "nonexistent"})
	if err != nil {
		t.Fatalf("SearchCandidates filtered: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("filter should exclude all, got %+v", candidates)
	}
}

func TestEmbeddingsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	a := testArticle("a1", "feed", "id-1", "https://example.com/one")
	if err := s.CreateArticle(a); err != nil {
		t.Fatalf("insert: %v", err)
	}

	vec := []float32{0.5, -1.25, 3.75}
	if err := s.SaveEmbedding("a1", vec); err != nil {
		t.Fatalf("SaveEmbedding: %v", err)
	}

	got, err := s.GetEmbedding("a1")
	if err != nil {
		t.Fatalf("GetEmbedding: %v", err)
	}
	if len(got) != len(vec) {
		t.Fatalf("len = %d, want %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("got[%d] = %f, want %f", i, got[i], vec[i])
		}
	}

	if _, err := s.GetEmbedding("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.SaveEmbedding("a1", nil); err == nil {
		t.Error("expected error for empty vector")
	}
}

func TestJobClaimLifecycle(t *testing.T) {
	s := newTestStore(t)

	job := Job{ID: "j1", Type: "classify-article", PayloadJSON: `{"article_id":"a1"}`, MaxAttempts: 3}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	claimed, err := s.ClaimNextJob([]string{"classify-article"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if claimed == nil || claimed.ID != "j1" {
		t.Fatalf("claimed = %+v, want j1", claimed)
	}
	if claimed.Status != "running" {
		t.Errorf("status = %s, want running", claimed.Status)
	}

	// A claimed job is invisible to other claimers.
	second, err := s.ClaimNextJob([]string{"classify-article"})
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if second != nil {
		t.Fatalf("second claim = %+v, want nil", second)
	}

	if err := s.CompleteJob("j1"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	got, err := s.GetJob("j1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != "completed" {
		t.Errorf("status = %s, want completed", got.Status)
	}
}

func TestClaimSkipsDeferredAndForeignTypes(t *testing.T) {
	s := newTestStore(t)

	deferred := Job{ID: "j1", Type: "classify-article", RunAfter: time.Now().UTC().Add(time.Hour)}
	if err := s.EnqueueJob(deferred); err != nil {
		t.Fatalf("enqueue deferred: %v", err)
	}
	foreign := Job{ID: "j2", Type: "fetch-rss"}
	if err := s.EnqueueJob(foreign); err != nil {
		t.Fatalf("enqueue foreign: %v", err)
	}

	claimed, err := s.ClaimNextJob([]string{"classify-article"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if claimed != nil {
		t.Fatalf("claimed deferred or foreign job: %+v", claimed)
	}
}

func TestFailJobBackoffAndExhaustion(t *testing.T) {
	s := newTestStore(t)

	job := Job{ID: "j1", Type: "classify-article", MaxAttempts: 2}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"classify-article"}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	exhausted, err := s.FailJob("j1", "model unavailable")
	if err != nil {
		t.Fatalf("first FailJob: %v", err)
	}
	if exhausted {
		t.Fatal("exhausted after first failure, want retry")
	}

	got, err := s.GetJob("j1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != "pending" {
		t.Errorf("status = %s, want pending", got.Status)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
	if got.LastError != "model unavailable" {
		t.Errorf("last_error = %q", got.LastError)
	}
	// Backoff pushed run_after into the future, so the job is not claimable.
	if !got.RunAfter.After(time.Now().UTC()) {
		t.Errorf("run_after = %v, want future", got.RunAfter)
	}

	exhausted, err = s.FailJob("j1", "model unavailable")
	if err != nil {
		t.Fatalf("second FailJob: %v", err)
	}
	if !exhausted {
		t.Fatal("want exhausted at attempt cap")
	}
	got, _ = s.GetJob("j1")
	if got.Status != "failed" {
		t.Errorf("status = %s, want failed", got.Status)
	}
}

func TestListByStatus(t *testing.T) {
	s := newTestStore(t)

	first := testArticle("a1", "feed", "id-1", "https://example.com/one")
	first.FetchedAt = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	second := testArticle("a2", "feed", "id-2", "https://example.com/two")
	second.FetchedAt = time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	for _, a := range []news.Article{first, second} {
		if err := s.CreateArticle(a); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := s.SetClassificationStatus("a2", news.StatusFailed); err != nil {
		t.Fatalf("SetClassificationStatus: %v", err)
	}

	pending, err := s.ListByStatus(news.StatusPending, 10)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "a1" {
		t.Fatalf("pending = %+v, want only a1", pending)
	}

	failed, err := s.ListByStatus(news.StatusFailed, 10)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "a2" {
		t.Fatalf("failed = %+v, want only a2", failed)
	}
}

func TestMigrationsApplied(t *testing.T) {
	s := newTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != 1 {
		t.Fatalf("versions = %v, want at least migration 1", versions)
	}
}
