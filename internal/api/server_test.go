package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newspulse/newspulse/internal/news"
	"github.com/newspulse/newspulse/internal/search"
	"github.com/newspulse/newspulse/internal/storage"
)

type fakeSearcher struct {
	lastParams search.Params
	result     search.Result
	article    news.Article
	stats      []news.CategoryCount
}

func (f *fakeSearcher) Search(ctx context.Context, params search.Params) (search.Result, error) {
	f.lastParams = params
	return f.result, nil
}

func (f *fakeSearcher) GetArticle(id string) (news.Article, error) {
	if id != f.article.ID {
		return news.Article{}, storage.ErrNotFound
	}
	return f.article, nil
}

func (f *fakeSearcher) CategoryStats() ([]news.CategoryCount, error) {
	return f.stats, nil
}

type fakeRepairer struct {
	reclassified []string
	retried      int
	fixed        int64
	jobCounts    map[string]int
	missing      bool
}

func (f *fakeRepairer) Reclassify(ctx context.Context, articleID string) error {
	if f.missing {
		return storage.ErrNotFound
	}
	f.reclassified = append(f.reclassified, articleID)
	return nil
}

func (f *fakeRepairer) RetryFailed(ctx context.Context) (int, error) { return f.retried, nil }
func (f *fakeRepairer) FixPending(ctx context.Context) (int64, error) {
	return f.fixed, nil
}
func (f *fakeRepairer) QueueCounts(ctx context.Context) (map[string]int, error) {
	return f.jobCounts, nil
}

type fakeFetcher struct{ jobs int }

func (f *fakeFetcher) EnqueueRound() int { return f.jobs }

func newTestHandler(deps Deps) http.Handler {
	if deps.Search == nil {
		deps.Search = &fakeSearcher{}
	}
	if deps.Repairs == nil {
		deps.Repairs = &fakeRepairer{}
	}
	if deps.Fetcher == nil {
		deps.Fetcher = &fakeFetcher{}
	}
	return NewHandler(deps)
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHealthIsUnauthenticated(t *testing.T) {
	handler := newTestHandler(Deps{Token: "secret"})

	rec := doRequest(t, handler, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestBearerAuthGuardsAPI(t *testing.T) {
	handler := newTestHandler(Deps{Token: "secret"})

	rec := doRequest(t, handler, http.MethodGet, "/api/articles", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/articles", "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/articles", "secret")
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", rec.Code)
	}
}

func TestListArticlesPassesParams(t *testing.T) {
	searcher := &fakeSearcher{result: search.Result{Articles: []news.Article{}, Total: 0}}
	handler := newTestHandler(Deps{Search: searcher})

	path := "/api/articles?q=zero+day&category=CYBERSECURITY&source=reddit&from=2026-01-01&limit=10&offset=5"
	rec := doRequest(t, handler, http.MethodGet, path, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	p := searcher.lastParams
	if p.Query != "zero day" || p.Category != "CYBERSECURITY" || p.Source != "reddit" {
		t.Errorf("params = %+v", p)
	}
	if p.Limit != 10 || p.Offset != 5 {
		t.Errorf("paging = %d/%d", p.Limit, p.Offset)
	}
	if p.From.IsZero() || p.From.Year() != 2026 {
		t.Errorf("from = %v", p.From)
	}
}

func TestListArticlesRejectsUnknownCategory(t *testing.T) {
	handler := newTestHandler(Deps{})

	rec := doRequest(t, handler, http.MethodGet, "/api/articles?category=SPORTS", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeBody(t, rec)
	errObj, ok := body["error"].(map[string]any)
	if !ok || errObj["type"] != "invalid_request_error" {
		t.Errorf("error envelope = %v", body)
	}
}

func TestListArticlesRejectsBadDate(t *testing.T) {
	handler := newTestHandler(Deps{})

	rec := doRequest(t, handler, http.MethodGet, "/api/articles?from=yesterday", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetArticle(t *testing.T) {
	searcher := &fakeSearcher{article: news.Article{ID: "a1", Title: "found"}}
	handler := newTestHandler(Deps{Search: searcher})

	rec := doRequest(t, handler, http.MethodGet, "/api/articles/a1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got news.Article
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil || got.ID != "a1" {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/articles/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing article: status = %d, want 404", rec.Code)
	}
}

func TestReclassify(t *testing.T) {
	repairs := &fakeRepairer{}
	handler := newTestHandler(Deps{Repairs: repairs})

	rec := doRequest(t, handler, http.MethodPost, "/api/articles/a1/classify", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["id"] != "a1" || body["status"] != "queued" {
		t.Errorf("body = %v", body)
	}
	if len(repairs.reclassified) != 1 || repairs.reclassified[0] != "a1" {
		t.Errorf("reclassified = %v", repairs.reclassified)
	}
}

func TestReclassifyMissingArticle(t *testing.T) {
	handler := newTestHandler(Deps{Repairs: &fakeRepairer{missing: true}})

	rec := doRequest(t, handler, http.MethodPost, "/api/articles/gone/classify", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCategoryStats(t *testing.T) {
	searcher := &fakeSearcher{stats: []news.CategoryCount{
		{Category: news.CategoryCybersecurity, Count: 3},
	}}
	handler := newTestHandler(Deps{Search: searcher})

	rec := doRequest(t, handler, http.MethodGet, "/api/stats/categories", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	categories, ok := body["categories"].([]any)
	if !ok || len(categories) != 1 {
		t.Errorf("body = %v", body)
	}
}

func TestQueueStats(t *testing.T) {
	repairs := &fakeRepairer{jobCounts: map[string]int{"pending": 3, "failed": 1}}
	handler := newTestHandler(Deps{Repairs: repairs})

	rec := doRequest(t, handler, http.MethodGet, "/api/stats/queue", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	jobs, ok := body["jobs"].(map[string]any)
	if !ok || jobs["pending"] != float64(3) || jobs["failed"] != float64(1) {
		t.Errorf("body = %v", body)
	}
}

func TestAdminEndpoints(t *testing.T) {
	repairs := &fakeRepairer{retried: 4, fixed: 2}
	fetcher := &fakeFetcher{jobs: 6}
	handler := newTestHandler(Deps{Repairs: repairs, Fetcher: fetcher})

	rec := doRequest(t, handler, http.MethodPost, "/api/admin/retry-failed", "")
	if body := decodeBody(t, rec); body["requeued"] != float64(4) {
		t.Errorf("retry-failed body = %v", body)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/admin/fix-pending", "")
	if body := decodeBody(t, rec); body["fixed"] != float64(2) {
		t.Errorf("fix-pending body = %v", body)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/admin/aggregate", "")
	body := decodeBody(t, rec)
	if body["jobs"] != float64(6) || body["status"] != "queued" {
		t.Errorf("aggregate body = %v", body)
	}
}

func TestParseTimeParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?from=2026-03-01T12:00:00Z", nil)
	got, err := parseTimeParam(req, "from")
	if err != nil {
		t.Fatalf("parseTimeParam: %v", err)
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	req = httptest.NewRequest(http.MethodGet, "/?from=", nil)
	if got, err := parseTimeParam(req, "from"); err != nil || !got.IsZero() {
		t.Errorf("empty param: %v, %v", got, err)
	}
}
