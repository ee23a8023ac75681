// Package api exposes the HTTP surface: article listings and search, category
// statistics, and the admin repair endpoints. Errors use the shared envelope
// {"error":{"message":...,"type":...}}.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/newspulse/newspulse/internal/news"
	"github.com/newspulse/newspulse/internal/search"
)

// Searcher is the query surface the handlers read from.
type Searcher interface {
	Search(ctx context.Context, params search.Params) (search.Result, error)
	GetArticle(id string) (news.Article, error)
	CategoryStats() ([]news.CategoryCount, error)
}

// Repairer runs the operational repair commands and reports queue state.
type Repairer interface {
	Reclassify(ctx context.Context, articleID string) error
	RetryFailed(ctx context.Context) (int, error)
	FixPending(ctx context.Context) (int64, error)
	QueueCounts(ctx context.Context) (map[string]int, error)
}

// Fetcher enqueues a full fetch round on demand.
type Fetcher interface {
	EnqueueRound() int
}

// Deps wires the handler dependencies.
type Deps struct {
	Search  Searcher
	Repairs Repairer
	Fetcher Fetcher
	// Token protects /api routes when non-empty.
	Token string
}

// NewHandler builds the HTTP router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Get("/articles", handleListArticles(deps))
		r.Get("/articles/{id}", handleGetArticle(deps))
		r.Post("/articles/{id}/classify", handleReclassify(deps))
		r.Get("/stats/categories", handleCategoryStats(deps))
		r.Get("/stats/queue", handleQueueStats(deps))

		r.Post("/admin/retry-failed", handleRetryFailed(deps))
		r.Post("/admin/fix-pending", handleFixPending(deps))
		r.Post("/admin/aggregate", handleAggregate(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

// parseTimeParam accepts RFC 3339 timestamps or plain dates.
func parseTimeParam(r *http.Request, key string) (time.Time, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid %s: %q", key, s)
}
