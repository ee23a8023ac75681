package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/newspulse/newspulse/internal/news"
	"github.com/newspulse/newspulse/internal/search"
	"github.com/newspulse/newspulse/internal/storage"
)

func handleListArticles(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := r.URL.Query().Get("category")
		if category != "" && !news.Category(category).Valid() {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown category %q", category)
			return
		}

		from, err := parseTimeParam(r, "from")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		to, err := parseTimeParam(r, "to")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		params := search.Params{
			Query:    r.URL.Query().Get("q"),
			Category: category,
			Source:   r.URL.Query().Get("source"),
			From:     from,
			To:       to,
			Limit:    parseIntParam(r, "limit", 0, 0),
			Offset:   parseIntParam(r, "offset", 0, 0),
		}

		result, err := deps.Search.Search(r.Context(), params)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "search failed: %v", err)
			return
		}
		writeJSON(w, result)
	}
}

func handleGetArticle(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		article, err := deps.Search.GetArticle(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "article not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get article: %v", err)
			return
		}
		writeJSON(w, article)
	}
}

func handleReclassify(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Repairs.Reclassify(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "article not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to requeue classification: %v", err)
			return
		}
		writeJSON(w, map[string]string{"id": id, "status": "queued"})
	}
}

func handleCategoryStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Search.CategoryStats()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to compute stats: %v", err)
			return
		}
		writeJSON(w, map[string]any{"categories": stats})
	}
}
