package api

import "net/http"

func handleRetryFailed(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := deps.Repairs.RetryFailed(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "retry failed: %v", err)
			return
		}
		writeJSON(w, map[string]any{"requeued": count})
	}
}

func handleFixPending(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := deps.Repairs.FixPending(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "fix pending failed: %v", err)
			return
		}
		writeJSON(w, map[string]any{"fixed": count})
	}
}

func handleQueueStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := deps.Repairs.QueueCounts(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count jobs: %v", err)
			return
		}
		writeJSON(w, map[string]any{"jobs": counts})
	}
}

func handleAggregate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enqueued := deps.Fetcher.EnqueueRound()
		writeJSON(w, map[string]any{"jobs": enqueued, "status": "queued"})
	}
}
