package handlers

import (
	"net/http"

	"sourcing/internal/analytics"
)

// GetStatsHandler обрабатывает GET /api/admin/stats запрос
func (h *Handler) GetStatsHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := analytics.Summarize(r.Context(), h.Store)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ExpireRFQsHandler запускает проход по просроченным RFQ вне расписания.
func (h *Handler) ExpireRFQsHandler(w http.ResponseWriter, r *http.Request) {
	closed, err := h.Sweeper.SweepOnce(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"closed": closed})
}
