package handlers

import (
	"net/http"

	"sourcing/db"
	"sourcing/internal/lifecycle"
	"sourcing/models"

	"github.com/go-chi/chi/v5"
)

// CreateRFQHandler обрабатывает POST /api/rfqs/new запрос
func (h *Handler) CreateRFQHandler(w http.ResponseWriter, r *http.Request) {
	var rfq models.RFQ
	if !decodeJSON(w, r, &rfq) {
		return
	}
	if err := h.Auth.CreateRFQ(r.Context(), &rfq); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rfq)
}

// GetRFQsHandler обрабатывает GET /api/rfqs запрос с фильтрами и пагинацией
func (h *Handler) GetRFQsHandler(w http.ResponseWriter, r *http.Request) {
	page, err := parsePaginationParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	filter := db.RFQFilter{BuyerID: q.Get("buyerId"), Category: q.Get("category"), Page: page}
	if s := q.Get("status"); s != "" {
		if filter.Status, err = lifecycle.ParseRFQStatus(s); err != nil {
			writeError(w, err)
			return
		}
	}

	rfqs, err := h.Store.ListRFQs(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items(rfqs))
}

// GetRFQHandler обрабатывает GET /api/rfqs/{rfqId} запрос
func (h *Handler) GetRFQHandler(w http.ResponseWriter, r *http.Request) {
	rfq, err := h.Store.GetRFQ(r.Context(), chi.URLParam(r, "rfqId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rfq)
}

// EditRFQHandler обрабатывает PATCH /api/rfqs/{rfqId} запрос
func (h *Handler) EditRFQHandler(w http.ResponseWriter, r *http.Request) {
	var patch models.RFQPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	rfq, err := h.Auth.EditRFQ(r.Context(), chi.URLParam(r, "rfqId"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rfq)
}

// UpdateRFQStatusHandler - одобрение или отклонение RFQ администратором.
func (h *Handler) UpdateRFQStatusHandler(w http.ResponseWriter, r *http.Request) {
	status, err := lifecycle.ParseRFQStatus(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	rfq, err := h.Auth.ReviewRFQ(r.Context(), chi.URLParam(r, "rfqId"), status, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rfq)
}

// GetMatchesHandler возвращает ранжированных поставщиков без изменения RFQ.
func (h *Handler) GetMatchesHandler(w http.ResponseWriter, r *http.Request) {
	matches, err := h.Matcher.Match(r.Context(), chi.URLParam(r, "rfqId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items(matches))
}

// ConfirmMatchesHandler фиксирует подобранных поставщиков. Пустое тело
// означает всех ранжированных.
func (h *Handler) ConfirmMatchesHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		SupplierIDs []string `json:"supplierIds"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &input) {
		return
	}
	rfq, err := h.Auth.ConfirmMatches(r.Context(), chi.URLParam(r, "rfqId"), input.SupplierIDs, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rfq)
}

// GetRFQQuotationsHandler обрабатывает GET /api/rfqs/{rfqId}/quotations запрос
func (h *Handler) GetRFQQuotationsHandler(w http.ResponseWriter, r *http.Request) {
	page, err := parsePaginationParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id := chi.URLParam(r, "rfqId")
	filter := db.QuotationFilter{RFQID: id, Page: page}
	if s := r.URL.Query().Get("status"); s != "" {
		if filter.Status, err = lifecycle.ParseQuotationStatus(s); err != nil {
			writeError(w, err)
			return
		}
	}
	if _, err := h.Store.GetRFQ(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	quotations, err := h.Store.ListQuotations(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items(quotations))
}

// GetRFQHistoryHandler обрабатывает GET /api/rfqs/{rfqId}/history запрос
func (h *Handler) GetRFQHistoryHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "rfqId")
	if _, err := h.Store.GetRFQ(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	history, err := h.Auth.History(r.Context(), models.EntityRFQ, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items(history))
}
