package handlers

import (
	"net/http"

	"sourcing/db"
	"sourcing/internal/lifecycle"
	"sourcing/internal/review"
	"sourcing/models"

	"github.com/go-chi/chi/v5"
)

// CreateQuotationHandler обрабатывает POST /api/quotations/new запрос
func (h *Handler) CreateQuotationHandler(w http.ResponseWriter, r *http.Request) {
	var quotation models.Quotation
	if !decodeJSON(w, r, &quotation) {
		return
	}
	if err := h.Flow.Submit(r.Context(), &quotation); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quotation)
}

// GetQuotationsHandler обрабатывает GET /api/quotations запрос с фильтрами и пагинацией
func (h *Handler) GetQuotationsHandler(w http.ResponseWriter, r *http.Request) {
	page, err := parsePaginationParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	filter := db.QuotationFilter{RFQID: q.Get("rfqId"), SupplierID: q.Get("supplierId"), Page: page}
	if s := q.Get("status"); s != "" {
		if filter.Status, err = lifecycle.ParseQuotationStatus(s); err != nil {
			writeError(w, err)
			return
		}
	}

	quotations, err := h.Store.ListQuotations(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items(quotations))
}

// GetQuotationHandler обрабатывает GET /api/quotations/{quotationId} запрос
func (h *Handler) GetQuotationHandler(w http.ResponseWriter, r *http.Request) {
	quotation, err := h.Store.GetQuotation(r.Context(), chi.URLParam(r, "quotationId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quotation)
}

// EditQuotationHandler обрабатывает PATCH /api/quotations/{quotationId} запрос
func (h *Handler) EditQuotationHandler(w http.ResponseWriter, r *http.Request) {
	var patch models.QuotationPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	quotation, err := h.Flow.Revise(r.Context(), chi.URLParam(r, "quotationId"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quotation)
}

// ReviewQuotationHandler - проверка котировки администратором.
func (h *Handler) ReviewQuotationHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	decision, err := review.ParseDecision(q.Get("decision"), review.Approve, review.Reject)
	if err != nil {
		writeError(w, err)
		return
	}
	quotation, err := h.Flow.Review(r.Context(), chi.URLParam(r, "quotationId"), decision, q.Get("notes"), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quotation)
}

// SubmitDecisionHandler - решение покупателя. При принятии в ответе есть заказ.
func (h *Handler) SubmitDecisionHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	decision, err := review.ParseDecision(q.Get("decision"), review.Accept, review.Reject)
	if err != nil {
		writeError(w, err)
		return
	}
	quotation, order, err := h.Flow.BuyerDecide(r.Context(), chi.URLParam(r, "quotationId"), decision, q.Get("notes"), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := struct {
		Quotation *models.Quotation `json:"quotation"`
		Order     *models.Order     `json:"order,omitempty"`
	}{quotation, order}
	writeJSON(w, http.StatusOK, resp)
}
