package handlers

import (
	"net/http"

	"sourcing/db"
	"sourcing/internal/lifecycle"
	"sourcing/models"

	"github.com/go-chi/chi/v5"
)

// CreateSampleHandler обрабатывает POST /api/samples/new запрос
func (h *Handler) CreateSampleHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SampleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Samples.Request(r.Context(), &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// GetSamplesHandler обрабатывает GET /api/samples запрос с фильтрами и пагинацией
func (h *Handler) GetSamplesHandler(w http.ResponseWriter, r *http.Request) {
	page, err := parsePaginationParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	filter := db.SampleFilter{
		QuotationID: q.Get("quotationId"),
		BuyerID:     q.Get("buyerId"),
		SupplierID:  q.Get("supplierId"),
		Page:        page,
	}
	if s := q.Get("status"); s != "" {
		if filter.Status, err = lifecycle.ParseSampleStatus(s); err != nil {
			writeError(w, err)
			return
		}
	}

	samples, err := h.Samples.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items(samples))
}

// UpdateSampleStatusHandler обрабатывает PUT /api/samples/{sampleId}/status запрос
func (h *Handler) UpdateSampleStatusHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := lifecycle.ParseSampleStatus(q.Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	sample, err := h.Samples.Advance(r.Context(), chi.URLParam(r, "sampleId"), status, q.Get("trackingNumber"), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sample)
}
